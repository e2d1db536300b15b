package middleware

import (
	"strconv"
	"sync"
	"time"

	"cooperative-ai/backend/pkg/errors"
	"cooperative-ai/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterOptions configures the rate limiter
type RateLimiterOptions struct {
	// Limit defines requests per second
	Limit rate.Limit
	// Burst defines maximum burst size allowed
	Burst int
	// ExpiryDuration defines how long to keep client state in memory
	ExpiryDuration time.Duration
	// KeyFunc extracts the limiting key from a request
	KeyFunc func(*gin.Context) string
}

// DefaultRateLimiterOptions returns sensible defaults
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:          2,
		Burst:          5,
		ExpiryDuration: time.Hour,
		KeyFunc:        ClientKey,
	}
}

// ClientKey limits per authenticated user when known, otherwise per IP
func ClientKey(c *gin.Context) string {
	if userID := c.GetString("userId"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key
type RateLimiter struct {
	mu      sync.Mutex
	options RateLimiterOptions
	clients map[string]*client
	logger  *logger.Logger
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a new rate limiter and starts its janitor
func NewRateLimiter(logger *logger.Logger, options RateLimiterOptions) *RateLimiter {
	defaults := DefaultRateLimiterOptions()
	if options.Limit <= 0 {
		options.Limit = defaults.Limit
	}
	if options.Burst <= 0 {
		options.Burst = defaults.Burst
	}
	if options.ExpiryDuration <= 0 {
		options.ExpiryDuration = defaults.ExpiryDuration
	}
	if options.KeyFunc == nil {
		options.KeyFunc = defaults.KeyFunc
	}

	r := &RateLimiter{
		options: options,
		clients: make(map[string]*client),
		logger:  logger,
		stop:    make(chan struct{}),
	}
	go r.cleanup()
	return r
}

// Middleware returns a Gin middleware for rate limiting
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := r.options.KeyFunc(c)

		if !r.Allow(key) {
			r.logger.Warn("Rate limit exceeded",
				"client", key,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			c.Header("Retry-After", "1")
			c.Header("X-RateLimit-Limit", strconv.Itoa(r.options.Burst))
			c.Error(errors.NewTooManyRequestsError())
			c.Abort()
			return
		}

		c.Next()
	}
}

// Allow reports whether a request for key may proceed now
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, exists := r.clients[key]
	if !exists {
		v = &client{limiter: rate.NewLimiter(r.options.Limit, r.options.Burst)}
		r.clients[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// Stop ends the janitor goroutine
func (r *RateLimiter) Stop() {
	r.once.Do(func() { close(r.stop) })
}

// cleanup removes idle entries from the clients map
func (r *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			for k, v := range r.clients {
				if time.Since(v.lastSeen) > r.options.ExpiryDuration {
					delete(r.clients, k)
				}
			}
			r.mu.Unlock()
		}
	}
}
