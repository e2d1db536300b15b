package router

import (
	"net/http"

	"cooperative-ai/backend/internal/api"
	"cooperative-ai/backend/pkg/di"
	"cooperative-ai/backend/pkg/errors"
	"cooperative-ai/backend/pkg/logger"
	"cooperative-ai/backend/pkg/middleware"
	"cooperative-ai/backend/pkg/validator"
	"cooperative-ai/backend/shared/observability"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Version is reported by the liveness endpoint
var Version = "dev"

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	RateLimiter *middleware.RateLimiter
	Validator   *validator.OpenAPIValidator
}

// New creates a new router with the given container
func New(container *di.Container) (*Router, error) {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	v, err := loadValidator(cfg.Security.SchemaPath)
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return nil, err
	}

	// Request ID first so every later log line carries it
	engine.Use(middleware.RequestID())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	if container.Metrics != nil {
		engine.Use(observability.NewHTTPMetrics(container.Metrics.Registry).Middleware())
	}
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigin))

	engine.NoRoute(func(c *gin.Context) {
		c.Error(errors.NewNotFoundError("ROUTE_NOT_FOUND", "Route not found"))
	})

	rateLimiter := middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptions{
		Limit: rate.Limit(cfg.Security.RateLimit),
		Burst: cfg.Security.RateLimitBurst,
	})

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		RateLimiter: rateLimiter,
		Validator:   v,
	}, nil
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	healthHandler := api.NewHealthHandler(c.Health, Version)
	healthHandler.RegisterRoutes(r.Engine)

	if c.Metrics != nil {
		r.Engine.GET("/metrics", gin.WrapH(c.Metrics.Handler()))
	}

	v1 := r.Engine.Group("/api/v1")
	healthHandler.RegisterRoutes(v1)

	auth := middleware.CookieAuth(c.JWTService, c.CookieSigner, c.Config.Auth.CookieName)
	chatHandler := api.NewChatHandler(c.ChatService, c.Config.Errors.LegacyMarker)

	chat := v1.Group("/chat")
	chat.Use(r.RateLimiter.Middleware())
	chatHandler.RegisterRoutes(chat, r.Validator.Middleware(), auth)
}

// ReloadSchema re-reads a file-backed request schema. It is a no-op for the
// built-in schema.
func (r *Router) ReloadSchema() error {
	if r.Container.Config.Security.SchemaPath == "" {
		return nil
	}
	return r.Validator.ReloadSchema()
}

// Close stops background work owned by the router
func (r *Router) Close() {
	r.RateLimiter.Stop()
}

// corsMiddleware admits a single origin with credentials
func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && origin == allowedOrigin {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Add("Vary", "Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-Request-ID, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func loadValidator(schemaPath string) (*validator.OpenAPIValidator, error) {
	if schemaPath == "" {
		return validator.Default()
	}
	return validator.NewOpenAPIValidatorFromFile(schemaPath)
}
