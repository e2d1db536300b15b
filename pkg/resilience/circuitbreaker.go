package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"cooperative-ai/backend/pkg/logger"
)

// ErrCircuitOpen is returned without calling the protected function while
// the breaker is open
var ErrCircuitOpen = errors.New("circuit open")

// State represents the current state of a circuit breaker
type State string

const (
	// StateClosed lets every call through
	StateClosed State = "closed"
	// StateOpen short-circuits every call until the retry timeout passes
	StateOpen State = "open"
	// StateHalfOpen lets a limited number of probe calls through
	StateHalfOpen State = "half-open"
)

// Config holds configuration for a circuit breaker
type Config struct {
	Name string
	// FailureThreshold consecutive failures open the breaker
	FailureThreshold uint
	// SuccessThreshold successful probes close it again
	SuccessThreshold uint
	// RetryTimeout is how long the breaker stays open before probing
	RetryTimeout time.Duration
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RetryTimeout:     30 * time.Second,
	}
}

// Snapshot is a point-in-time view of the breaker counters
type Snapshot struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	TotalRequests    uint64    `json:"total_requests"`
	TotalFailures    uint64    `json:"total_failures"`
	TotalSuccesses   uint64    `json:"total_successes"`
	Rejected         uint64    `json:"rejected"`
	OpenCircuitCount uint64    `json:"open_circuit_count"`
	LastFailureTime  time.Time `json:"last_failure_time"`
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
	mutex sync.Mutex

	state           State
	failureCount    uint
	successCount    uint
	inFlightProbes  uint
	nextAttemptTime time.Time

	stats Snapshot
}

// NewCircuitBreaker creates a new circuit breaker. Zero thresholds fall back
// to the defaults.
func NewCircuitBreaker(cfg Config, log *logger.Logger) *CircuitBreaker {
	def := DefaultConfig(cfg.Name)
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.RetryTimeout <= 0 {
		cfg.RetryTimeout = def.RetryTimeout
	}
	if log == nil {
		log = logger.Discard()
	}

	return &CircuitBreaker{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		state: StateClosed,
		stats: Snapshot{Name: cfg.Name},
	}
}

// Execute runs fn through the breaker. Context cancellation by the caller is
// not counted as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, ok := cb.allowRequest()
	if !ok {
		cb.log.Warn("Circuit breaker preventing request", "name", cb.cfg.Name)
		return ErrCircuitOpen
	}

	startTime := cb.now()
	err := fn(ctx)

	switch {
	case err == nil:
		cb.recordSuccess(probe)
		cb.log.Debug("Circuit breaker recorded success",
			"name", cb.cfg.Name,
			"duration", cb.now().Sub(startTime).String(),
		)
	case ctx.Err() != nil:
		cb.release(probe)
	default:
		cb.recordFailure(probe)
		cb.log.Warn("Circuit breaker recorded failure",
			"name", cb.cfg.Name,
			"error", err.Error(),
			"duration", cb.now().Sub(startTime).String(),
		)
	}
	return err
}

// allowRequest reports whether a call may proceed and whether it is a
// half-open probe
func (cb *CircuitBreaker) allowRequest() (probe bool, ok bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.stats.TotalRequests++

	if cb.state == StateOpen && !cb.now().Before(cb.nextAttemptTime) {
		cb.toHalfOpen()
	}

	switch cb.state {
	case StateClosed:
		return false, true
	case StateHalfOpen:
		if cb.successCount+cb.inFlightProbes < cb.cfg.SuccessThreshold {
			cb.inFlightProbes++
			return true, true
		}
	}

	cb.stats.Rejected++
	return false, false
}

func (cb *CircuitBreaker) release(probe bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if probe && cb.inFlightProbes > 0 {
		cb.inFlightProbes--
	}
}

func (cb *CircuitBreaker) recordSuccess(probe bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.stats.TotalSuccesses++
	if probe && cb.inFlightProbes > 0 {
		cb.inFlightProbes--
	}

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.toClosed()
		}
	}
}

func (cb *CircuitBreaker) recordFailure(probe bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.stats.TotalFailures++
	cb.stats.LastFailureTime = cb.now()
	if probe && cb.inFlightProbes > 0 {
		cb.inFlightProbes--
	}

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.toOpen()
		}
	case StateHalfOpen:
		// A failed probe re-opens immediately
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.stats.OpenCircuitCount++
	cb.nextAttemptTime = cb.now().Add(cb.cfg.RetryTimeout)

	cb.log.Info("Circuit breaker opened",
		"name", cb.cfg.Name,
		"failures", cb.failureCount,
		"nextAttempt", cb.nextAttemptTime.Format(time.RFC3339),
	)
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.successCount = 0
	cb.inFlightProbes = 0

	cb.log.Info("Circuit breaker half-open", "name", cb.cfg.Name)
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0

	cb.log.Info("Circuit breaker closed", "name", cb.cfg.Name)
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.state
}

// Snapshot returns the current counters
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	s := cb.stats
	s.State = cb.state
	return s
}
