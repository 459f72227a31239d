package resilience

import (
	"errors"
	"sync"
	"time"

	"whatsjuju-chat/backend/pkg/logger"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit open")

// CircuitBreakerState represents the current state of a circuit breaker
type CircuitBreakerState string

const (
	// StateClosed lets every call through
	StateClosed CircuitBreakerState = "closed"
	// StateOpen short-circuits every call until the cooldown elapses
	StateOpen CircuitBreakerState = "open"
	// StateHalfOpen lets a single probe through
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	Name string
	// FailureThreshold consecutive failures open the circuit
	FailureThreshold uint
	// Cooldown is how long the circuit stays open before a probe is allowed
	Cooldown time.Duration
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		Cooldown:         time.Minute,
	}
}

// CircuitBreaker stops calling a failing dependency for a while.
// It never retries on its own; callers decide what to do with ErrCircuitOpen.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	log    *logger.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       CircuitBreakerState
	failures    uint
	openedAt    time.Time
	probing     bool
	totalCalls  uint64
	totalFails  uint64
	openCount   uint64
	lastFailure time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, log *logger.Logger) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 1
	}
	return &CircuitBreaker{
		config: config,
		log:    log,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn unless the circuit is open
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Cooldown {
			return false
		}
		cb.state = StateHalfOpen
		cb.log.Info("Circuit breaker half-open", "name", cb.config.Name)
		fallthrough
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
	}

	cb.totalCalls++
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasProbe := cb.probing
	cb.probing = false

	if err == nil {
		if cb.state != StateClosed {
			cb.log.Info("Circuit breaker closed", "name", cb.config.Name)
		}
		cb.state = StateClosed
		cb.failures = 0
		return
	}

	cb.totalFails++
	cb.failures++
	cb.lastFailure = cb.now()

	if wasProbe || cb.failures >= cb.config.FailureThreshold {
		cb.state = StateOpen
		cb.openedAt = cb.now()
		cb.openCount++
		cb.log.Warn("Circuit breaker opened",
			"name", cb.config.Name,
			"failures", cb.failures,
			"error", err.Error(),
		)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetMetrics returns counters for health reporting
func (cb *CircuitBreaker) GetMetrics() map[string]any {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]any{
		"name":               cb.config.Name,
		"state":              string(cb.state),
		"total_requests":     cb.totalCalls,
		"total_failures":     cb.totalFails,
		"open_circuit_count": cb.openCount,
		"last_failure_time":  cb.lastFailure,
	}
}
