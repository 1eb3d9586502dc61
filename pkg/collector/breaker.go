package collector

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when the breaker is refusing calls.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState is the current breaker position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

const (
	// DefaultFailureThreshold opens the breaker after this many
	// consecutive failures.
	DefaultFailureThreshold = 5
	// DefaultBreakerTimeout is how long the breaker stays open
	// before allowing a probe.
	DefaultBreakerTimeout = 30 * time.Second
)

// CircuitBreaker guards the sink from a failing backend. After the
// failure threshold it rejects calls outright until the timeout
// passes, then lets a single probe through.
type CircuitBreaker struct {
	mu          sync.Mutex
	threshold   int
	timeout     time.Duration
	failures    int
	state       BreakerState
	nextAttempt time.Time

	now func() time.Time
}

// NewCircuitBreaker builds a closed breaker. Non-positive arguments
// use the defaults.
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// Do runs fn under the breaker. When open before the retry deadline
// it fails fast with ErrBreakerOpen.
func (cb *CircuitBreaker) Do(fn func() error) error {
	cb.mu.Lock()
	if cb.state == BreakerOpen {
		if cb.now().Before(cb.nextAttempt) {
			wait := cb.nextAttempt.Sub(cb.now())
			cb.mu.Unlock()
			return fmt.Errorf("%w, next attempt in %s", ErrBreakerOpen, wait.Round(time.Second))
		}
		cb.state = BreakerHalfOpen
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		if cb.failures >= cb.threshold {
			cb.state = BreakerOpen
			cb.nextAttempt = cb.now().Add(cb.timeout)
		}
		return err
	}
	cb.failures = 0
	cb.state = BreakerClosed
	return nil
}

// State reports the breaker position without mutating it.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures reports the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
