package go_mtpc

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState is the current state of a dial circuit breaker.
type CircuitState string

const (
	// CircuitClosed allows dial attempts through normally.
	CircuitClosed CircuitState = "closed"

	// CircuitOpen fails dial attempts fast after repeated failures.
	CircuitOpen CircuitState = "open"

	// CircuitHalfOpen lets a single probe dial through to test recovery.
	CircuitHalfOpen CircuitState = "half-open"
)

// CircuitBreaker guards dial attempts against a datacenter that keeps
// refusing connections. After maxFailures consecutive failures the
// circuit opens and dials fail fast without touching the network; after
// resetTimeout a single probe is allowed through, and its outcome decides
// whether the circuit closes again or re-opens.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	failures     int
	lastFailure  time.Time
	state        CircuitState
	mu           sync.Mutex
}

// NewCircuitBreaker creates a closed breaker. maxFailures of 0 disables
// automatic opening.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
	}
}

// Execute runs fn if the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := fn()
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			Debug("dial circuit transitioning to half-open")
			return nil
		}
		return &FailedError{Reason: fmt.Sprintf("dial circuit open (last failure %v ago)",
			time.Since(cb.lastFailure).Round(time.Second))}

	case CircuitHalfOpen, CircuitClosed:
		return nil

	default:
		return &FailedError{Reason: fmt.Sprintf("dial circuit in unknown state %q", cb.state)}
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		switch cb.state {
		case CircuitClosed:
			if cb.maxFailures > 0 && cb.failures >= cb.maxFailures {
				cb.state = CircuitOpen
				Debug("dial circuit opened after %d failures", cb.failures)
			}
		case CircuitHalfOpen:
			cb.state = CircuitOpen
			Debug("dial circuit re-opened after failed probe")
		}
		return
	}

	switch cb.state {
	case CircuitHalfOpen:
		cb.state = CircuitClosed
		cb.failures = 0
		Debug("dial circuit closed after successful probe")
	case CircuitClosed:
		cb.failures = 0
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// IsOpen reports whether the circuit is open.
func (cb *CircuitBreaker) IsOpen() bool { return cb.State() == CircuitOpen }

// Failures returns the consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the circuit closed with zero failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
}

func (cb *CircuitBreaker) String() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return fmt.Sprintf("CircuitBreaker{state=%s, failures=%d/%d}",
		cb.state, cb.failures, cb.maxFailures)
}
