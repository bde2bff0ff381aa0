package obs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker guarding a backend.Backend.
type CircuitState int

const (
	// CircuitClosed - normal operation, block I/O is allowed through.
	CircuitClosed CircuitState = iota
	// CircuitOpen - the backend has failed repeatedly; calls are rejected
	// without reaching it.
	CircuitOpen
	// CircuitHalfOpen - probing whether the backend has recovered.
	CircuitHalfOpen
)

func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker, used only in error messages.
	Name string

	// MaxFailures is the number of consecutive failures before opening.
	MaxFailures int

	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration

	// MaxRequests is how many probe calls are allowed while half-open.
	MaxRequests int
}

// DefaultBackendCircuitBreakerConfig returns sensible defaults for guarding
// one backend.Backend's Read/Write calls.
func DefaultBackendCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxFailures: 5,
		Timeout:     10 * time.Second,
		MaxRequests: 1,
	}
}

// CircuitBreaker trips after a run of consecutive backend I/O failures and
// rejects further calls for Timeout before probing again. An archive only
// ever has one active writer and one active backend per Store, so unlike a
// multi-tenant service breaker this one is not keyed by name or shared
// across callers.
type CircuitBreaker struct {
	mu     sync.Mutex
	config CircuitBreakerConfig
	state  CircuitState

	failures   int
	successes  int
	requests   int
	generation int64
	expiry     time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		state:  CircuitClosed,
	}
}

// Execute runs fn if the circuit allows it, recording the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	generation, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	err = fn()
	cb.afterRequest(generation, err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() (int64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)

	if state == CircuitOpen {
		return generation, fmt.Errorf("obs: circuit breaker %q is open", cb.config.Name)
	}
	if state == CircuitHalfOpen && cb.requests >= cb.config.MaxRequests {
		return generation, fmt.Errorf("obs: circuit breaker %q is half-open and at capacity", cb.config.Name)
	}

	cb.requests++
	return generation, nil
}

func (cb *CircuitBreaker) afterRequest(generation int64, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, currentGeneration := cb.currentState(now)
	if generation != currentGeneration {
		return
	}

	if err != nil {
		cb.onFailure(state, now)
	} else {
		cb.onSuccess(state, now)
	}
}

func (cb *CircuitBreaker) onFailure(state CircuitState, now time.Time) {
	cb.failures++

	switch state {
	case CircuitClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.setState(CircuitOpen, now)
		}
	case CircuitHalfOpen:
		cb.setState(CircuitOpen, now)
	}
}

func (cb *CircuitBreaker) onSuccess(state CircuitState, now time.Time) {
	cb.successes++

	if state == CircuitClosed {
		cb.failures = 0
	}

	if state == CircuitHalfOpen && cb.successes >= cb.config.MaxRequests {
		cb.setState(CircuitClosed, now)
	}
}

func (cb *CircuitBreaker) currentState(now time.Time) (CircuitState, int64) {
	if cb.state == CircuitOpen && cb.expiry.Before(now) {
		cb.setState(CircuitHalfOpen, now)
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(state CircuitState, now time.Time) {
	if cb.state == state {
		return
	}

	cb.state = state
	cb.generation++
	cb.requests = 0
	cb.failures = 0
	cb.successes = 0

	if state == CircuitOpen {
		cb.expiry = now.Add(cb.config.Timeout)
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, _ := cb.currentState(time.Now())
	return state
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(CircuitClosed, time.Now())
}
