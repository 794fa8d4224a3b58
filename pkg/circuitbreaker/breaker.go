package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrOpen is returned by Execute while the breaker rejects calls
var ErrOpen = errors.New("circuit breaker is open")

// State represents the state of the circuit breaker
type State int32

const (
	StateClosed   State = iota // calls flow normally
	StateHalfOpen              // a limited number of probe calls are allowed
	StateOpen                  // calls are rejected until ResetTimeout elapses
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name             string
	state            int32
	failureThreshold int64
	resetTimeout     time.Duration
	halfOpenMaxCalls int64
	failureCount     int64
	halfOpenCalls    int64
	lastStateChange  time.Time
	mutex            sync.RWMutex
	onStateChange    func(name string, from, to State)
}

// Config configures a CircuitBreaker
type Config struct {
	Name             string
	FailureThreshold int64
	ResetTimeout     time.Duration
	HalfOpenMaxCalls int64
	// OnStateChange is invoked after every transition
	OnStateChange func(name string, from, to State)
}

// New creates a closed circuit breaker
func New(config Config) *CircuitBreaker {
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}

	return &CircuitBreaker{
		name:             config.Name,
		state:            int32(StateClosed),
		failureThreshold: config.FailureThreshold,
		resetTimeout:     config.ResetTimeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
		lastStateChange:  time.Now(),
		onStateChange:    config.OnStateChange,
	}
}

// Name identifies the protected dependency
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Allow checks if a request is allowed based on the circuit breaker state
func (cb *CircuitBreaker) Allow() bool {
	switch cb.State() {
	case StateClosed:
		return true
	case StateOpen:
		cb.mutex.RLock()
		elapsed := time.Since(cb.lastStateChange)
		cb.mutex.RUnlock()

		if elapsed < cb.resetTimeout {
			return false
		}
		if cb.transition(StateOpen, StateHalfOpen) {
			atomic.StoreInt64(&cb.halfOpenCalls, 0)
		}
		return cb.Allow()
	case StateHalfOpen:
		return atomic.AddInt64(&cb.halfOpenCalls, 1) <= cb.halfOpenMaxCalls
	default:
		return false
	}
}

// Success reports a successful operation
func (cb *CircuitBreaker) Success() {
	switch cb.State() {
	case StateHalfOpen:
		if cb.transition(StateHalfOpen, StateClosed) {
			atomic.StoreInt64(&cb.failureCount, 0)
		}
	case StateClosed:
		atomic.StoreInt64(&cb.failureCount, 0)
	}
}

// Failure reports a failed operation
func (cb *CircuitBreaker) Failure() {
	switch cb.State() {
	case StateClosed:
		if atomic.AddInt64(&cb.failureCount, 1) >= cb.failureThreshold {
			cb.transition(StateClosed, StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateHalfOpen, StateOpen)
	}
}

// Execute runs fn if the breaker allows it and records the outcome.
// Errors for which countable returns false do not trip the breaker.
func (cb *CircuitBreaker) Execute(fn func() error, countable func(error) bool) error {
	if !cb.Allow() {
		return ErrOpen
	}

	err := fn()
	switch {
	case err == nil:
		cb.Success()
	case countable == nil || countable(err):
		cb.Failure()
	default:
		cb.Success()
	}
	return err
}

func (cb *CircuitBreaker) transition(from, to State) bool {
	if !atomic.CompareAndSwapInt32(&cb.state, int32(from), int32(to)) {
		return false
	}

	cb.mutex.Lock()
	cb.lastStateChange = time.Now()
	cb.mutex.Unlock()

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
	return true
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	return State(atomic.LoadInt32(&cb.state))
}

// Snapshot is a point-in-time view of the breaker for diagnostics
type Snapshot struct {
	Name             string    `json:"name"`
	State            string    `json:"state"`
	FailureCount     int64     `json:"failureCount"`
	FailureThreshold int64     `json:"failureThreshold"`
	HalfOpenCalls    int64     `json:"halfOpenCalls"`
	ResetTimeout     string    `json:"resetTimeout"`
	LastStateChange  time.Time `json:"lastStateChange"`
	TimeInState      string    `json:"timeInState"`
}

// Snapshot returns metrics about the circuit breaker
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mutex.RLock()
	lastChange := cb.lastStateChange
	cb.mutex.RUnlock()

	return Snapshot{
		Name:             cb.name,
		State:            cb.State().String(),
		FailureCount:     atomic.LoadInt64(&cb.failureCount),
		FailureThreshold: cb.failureThreshold,
		HalfOpenCalls:    atomic.LoadInt64(&cb.halfOpenCalls),
		ResetTimeout:     cb.resetTimeout.String(),
		LastStateChange:  lastChange,
		TimeInState:      time.Since(lastChange).Round(time.Millisecond).String(),
	}
}
