package resilience

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trailmind/dispatch/core"
)

// CircuitState is one of the three states a breaker can be in.
type CircuitState int32

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds the plain F/S/R parameters: a
// failure-count threshold, a success-count threshold for recovery, and
// a reset duration before OPEN allows a probe.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int           // F: failures while CLOSED before tripping OPEN
	SuccessThreshold int           // S: consecutive HALF_OPEN successes before closing
	ResetTimeout     time.Duration // R: time OPEN must elapse before a probe is allowed
	Logger           core.Logger
}

// DefaultCircuitBreakerConfig returns sensible F/S/R defaults.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "default",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
		Logger:           core.NoOpLogger{},
	}
}

func (c *CircuitBreakerConfig) validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("%w: FailureThreshold must be positive", core.ErrConfigInvalid)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("%w: SuccessThreshold must be positive", core.ErrConfigInvalid)
	}
	if c.ResetTimeout <= 0 {
		return fmt.Errorf("%w: ResetTimeout must be positive", core.ErrConfigInvalid)
	}
	return nil
}

// CircuitBreaker is a CLOSED/OPEN/HALF_OPEN gate in front of one Worker's
// envelope. State is read via an atomic so CanExecute never blocks on the
// transition mutex; RecordSuccess/RecordFailure re-check the state under
// mu before acting, so a result reported by a probe from a stale
// HALF_OPEN period is ignored once the breaker has already moved on to a
// different state.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	state        atomic.Int32
	openedAt     atomic.Int64 // unix nanos
	failureCount atomic.Int32
	halfOpenSucc atomic.Int32

	mu        sync.Mutex
	listeners []func(name string, from, to CircuitState)
}

// NewCircuitBreaker builds a CircuitBreaker, defaulting a nil config.
func NewCircuitBreaker(config *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = core.NoOpLogger{}
	}
	cb := &CircuitBreaker{config: config}
	cb.state.Store(int32(StateClosed))
	return cb, nil
}

// OnStateChange registers a callback invoked on every state transition.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, fn)
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(cb.state.Load())
}

// CanExecute reports whether a call may proceed right now. In OPEN, the
// first caller after ResetTimeout has elapsed flips the breaker to
// HALF_OPEN and is allowed through as a probe; while the breaker stays
// HALF_OPEN, later callers are allowed through as further probes.
func (cb *CircuitBreaker) CanExecute() bool {
	switch cb.State() {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(time.Unix(0, cb.openedAt.Load())) < cb.config.ResetTimeout {
			return false
		}
		cb.mu.Lock()
		defer cb.mu.Unlock()
		if cb.State() != StateOpen {
			return true
		}
		if time.Since(time.Unix(0, cb.openedAt.Load())) < cb.config.ResetTimeout {
			return false
		}
		cb.halfOpenSucc.Store(0)
		cb.transition(StateOpen, StateHalfOpen)
		return true
	default:
		return false
	}
}

// RecordSuccess reports a successful call. In CLOSED it clears the
// failure counter; in HALF_OPEN, SuccessThreshold consecutive successes
// close the breaker and reset all counters.
func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.State() {
	case StateClosed:
		cb.failureCount.Store(0)
	case StateHalfOpen:
		succ := cb.halfOpenSucc.Add(1)
		if succ >= int32(cb.config.SuccessThreshold) {
			cb.mu.Lock()
			if cb.State() == StateHalfOpen {
				cb.failureCount.Store(0)
				cb.halfOpenSucc.Store(0)
				cb.transition(StateHalfOpen, StateClosed)
			}
			cb.mu.Unlock()
		}
	}
}

// RecordFailure reports a failed call. In CLOSED, FailureThreshold
// failures trips the breaker OPEN. In HALF_OPEN, any failure reopens it
// and restarts the reset timer.
func (cb *CircuitBreaker) RecordFailure() {
	switch cb.State() {
	case StateClosed:
		count := cb.failureCount.Add(1)
		if count >= int32(cb.config.FailureThreshold) {
			cb.mu.Lock()
			if cb.State() == StateClosed {
				cb.trip()
			}
			cb.mu.Unlock()
		}
	case StateHalfOpen:
		cb.mu.Lock()
		if cb.State() == StateHalfOpen {
			cb.trip()
		}
		cb.mu.Unlock()
	}
}

// trip moves the breaker to OPEN and stamps the reopen clock. Callers
// must hold cb.mu.
func (cb *CircuitBreaker) trip() {
	from := cb.State()
	cb.openedAt.Store(time.Now().UnixNano())
	cb.failureCount.Store(0)
	cb.halfOpenSucc.Store(0)
	cb.transition(from, StateOpen)
}

// transition stores the new state and fires listeners. Callers must hold
// cb.mu except in CanExecute's fast-path reads, which never call this.
func (cb *CircuitBreaker) transition(from, to CircuitState) {
	cb.state.Store(int32(to))
	for _, fn := range cb.listeners {
		fn(cb.config.Name, from, to)
	}
	cb.config.Logger.Info("circuit breaker state change", map[string]interface{}{
		"name": cb.config.Name,
		"from": from.String(),
		"to":   to.String(),
	})
}

// Execute runs fn if the breaker currently admits calls, recording the
// outcome against the breaker's counters.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.CanExecute() {
		return fmt.Errorf("%w: %s", core.ErrCircuitOpen, cb.config.Name)
	}
	err := fn()
	if err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}
