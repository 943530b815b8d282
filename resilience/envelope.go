package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// EnvelopeConfig bundles the configuration for all five primitives an
// Envelope composes, plus the Worker timeout itself.
type EnvelopeConfig struct {
	Name         string
	RateLimiter  *RateLimiterConfig
	Bulkhead     *BulkheadConfig
	CircuitBreaker *CircuitBreakerConfig
	Retry        *RetryConfig
	Timeout      time.Duration
}

// Envelope wraps a Worker body in a fixed traversal order, outer to
// inner: rate limiter, bulkhead, circuit breaker, retry, timeout, Worker
// body. Every primitive instance is named and
// addressable through the process-wide Registry below.
type Envelope struct {
	name string

	rateLimiter *RateLimiter
	bulkhead    *Bulkhead
	breaker     *CircuitBreaker
	retryConfig *RetryConfig
	timeout     time.Duration
}

// NewEnvelope constructs an Envelope and registers it under cfg.Name.
func NewEnvelope(cfg *EnvelopeConfig) (*Envelope, error) {
	breaker, err := NewCircuitBreaker(cfg.CircuitBreaker)
	if err != nil {
		return nil, fmt.Errorf("envelope %s: %w", cfg.Name, err)
	}

	retryConfig := cfg.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}

	env := &Envelope{
		name:        cfg.Name,
		rateLimiter: NewRateLimiter(cfg.RateLimiter),
		bulkhead:    NewBulkhead(cfg.Bulkhead),
		breaker:     breaker,
		retryConfig: retryConfig,
		timeout:     cfg.Timeout,
	}
	defaultRegistry.register(env)
	return env, nil
}

// Execute runs fn through the full envelope: rate limiter admission,
// bulkhead permit, circuit breaker gate, then retry with a bounded
// timeout around each attempt. The breaker sits outside the retry loop:
// an OPEN breaker rejects immediately with ErrCircuitOpen rather than
// burning the retry budget attempt by attempt, and the retry's aggregate
// outcome (not each individual attempt) is what the breaker records.
func (e *Envelope) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := e.rateLimiter.Acquire(ctx); err != nil {
		return err
	}

	release, err := e.bulkhead.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return e.breaker.Execute(func() error {
		return Retry(ctx, e.retryConfig, func() error {
			return Timeout(ctx, e.timeout, fn)
		})
	})
}

// Name returns the envelope's registered name.
func (e *Envelope) Name() string { return e.name }

// EnvelopeStats is a snapshot of one envelope's primitive states, useful for
// health endpoints and the CLI's status command.
type EnvelopeStats struct {
	Name          string
	CircuitState  CircuitState
	BulkheadStats Stats
}

// Stats returns a point-in-time snapshot of this envelope's primitives.
func (e *Envelope) Stats() EnvelopeStats {
	return EnvelopeStats{
		Name:          e.name,
		CircuitState:  e.breaker.State(),
		BulkheadStats: e.bulkhead.Stats(),
	}
}

// registry is the process-wide, name-addressable table of live envelopes,
// one of the few legitimate global-mutable-state containers this
// repository carries (alongside the worker registry, the telemetry
// health registry, and the event bus's subscription table).
type registry struct {
	mu        sync.RWMutex
	envelopes map[string]*Envelope
}

var defaultRegistry = &registry{envelopes: make(map[string]*Envelope)}

func (r *registry) register(e *Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes[e.name] = e
}

// Lookup finds a registered envelope by name.
func Lookup(name string) (*Envelope, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	e, ok := defaultRegistry.envelopes[name]
	return e, ok
}

// AllStats returns a snapshot of every registered envelope's stats.
func AllStats() []EnvelopeStats {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	out := make([]EnvelopeStats, 0, len(defaultRegistry.envelopes))
	for _, e := range defaultRegistry.envelopes {
		out = append(out, e.Stats())
	}
	return out
}
