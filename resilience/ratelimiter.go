package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trailmind/dispatch/core"
)

// RateLimiterAlgorithm selects between the two supported algorithms.
type RateLimiterAlgorithm string

const (
	TokenBucket   RateLimiterAlgorithm = "token_bucket"
	SlidingWindow RateLimiterAlgorithm = "sliding_window"
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	Name        string
	Algorithm   RateLimiterAlgorithm
	MaxCalls    int
	Period      time.Duration
	BurstSize   int // token bucket capacity B; defaults to MaxCalls
	WaitTimeout time.Duration
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Name:      "default",
		Algorithm: TokenBucket,
		MaxCalls:  20,
		Period:    time.Second,
	}
}

// RateLimiter admits calls under one of two algorithms, selected at
// construction. Both share the same Acquire/SecondsUntilAdmission
// surface so callers don't need to know which is active.
type RateLimiter struct {
	config *RateLimiterConfig

	mu sync.Mutex

	// token bucket state
	tokens     float64
	lastRefill time.Time
	refillRate float64 // tokens per second
	burst      float64

	// sliding window state
	timestamps []time.Time
}

// NewRateLimiter builds a RateLimiter, defaulting a nil config.
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimiterConfig()
	}
	if config.BurstSize <= 0 {
		config.BurstSize = config.MaxCalls
	}
	rl := &RateLimiter{
		config:     config,
		lastRefill: time.Now(),
		refillRate: float64(config.MaxCalls) / config.Period.Seconds(),
		burst:      float64(config.BurstSize),
	}
	rl.tokens = rl.burst
	return rl
}

// Acquire debits one call's worth of capacity, blocking up to
// config.WaitTimeout (if set) and ctx's deadline. Returns
// core.ErrRateLimitExceeded once capacity cannot be granted in time.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	switch rl.config.Algorithm {
	case SlidingWindow:
		return rl.acquireSlidingWindow(ctx)
	default:
		return rl.acquireTokenBucket(ctx)
	}
}

func (rl *RateLimiter) acquireTokenBucket(ctx context.Context) error {
	deadline := time.Now().Add(rl.config.WaitTimeout)
	for {
		rl.mu.Lock()
		rl.refillLocked()
		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - rl.tokens) / rl.refillRate * float64(time.Second))
		rl.mu.Unlock()

		if rl.config.WaitTimeout <= 0 {
			return fmt.Errorf("%w: %s", core.ErrRateLimitExceeded, rl.config.Name)
		}
		if time.Now().Add(wait).After(deadline) {
			return fmt.Errorf("%w: %s", core.ErrRateLimitExceeded, rl.config.Name)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (rl *RateLimiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastRefill = now
}

func (rl *RateLimiter) acquireSlidingWindow(ctx context.Context) error {
	deadline := time.Now().Add(rl.config.WaitTimeout)
	for {
		rl.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-rl.config.Period)
		kept := rl.timestamps[:0]
		for _, ts := range rl.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		rl.timestamps = kept

		if len(rl.timestamps) < rl.config.MaxCalls {
			rl.timestamps = append(rl.timestamps, now)
			rl.mu.Unlock()
			return nil
		}
		wait := rl.timestamps[0].Add(rl.config.Period).Sub(now)
		rl.mu.Unlock()

		if rl.config.WaitTimeout <= 0 {
			return fmt.Errorf("%w: %s", core.ErrRateLimitExceeded, rl.config.Name)
		}
		if time.Now().Add(wait).After(deadline) {
			return fmt.Errorf("%w: %s", core.ErrRateLimitExceeded, rl.config.Name)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SecondsUntilAdmission reports how long until the next call would be
// admitted without waiting; the token bucket algorithm answers the same
// question in terms of its refill rate.
func (rl *RateLimiter) SecondsUntilAdmission() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.config.Algorithm == SlidingWindow {
		if len(rl.timestamps) < rl.config.MaxCalls {
			return 0
		}
		wait := time.Until(rl.timestamps[0].Add(rl.config.Period))
		if wait < 0 {
			return 0
		}
		return wait.Seconds()
	}

	rl.refillLocked()
	if rl.tokens >= 1 {
		return 0
	}
	return (1 - rl.tokens) / rl.refillRate
}
