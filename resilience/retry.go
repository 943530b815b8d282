package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/trailmind/dispatch/core"
)

// RetryConfig configures retry behavior: max attempts N, initial
// delay d0, multiplicative backoff factor b, cap d_max, and jitter
// fraction j in [0,1]. Predicate, when set, overrides the default
// all-errors-retryable rule; NonRetryable, when an error matches, always
// propagates immediately regardless of Predicate.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFraction float64
	NonRetryable  func(error) bool
	Predicate     func(error) bool
}

// DefaultRetryConfig provides sensible defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		BackoffFactor:  2.0,
		JitterFraction: 0.1,
	}
}

// delayForAttempt computes delay(k) = min(d0*b^k, d_max) for the 0-indexed
// attempt k, then perturbs it uniformly in [-j*delta, +j*delta], clamped
// to >= 0. With j == 0 the result is exactly min(d0*b^k, d_max), the
// deterministic case the tests check against.
func delayForAttempt(cfg *RetryConfig, k int) time.Duration {
	delta := float64(cfg.InitialDelay)
	for i := 0; i < k; i++ {
		delta *= cfg.BackoffFactor
	}
	if maxD := float64(cfg.MaxDelay); delta > maxD {
		delta = maxD
	}
	if cfg.JitterFraction > 0 {
		spread := cfg.JitterFraction * delta
		delta += (rand.Float64()*2 - 1) * spread
	}
	if delta < 0 {
		delta = 0
	}
	return time.Duration(delta)
}

// Retry executes fn up to config.MaxAttempts times, sleeping between
// attempts per delayForAttempt. Non-retryable errors propagate
// immediately without consuming further attempts.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.NonRetryable != nil && config.NonRetryable(err) {
			return err
		}
		if config.Predicate != nil && !config.Predicate(err) {
			return err
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		delay := delayForAttempt(config, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w: %d attempts, last error: %w", core.ErrRetriesExhausted, config.MaxAttempts, lastErr)
}
