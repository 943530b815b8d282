package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmind/dispatch/core"
)

func TestTokenBucketAllowsBurstThenRejects(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{Name: "t", Algorithm: TokenBucket, MaxCalls: 2, Period: time.Second, BurstSize: 2})

	require.NoError(t, rl.Acquire(context.Background()))
	require.NoError(t, rl.Acquire(context.Background()))

	err := rl.Acquire(context.Background())
	assert.ErrorIs(t, err, core.ErrRateLimitExceeded)
}

func TestTokenBucketRefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{Name: "t", Algorithm: TokenBucket, MaxCalls: 10, Period: time.Second, BurstSize: 1})

	require.NoError(t, rl.Acquire(context.Background()))
	time.Sleep(150 * time.Millisecond)
	assert.NoError(t, rl.Acquire(context.Background()), "10 calls/sec should refill within 150ms")
}

func TestTokenBucketWaitsUpToTimeout(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{
		Name: "t", Algorithm: TokenBucket, MaxCalls: 10, Period: time.Second, BurstSize: 1,
		WaitTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, rl.Acquire(context.Background()))

	start := time.Now()
	err := rl.Acquire(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestSlidingWindowAllowsMaxCallsPerPeriod(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{Name: "t", Algorithm: SlidingWindow, MaxCalls: 3, Period: time.Second})

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Acquire(context.Background()))
	}
	err := rl.Acquire(context.Background())
	assert.ErrorIs(t, err, core.ErrRateLimitExceeded)
}

func TestSlidingWindowExpiresOldEntries(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{Name: "t", Algorithm: SlidingWindow, MaxCalls: 1, Period: 50 * time.Millisecond})

	require.NoError(t, rl.Acquire(context.Background()))
	time.Sleep(70 * time.Millisecond)
	assert.NoError(t, rl.Acquire(context.Background()))
}

func TestSecondsUntilAdmissionZeroWhenCapacityAvailable(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{Name: "t", Algorithm: SlidingWindow, MaxCalls: 5, Period: time.Second})
	assert.Zero(t, rl.SecondsUntilAdmission())
}

func TestSecondsUntilAdmissionPositiveWhenExhausted(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{Name: "t", Algorithm: SlidingWindow, MaxCalls: 1, Period: time.Second})
	require.NoError(t, rl.Acquire(context.Background()))
	assert.Greater(t, rl.SecondsUntilAdmission(), 0.0)
}

func TestRateLimiterAcquireCancelledByContext(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{
		Name: "t", Algorithm: TokenBucket, MaxCalls: 1, Period: time.Second, BurstSize: 1,
		WaitTimeout: time.Second,
	})
	require.NoError(t, rl.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := rl.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
