package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmind/dispatch/core"
)

func TestBulkheadAcquireWithinCapacity(t *testing.T) {
	b := NewBulkhead(&BulkheadConfig{Name: "t", Capacity: 2, QueueSize: 0})

	release1, err := b.Acquire(context.Background())
	require.NoError(t, err)
	release2, err := b.Acquire(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, b.Stats().InFlight)
	release1()
	release2()
	assert.EqualValues(t, 0, b.Stats().InFlight)
}

func TestBulkheadRejectsWhenQueueAlsoFull(t *testing.T) {
	b := NewBulkhead(&BulkheadConfig{Name: "t", Capacity: 1, QueueSize: 0})

	release, err := b.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	_, err = b.Acquire(context.Background())
	assert.ErrorIs(t, err, core.ErrBulkheadFull)
}

func TestBulkheadQueuedCallerUnblocksOnRelease(t *testing.T) {
	b := NewBulkhead(&BulkheadConfig{Name: "t", Capacity: 1, QueueSize: 1, WaitTimeout: time.Second})

	release, err := b.Acquire(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var queuedErr error
	go func() {
		defer wg.Done()
		r, err := b.Acquire(context.Background())
		queuedErr = err
		if err == nil {
			r()
		}
	}()

	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()
	assert.NoError(t, queuedErr)
}

func TestBulkheadWaitTimeoutExpiresQueuedCaller(t *testing.T) {
	b := NewBulkhead(&BulkheadConfig{Name: "t", Capacity: 1, QueueSize: 1, WaitTimeout: 20 * time.Millisecond})

	release, err := b.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	_, err = b.Acquire(context.Background())
	assert.ErrorIs(t, err, core.ErrBulkheadFull)
}

func TestBulkheadZeroWaitTimeoutRejectsImmediatelyInsteadOfQueuing(t *testing.T) {
	b := NewBulkhead(&BulkheadConfig{Name: "t", Capacity: 1, QueueSize: 4})

	release, err := b.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := b.Acquire(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, core.ErrBulkheadFull)
	case <-time.After(time.Second):
		t.Fatal("Acquire blocked instead of rejecting immediately with a zero WaitTimeout")
	}
}

func TestBulkheadMaxConcurrencySeenTracksPeak(t *testing.T) {
	b := NewBulkhead(&BulkheadConfig{Name: "t", Capacity: 3, QueueSize: 0})

	r1, _ := b.Acquire(context.Background())
	r2, _ := b.Acquire(context.Background())
	assert.EqualValues(t, 2, b.Stats().MaxConcurrencySeen)
	r1()
	r2()
	assert.EqualValues(t, 2, b.Stats().MaxConcurrencySeen, "peak must persist after release")
}
