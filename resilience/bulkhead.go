package resilience

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/trailmind/dispatch/core"
)

// BulkheadConfig configures a Bulkhead: C concurrent permits plus an
// optional Q queue depth for callers willing to wait.
type BulkheadConfig struct {
	Name        string
	Capacity    int
	QueueSize   int
	WaitTimeout time.Duration
}

// DefaultBulkheadConfig returns sensible defaults.
func DefaultBulkheadConfig() *BulkheadConfig {
	return &BulkheadConfig{
		Name:        "default",
		Capacity:    8,
		QueueSize:   16,
		WaitTimeout: 2 * time.Second,
	}
}

// Bulkhead is a semaphore with a bounded wait queue. It rejects with
// core.ErrBulkheadFull once both the permits and the queue are exhausted.
type Bulkhead struct {
	config *BulkheadConfig

	permits chan struct{}
	queued  atomic.Int32
	inFlight atomic.Int32
	maxConcurrencySeen atomic.Int32
}

// NewBulkhead builds a Bulkhead, defaulting a nil config.
func NewBulkhead(config *BulkheadConfig) *Bulkhead {
	if config == nil {
		config = DefaultBulkheadConfig()
	}
	if config.Capacity <= 0 {
		config.Capacity = 1
	}
	return &Bulkhead{
		config:  config,
		permits: make(chan struct{}, config.Capacity),
	}
}

// Acquire blocks until a permit is available, the queue capacity and
// wait timeout are exhausted (in which case it returns
// core.ErrBulkheadFull), or ctx is cancelled. A non-positive WaitTimeout
// means queuing is disabled entirely: a caller that can't get a permit
// immediately is rejected with core.ErrBulkheadFull rather than waiting
// on ctx indefinitely. The returned release func must be called exactly
// once to return the permit.
func (b *Bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case b.permits <- struct{}{}:
		return b.acquired(), nil
	default:
	}

	if b.config.WaitTimeout <= 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrBulkheadFull, b.config.Name)
	}

	if b.queued.Load() >= int32(b.config.QueueSize) {
		return nil, fmt.Errorf("%w: %s", core.ErrBulkheadFull, b.config.Name)
	}

	b.queued.Add(1)
	defer b.queued.Add(-1)

	waitCtx, cancel := context.WithTimeout(ctx, b.config.WaitTimeout)
	defer cancel()

	select {
	case b.permits <- struct{}{}:
		return b.acquired(), nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", core.ErrBulkheadFull, b.config.Name)
	}
}

func (b *Bulkhead) acquired() func() {
	inFlight := b.inFlight.Add(1)
	for {
		seen := b.maxConcurrencySeen.Load()
		if inFlight <= seen || b.maxConcurrencySeen.CompareAndSwap(seen, inFlight) {
			break
		}
	}
	return func() {
		<-b.permits
		b.inFlight.Add(-1)
	}
}

// Stats is a point-in-time snapshot of bulkhead occupancy.
type Stats struct {
	InFlight           int32
	Queued             int32
	MaxConcurrencySeen int32
	Capacity           int
}

// Stats returns the bulkhead's current statistics snapshot.
func (b *Bulkhead) Stats() Stats {
	return Stats{
		InFlight:           b.inFlight.Load(),
		Queued:             b.queued.Load(),
		MaxConcurrencySeen: b.maxConcurrencySeen.Load(),
		Capacity:           b.config.Capacity,
	}
}
