// Package eventbus is the in-process pub/sub used for dispatch
// observability: per-subscriber serial delivery, handlers isolated from
// each other's panics and from the publisher.
package eventbus

import (
	"sync"

	"github.com/trailmind/dispatch/core"
)

// Handler processes one Event. A Handler that panics is recovered and
// logged; it never prevents delivery to other subscribers and never
// propagates to Publish's caller.
type Handler func(Event)

type subscriber struct {
	id      int
	handler Handler
	queue   chan Event
}

// Bus is the process-wide event bus. One instance is created at startup
// and shared by every package that publishes or subscribes — one of the
// four legitimate global-mutable-state containers this repository
// carries (alongside the worker registry, the resilience envelope
// registry, and the telemetry health registry).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]*subscriber
	nextID      int
	logger      core.Logger
	queueSize   int
}

// New builds an empty Bus. queueSize bounds each subscriber's per-type
// delivery channel; an event published while that channel is full is
// dropped for that subscriber (see Publish).
func New(logger core.Logger, queueSize int) *Bus {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Bus{
		subscribers: make(map[EventType][]*subscriber),
		logger:      logger,
		queueSize:   queueSize,
	}
}

// Subscribe registers handler for eventType. Returns an Unsubscribe func.
func (b *Bus) Subscribe(eventType EventType, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	sub := &subscriber{id: id, handler: handler, queue: make(chan Event, b.queueSize)}
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
	b.mu.Unlock()

	go b.deliverLoop(sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[eventType]
		for i, s := range subs {
			if s.id == id {
				close(s.queue)
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// deliverLoop serializes delivery to one subscriber, recovering any
// panic from its handler so one bad handler never stalls the bus or
// takes down the publisher.
func (b *Bus) deliverLoop(sub *subscriber) {
	for ev := range sub.queue {
		b.invoke(sub.handler, ev)
	}
}

func (b *Bus) invoke(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", map[string]interface{}{
				"event_type": ev.Type,
				"panic":      r,
			})
		}
	}()
	handler(ev)
}

// Publish delivers ev to every subscriber of ev.Type, in the global order
// Publish calls arrive in for that type. Delivery is asynchronous per
// subscriber and Publish never blocks: when a subscriber's queue is full,
// the event is dropped for that subscriber and a warning is logged.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := append([]*subscriber(nil), b.subscribers[ev.Type]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.queue <- ev:
		default:
			b.logger.Warn("event subscriber queue full, dropping event", map[string]interface{}{
				"event_type": ev.Type,
			})
		}
	}
}
