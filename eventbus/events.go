package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// EventType names one of the catalog entries below.
type EventType string

const (
	EventWorkerLoaded      EventType = "worker.loaded"
	EventWorkerStarted     EventType = "worker.started"
	EventWorkerStopped     EventType = "worker.stopped"
	EventWorkerError       EventType = "worker.error"
	EventDispatchStarted   EventType = "dispatch.started"
	EventDispatchCompleted EventType = "dispatch.completed"
	EventDispatchDegraded  EventType = "dispatch.degraded"
	EventDispatchFailed    EventType = "dispatch.failed"
	EventWorkerCompleted   EventType = "worker.completed"
	EventWorkerSucceeded   EventType = "worker.succeeded"
	EventWorkerFailed      EventType = "worker.failed"
	EventCircuitOpened     EventType = "resilience.circuit_opened"
	EventCircuitClosed     EventType = "resilience.circuit_closed"
	EventDecisionEmitted   EventType = "judge.decision_emitted"
)

// Event is one published occurrence, carrying the identity fields every
// event requires (event_id, event_type, timestamp, source, optional
// correlation_id) plus the dispatch-specific fields (waypoint,
// worker) most handlers key off of. Payload carries whatever remains
// free-form per EventType; handlers type-assert the fields they care
// about. Events are immutable once published.
type Event struct {
	ID            string
	Type          EventType
	Timestamp     time.Time
	Source        string
	CorrelationID string
	WaypointID    string
	WorkerID      string
	Payload       map[string]interface{}
}

// New builds an Event with a freshly generated ID, stamping Type and
// Source; callers fill in the remaining fields before Publish.
func New(evType EventType, source string) Event {
	return Event{
		ID:        "evt-" + uuid.New().String(),
		Type:      evType,
		Timestamp: time.Now(),
		Source:    source,
		Payload:   make(map[string]interface{}),
	}
}
