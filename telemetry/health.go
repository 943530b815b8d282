package telemetry

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Health is the observability skeleton's self-reported status, as served
// by Registry.Handler to any HTTP health endpoint a host wires up.
type Health struct {
	Initialized      bool   `json:"initialized"`
	Uptime           string `json:"uptime"`
	MetricsEmitted   int64  `json:"metrics_emitted"`
	MetricsErrors    int64  `json:"metrics_errors"`
	ActiveDispatches int64  `json:"active_dispatches"`
}

// Registry is a health accumulator. orchestration.New creates one per
// Orchestrator, which records its dispatch starts and finishes there; no
// other package records into it.
type Registry struct {
	startTime        time.Time
	emitted          atomic.Int64
	errors           atomic.Int64
	activeDispatches atomic.Int64
}

// NewRegistry creates a health registry, stamping its start time.
func NewRegistry() *Registry {
	return &Registry{startTime: time.Now()}
}

// RecordEmitted counts one successfully recorded metric or span event.
func (r *Registry) RecordEmitted() { r.emitted.Add(1) }

// RecordError counts one observability-layer error (e.g. a failed span
// export), distinct from domain-level dispatch failures.
func (r *Registry) RecordError() { r.errors.Add(1) }

// DispatchStarted/DispatchFinished track in-flight dispatch count for the
// health snapshot's ActiveDispatches field.
func (r *Registry) DispatchStarted()  { r.activeDispatches.Add(1) }
func (r *Registry) DispatchFinished() { r.activeDispatches.Add(-1) }

// Snapshot returns the current health status.
func (r *Registry) Snapshot() Health {
	return Health{
		Initialized:      true,
		Uptime:           time.Since(r.startTime).String(),
		MetricsEmitted:   r.emitted.Load(),
		MetricsErrors:    r.errors.Load(),
		ActiveDispatches: r.activeDispatches.Load(),
	}
}

// Handler serves the health snapshot as JSON.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		health := r.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if health.ActiveDispatches < 0 {
			w.WriteHeader(http.StatusInternalServerError)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(health)
	}
}
