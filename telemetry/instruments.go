// Package telemetry provides the observability skeleton used by the
// Orchestrator and the dispatchctl CLI:
// cached OpenTelemetry counters/histograms, a tracer provider wired for
// local/demo use, and a health snapshot.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments holds cached metric instruments for efficient recording.
// Instrument creation is lazy and double-checked-locking guarded so hot
// paths only pay the read-lock cost once the name is warm.
type Instruments struct {
	meter          metric.Meter
	counters       map[string]metric.Int64Counter
	upDownCounters map[string]metric.Int64UpDownCounter
	histograms     map[string]metric.Float64Histogram
	mu             sync.RWMutex
}

// NewInstruments creates an instrument cache bound to the named meter.
func NewInstruments(meterName string) *Instruments {
	return &Instruments{
		meter:          otel.Meter(meterName),
		counters:       make(map[string]metric.Int64Counter),
		upDownCounters: make(map[string]metric.Int64UpDownCounter),
		histograms:     make(map[string]metric.Float64Histogram),
	}
}

// Count increments a counter metric, creating it on first use.
func (m *Instruments) Count(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if counter, exists = m.counters[name]; !exists {
			var err error
			counter, err = m.meter.Int64Counter(name)
			if err != nil {
				m.mu.Unlock()
				return
			}
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Gauge records a value that moves up or down, such as queue depth.
func (m *Instruments) Gauge(ctx context.Context, name string, delta int64, attrs ...attribute.KeyValue) {
	m.mu.RLock()
	counter, exists := m.upDownCounters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if counter, exists = m.upDownCounters[name]; !exists {
			var err error
			counter, err = m.meter.Int64UpDownCounter(name)
			if err != nil {
				m.mu.Unlock()
				return
			}
			m.upDownCounters[name] = counter
		}
		m.mu.Unlock()
	}

	counter.Add(ctx, delta, metric.WithAttributes(attrs...))
}

// Observe records a value into a distribution, e.g. dispatch wait time.
func (m *Instruments) Observe(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if histogram, exists = m.histograms[name]; !exists {
			var err error
			histogram, err = m.meter.Float64Histogram(name)
			if err != nil {
				m.mu.Unlock()
				return
			}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// Metric name constants for the dispatch domain.
const (
	MetricDispatchDuration     = "dispatch.duration_ms"
	MetricDispatchStatus       = "dispatch.status"
	MetricWorkerExecutions     = "worker.executions"
	MetricWorkerFailures       = "worker.failures"
	MetricWorkerDuration       = "worker.duration_ms"
	MetricCircuitBreakerOpen   = "resilience.circuit_breaker.open"
	MetricCircuitBreakerTrip   = "resilience.circuit_breaker.trip"
	MetricBulkheadRejected     = "resilience.bulkhead.rejected"
	MetricRateLimiterRejected  = "resilience.rate_limiter.rejected"
	MetricRetryAttempts        = "resilience.retry.attempts"
	MetricOrchestratorActive   = "orchestrator.active_dispatches"
	MetricOrchestratorPending  = "orchestrator.pending_dispatches"
	MetricJudgeDecisions       = "judge.decisions"
	MetricJudgeSafetySkips     = "judge.safety_skips"
)

// AttrWaypoint is a convenience attribute builder used across packages so
// metric and span labels stay consistent.
func AttrWaypoint(id string) attribute.KeyValue { return attribute.String("waypoint_id", id) }

// AttrWorker is the worker-name attribute builder.
func AttrWorker(name string) attribute.KeyValue { return attribute.String("worker", name) }

// AttrStatus is the terminal-status attribute builder.
func AttrStatus(status fmt.Stringer) attribute.KeyValue {
	return attribute.String("status", status.String())
}
