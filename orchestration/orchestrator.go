// Package orchestration implements the bounded-parallel Orchestrator: one
// Smart Dispatch Queue per Waypoint, one resilience-wrapped Worker
// execution per enabled Worker, Selection Policy adjudication on
// completion, and batch, streaming, and asynchronous submission
// surfaces.
//
// The panic-recovery-wrapped goroutine, buffered-channel semaphore, and
// sync.WaitGroup fan-out idiom carries over from executor-style dispatch
// loops; the topological routing-plan DAG execution those loops use for
// multi-step pipelines does not apply here since a dispatch has no
// inter-Waypoint dependency graph — one dispatch is one Waypoint.
package orchestration

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/trailmind/dispatch/core"
	"github.com/trailmind/dispatch/dispatch"
	"github.com/trailmind/dispatch/eventbus"
	"github.com/trailmind/dispatch/judge"
	"github.com/trailmind/dispatch/profile"
	"github.com/trailmind/dispatch/resilience"
	"github.com/trailmind/dispatch/telemetry"
	"github.com/trailmind/dispatch/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/trailmind/dispatch/orchestration")

const eventSource = "orchestration.Orchestrator"

// tracerStart starts a span under the package tracer. Separated into its
// own function so dispatchOne reads as one lifecycle rather than an
// inline otel call.
func tracerStart(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// Config configures the Orchestrator's pool size and the per-Waypoint
// Smart Dispatch Queue timing.
type Config struct {
	MaxConcurrent int // P; callers pass configured max / 4; New uses 4 when non-positive
	Queue         dispatch.Config
	ResultBuffer  int // size of the async result stream's channel; default 256
}

// Orchestrator owns a bounded pool of P worker slots; each dispatch
// occupies one slot for the full lifetime of one Waypoint, from Worker
// scheduling through Decision emission.
type Orchestrator struct {
	registry *worker.Registry
	policy   *judge.Policy
	bus      *eventbus.Bus
	logger   core.Logger
	instr    *telemetry.Instruments
	health   *telemetry.Registry

	config    Config
	semaphore chan struct{}

	runMu   sync.Mutex
	running bool
	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup // in-flight dispatchOne calls, for Stop's drain

	resultsMu sync.RWMutex
	results   map[string]core.Decision
	stream    chan StreamResult

	active    int64
	completed int64
	pending   int64
	countMu   sync.Mutex
}

// New builds an Orchestrator. registry supplies the enabled Worker set;
// policy adjudicates each dispatch's candidates; bus and instr may be nil
// (events/metrics become no-ops).
func New(registry *worker.Registry, policy *judge.Policy, bus *eventbus.Bus, cfg Config, logger core.Logger) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.ResultBuffer <= 0 {
		cfg.ResultBuffer = 256
	}
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Orchestrator{
		registry:  registry,
		policy:    policy,
		bus:       bus,
		logger:    logger,
		instr:     telemetry.NewInstruments("orchestrator"),
		health:    telemetry.NewRegistry(),
		config:    cfg,
		semaphore: make(chan struct{}, cfg.MaxConcurrent),
		results:   make(map[string]core.Decision),
		stream:    make(chan StreamResult, cfg.ResultBuffer),
	}
}

// Start makes the Orchestrator ready to accept Submit calls, deriving an
// internal cancellable context from ctx. Idempotent: calling Start again
// while already running is a no-op.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.running {
		return nil
	}
	o.rootCtx, o.cancel = context.WithCancel(ctx)
	o.running = true
	return nil
}

// Stop drains outstanding dispatches within grace before forcing
// cancellation. Idempotent: calling Stop again after the
// Orchestrator has already stopped is a no-op. Safe to call without a
// prior Start (also a no-op).
func (o *Orchestrator) Stop(grace time.Duration) error {
	o.runMu.Lock()
	if !o.running {
		o.runMu.Unlock()
		return nil
	}
	o.running = false
	cancel := o.cancel
	o.runMu.Unlock()

	drained := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(grace):
	}
	cancel()
	<-drained
	return nil
}

// Submit is a non-blocking enqueue: it spawns the Waypoint's dispatch in
// the background and returns immediately. Results surface via NextResult
// or ResultFor. Requires a prior Start.
func (o *Orchestrator) Submit(waypoint core.Waypoint, prof *profile.Profile) error {
	o.runMu.Lock()
	if !o.running {
		o.runMu.Unlock()
		return fmt.Errorf("orchestration: Submit called before Start")
	}
	ctx := o.rootCtx
	o.runMu.Unlock()

	o.addPending(1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.addPending(-1)
		o.addActive(1)
		defer o.addActive(-1)

		decision, err := o.dispatchOne(ctx, waypoint, prof)
		o.addCompleted(1)
		o.storeResult(waypoint.ID, decision)

		select {
		case o.stream <- StreamResult{Decision: decision, Err: err}:
		case <-ctx.Done():
		}
	}()
	return nil
}

// NextResult blocks up to timeout for the next Decision to arrive on the
// asynchronous result stream populated by Submit. ok is false on timeout.
func (o *Orchestrator) NextResult(timeout time.Duration) (result StreamResult, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r, open := <-o.stream:
		return r, open
	case <-timer.C:
		return StreamResult{}, false
	}
}

// ResultFor synchronously looks up the Decision for waypointID, if its
// dispatch (submitted via Submit, SubmitBatch, or Stream) has completed.
func (o *Orchestrator) ResultFor(waypointID string) (core.Decision, bool) {
	o.resultsMu.RLock()
	defer o.resultsMu.RUnlock()
	d, ok := o.results[waypointID]
	return d, ok
}

// Stats reports the Orchestrator's current dispatch counts.
type Stats struct {
	Active    int64
	Completed int64
	Pending   int64
}

// Stats returns a point-in-time snapshot of active, completed, and
// pending dispatch counts.
func (o *Orchestrator) Stats() Stats {
	o.countMu.Lock()
	defer o.countMu.Unlock()
	return Stats{Active: o.active, Completed: o.completed, Pending: o.pending}
}

func (o *Orchestrator) addActive(delta int64) {
	o.countMu.Lock()
	o.active += delta
	o.countMu.Unlock()
}

func (o *Orchestrator) addCompleted(delta int64) {
	o.countMu.Lock()
	o.completed += delta
	o.countMu.Unlock()
}

func (o *Orchestrator) addPending(delta int64) {
	o.countMu.Lock()
	o.pending += delta
	o.countMu.Unlock()
}

func (o *Orchestrator) storeResult(waypointID string, d core.Decision) {
	o.resultsMu.Lock()
	o.results[waypointID] = d
	o.resultsMu.Unlock()
}

// SubmitBatch dispatches every Waypoint, blocks until every Decision is
// produced, and returns them in the same order as the input (the
// Orchestrator's internal result stream emits in completion order; this
// re-sorts into input order).
func (o *Orchestrator) SubmitBatch(ctx context.Context, waypoints []core.Waypoint, prof *profile.Profile) ([]core.Decision, error) {
	decisions := make([]core.Decision, len(waypoints))
	errs := make([]error, len(waypoints))

	var wg sync.WaitGroup
	for i, wp := range waypoints {
		wg.Add(1)
		go func(idx int, waypoint core.Waypoint) {
			defer wg.Done()
			o.addActive(1)
			defer o.addActive(-1)
			decision, err := o.dispatchOne(ctx, waypoint, prof)
			o.addCompleted(1)
			o.storeResult(waypoint.ID, decision)
			decisions[idx] = decision
			errs[idx] = err
		}(i, wp)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return decisions, err
		}
	}
	return decisions, nil
}

// Stream dispatches Waypoints as they arrive on in, publishing Decisions
// to the returned channel in the order each dispatch completes (not
// input order). Closing in initiates graceful drain: Stream's returned
// channel closes once every in-flight dispatch has finished.
func (o *Orchestrator) Stream(ctx context.Context, in <-chan core.Waypoint, prof *profile.Profile) <-chan StreamResult {
	out := make(chan StreamResult, o.config.MaxConcurrent)

	go func() {
		defer close(out)
		var wg sync.WaitGroup
		for {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case wp, ok := <-in:
				if !ok {
					wg.Wait()
					return
				}
				wg.Add(1)
				go func(waypoint core.Waypoint) {
					defer wg.Done()
					o.addActive(1)
					defer o.addActive(-1)
					decision, err := o.dispatchOne(ctx, waypoint, prof)
					o.addCompleted(1)
					o.storeResult(waypoint.ID, decision)
					select {
					case out <- StreamResult{Decision: decision, Err: err}:
					case <-ctx.Done():
					}
				}(wp)
			}
		}
	}()

	return out
}

// StreamResult pairs a Decision with any dispatch-level error (only
// NoResults/Cancelled ever surface here).
type StreamResult struct {
	Decision core.Decision
	Err      error
}

// dispatchOne runs the full lifecycle of one Waypoint's dispatch: occupy
// a pool slot, build a Smart Dispatch Queue, schedule one envelope-
// wrapped execution per enabled Worker, wait for the queue's terminal
// status, then adjudicate via the Selection Policy.
func (o *Orchestrator) dispatchOne(ctx context.Context, waypoint core.Waypoint, prof *profile.Profile) (decision core.Decision, err error) {
	select {
	case o.semaphore <- struct{}{}:
	case <-ctx.Done():
		return core.Decision{}, fmt.Errorf("%w: waypoint %s", core.ErrCancelled, waypoint.ID)
	}
	defer func() { <-o.semaphore }()

	o.health.DispatchStarted()
	defer o.health.DispatchFinished()

	ctx, span := tracerStart(ctx, "orchestrator.dispatch")
	defer span.End()

	workers := o.registry.Enumerate()
	q := dispatch.New(waypoint.ID, dispatch.Config{
		Expected:    len(workers),
		SoftTimeout: o.config.Queue.SoftTimeout,
		HardTimeout: o.config.Queue.HardTimeout,
	})

	startEvent := eventbus.New(eventbus.EventDispatchStarted, eventSource)
	startEvent.WaypointID = waypoint.ID
	startEvent.Payload["address"] = waypoint.Address
	o.publish(startEvent)

	profileCtx := worker.ProfileContext{
		IsDriver:      prof.IsDriver,
		AgeBracket:    string(prof.AgeBracket),
		InterestTags:  prof.InterestTags,
		ExcludeTopics: prof.ExcludeTopics,
		ContentRating: prof.ContentRating,
	}

	var wg sync.WaitGroup
	for _, inst := range workers {
		wg.Add(1)
		go o.runWorker(ctx, &wg, inst, q, waypoint, profileCtx)
	}

	artifacts, metrics, waitErr := q.WaitForResults(ctx)
	wg.Wait()

	o.recordTerminal(waypoint, metrics)

	if waitErr != nil {
		failEvent := eventbus.New(eventbus.EventDispatchFailed, eventSource)
		failEvent.WaypointID = waypoint.ID
		failEvent.Payload["reason"] = core.ErrorKind(waitErr)
		o.publish(failEvent)
		return core.Decision{WaypointID: waypoint.ID}, waitErr
	}

	decision, err = o.policy.Evaluate(ctx, waypoint, artifacts, prof)
	if err != nil {
		return core.Decision{WaypointID: waypoint.ID}, err
	}

	var selectedKind core.ContentKind
	if decision.Selected != nil {
		selectedKind = decision.Selected.Kind
	}
	doneEvent := eventbus.New(eventbus.EventDecisionEmitted, eventSource)
	doneEvent.WaypointID = waypoint.ID
	doneEvent.Payload["selected_kind"] = string(selectedKind)
	doneEvent.Payload["candidates_count"] = len(decision.Candidates)
	doneEvent.Payload["reasoning"] = decision.Reasoning
	o.publish(doneEvent)
	return decision, nil
}

// runWorker executes one Worker's envelope-wrapped call and reports the
// outcome to the Queue. A panic inside the Worker body is recovered and
// reported as a failure — one misbehaving Worker must never crash the
// dispatch.
func (o *Orchestrator) runWorker(ctx context.Context, wg *sync.WaitGroup, inst *worker.Instance, q *dispatch.Queue, waypoint core.Waypoint, profileCtx worker.ProfileContext) {
	defer wg.Done()
	name := inst.Metadata().Name
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("worker execution panicked", map[string]interface{}{
				"worker": name, "waypoint_id": waypoint.ID, "panic": fmt.Sprintf("%v", r), "stack": string(debug.Stack()),
			})
			q.SubmitFailure(name, fmt.Sprintf("panic: %v", r))
		}
	}()

	envelope, ok := resilience.Lookup(name)
	var artifact *core.Artifact
	var err error

	exec := func(ctx context.Context) error {
		artifact, err = inst.Execute(ctx, waypoint, profileCtx)
		return err
	}

	if ok {
		err = envelope.Execute(ctx, exec)
	} else {
		err = exec(ctx)
	}

	duration := time.Since(start).Seconds()

	if err != nil {
		failEvent := eventbus.New(eventbus.EventWorkerFailed, eventSource)
		failEvent.WaypointID = waypoint.ID
		failEvent.WorkerID = name
		failEvent.Payload["duration_seconds"] = duration
		failEvent.Payload["success"] = false
		o.publish(failEvent)
		q.SubmitFailure(name, core.ErrorKind(err))
		return
	}
	if artifact == nil {
		q.SubmitFailure(name, "no_results")
		return
	}

	stamped := artifact.WithMetadataValue(core.MetaWorkerPriority, inst.Metadata().Priority)

	okEvent := eventbus.New(eventbus.EventWorkerCompleted, eventSource)
	okEvent.WaypointID = waypoint.ID
	okEvent.WorkerID = name
	okEvent.Payload["duration_seconds"] = duration
	okEvent.Payload["success"] = true
	okEvent.Payload["content_kind"] = string(stamped.Kind)
	o.publish(okEvent)
	q.SubmitSuccess(name, stamped)
}

func (o *Orchestrator) publish(ev eventbus.Event) {
	if o.bus != nil {
		o.bus.Publish(ev)
	}
}

func (o *Orchestrator) recordTerminal(waypoint core.Waypoint, metrics core.DispatchMetrics) {
	switch metrics.Terminal {
	case core.StatusSoftDegraded, core.StatusHardDegraded:
		ev := eventbus.New(eventbus.EventDispatchDegraded, eventSource)
		ev.WaypointID = waypoint.ID
		ev.Payload["status"] = string(metrics.Terminal)
		o.publish(ev)
	case core.StatusComplete:
		ev := eventbus.New(eventbus.EventDispatchCompleted, eventSource)
		ev.WaypointID = waypoint.ID
		o.publish(ev)
	}
	o.instr.Observe(context.Background(), telemetry.MetricDispatchDuration, float64(metrics.WaitDurationMS),
		telemetry.AttrWaypoint(waypoint.ID), telemetry.AttrStatus(metrics.Terminal))
}
