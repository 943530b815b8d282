// Package worker defines the Worker contract and the process-wide
// registry Workers are discovered and looked up through.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trailmind/dispatch/core"
)

// State is one node of the Worker lifecycle state machine:
// UNLOADED -> LOADED -> CONFIGURED -> STARTED <-> STOPPED -> UNLOADED,
// with FAILED reachable from any transitional verb.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateConfigured
	StateStarted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateConfigured:
		return "configured"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Metadata is the immutable description every Worker carries: identity,
// declared content kind, scheduling priority, and
// the resilience knobs the envelope wraps it in.
type Metadata struct {
	Name            string
	Version         string
	Kind            core.ContentKind
	Priority        int
	Timeout         int // seconds
	MaxRetries      int
	FailureThreshold int
	SuccessThreshold int
	CapabilityTags  []string
}

// ProfileContext is the read-only view of a Consumer Profile a Worker may
// use to generate a search query or otherwise tailor its Artifact. It is
// deliberately narrower than the full profile type in profile/ so Workers
// cannot mutate profile state shared across a dispatch.
type ProfileContext struct {
	IsDriver      bool
	AgeBracket    string
	InterestTags  []string
	ExcludeTopics []string
	ContentRating string
}

// Worker is a polymorphic unit that, given a Waypoint and the current
// profile context, produces at most one Artifact. Implementations must
// not retry, time-limit, or rate-limit themselves — the resilience
// envelope around Execute does that.
type Worker interface {
	Metadata() Metadata
	Configure(cfg map[string]interface{}) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Destroy(ctx context.Context) error
	Health() bool
	Execute(ctx context.Context, waypoint core.Waypoint, profile ProfileContext) (*core.Artifact, error)
}

// Instance pairs a Worker with its lifecycle state, guarding every
// transition against the allowed state machine below.
type Instance struct {
	worker Worker

	mu        sync.Mutex
	state     State
	startedAt time.Time
}

// NewInstance wraps w in LOADED state.
func NewInstance(w Worker) *Instance {
	return &Instance{worker: w, state: StateLoaded}
}

func (inst *Instance) State() State {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state
}

// Configure validates cfg and moves LOADED -> CONFIGURED. Idempotent: may
// be called again from CONFIGURED without error.
func (inst *Instance) Configure(cfg map[string]interface{}) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.state != StateLoaded && inst.state != StateConfigured {
		return inst.invalidTransition("configure")
	}
	if err := inst.worker.Configure(cfg); err != nil {
		inst.state = StateFailed
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	inst.state = StateConfigured
	return nil
}

// Start acquires resources and moves CONFIGURED -> STARTED.
func (inst *Instance) Start(ctx context.Context) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.state != StateConfigured && inst.state != StateStopped {
		return inst.invalidTransition("start")
	}
	if err := inst.worker.Start(ctx); err != nil {
		inst.state = StateFailed
		return err
	}
	inst.state = StateStarted
	inst.startedAt = time.Now()
	return nil
}

// Uptime reports how long this Instance has been in STARTED, or since
// its most recent Start if it has since moved on. Zero if never started.
func (inst *Instance) Uptime() time.Duration {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.startedAt.IsZero() {
		return 0
	}
	return time.Since(inst.startedAt)
}

// Stop releases resources and moves STARTED -> STOPPED.
func (inst *Instance) Stop(ctx context.Context) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.state != StateStarted {
		return inst.invalidTransition("stop")
	}
	if err := inst.worker.Stop(ctx); err != nil {
		inst.state = StateFailed
		return err
	}
	inst.state = StateStopped
	return nil
}

// Destroy tears down from any state and moves to UNLOADED.
func (inst *Instance) Destroy(ctx context.Context) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	err := inst.worker.Destroy(ctx)
	inst.state = StateUnloaded
	return err
}

// Execute is legal only in STARTED; callers outside the Orchestrator
// should not need this check, but it protects against a mis-wired
// registry handing out a Worker before Start completed.
func (inst *Instance) Execute(ctx context.Context, waypoint core.Waypoint, profile ProfileContext) (*core.Artifact, error) {
	if inst.State() != StateStarted {
		return nil, fmt.Errorf("%w: %s", core.ErrNotStarted, inst.worker.Metadata().Name)
	}
	return inst.worker.Execute(ctx, waypoint, profile)
}

// Health reports the underlying Worker's cheap health snapshot.
func (inst *Instance) Health() bool {
	if inst.State() == StateFailed {
		return false
	}
	return inst.worker.Health()
}

// Metadata passes through the underlying Worker's immutable metadata.
func (inst *Instance) Metadata() Metadata { return inst.worker.Metadata() }

func (inst *Instance) invalidTransition(verb string) error {
	return core.NewFrameworkErrorWithID("worker.Instance."+verb, "invalid_state",
		inst.worker.Metadata().Name,
		fmt.Errorf("cannot %s from state %s", verb, inst.state))
}
