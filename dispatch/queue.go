// Package dispatch implements the Smart Dispatch Queue: the per-Waypoint
// barrier that reconciles concurrent Worker completions against
// soft/hard deadlines into one of four terminal statuses.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trailmind/dispatch/core"
)

// Config holds the Smart Dispatch Queue's per-dispatch parameters: E
// (expected Worker count), the soft/hard deadlines, and the minimum
// success counts each deadline requires to terminate early.
type Config struct {
	Expected     int
	SoftTimeout  time.Duration
	HardTimeout  time.Duration
	MinForSoft   int // default E-1
	MinForHard   int // default 1
}

// Resolve fills in MinForSoft/MinForHard defaults relative to Expected:
// Expected-1 and 1 respectively.
func (c Config) Resolve() Config {
	if c.MinForSoft == 0 {
		c.MinForSoft = c.Expected - 1
	}
	if c.MinForHard == 0 {
		c.MinForHard = 1
	}
	return c
}

// Queue is the Smart Dispatch Queue for one Waypoint's dispatch. It is
// constructed per dispatch and owned by that dispatch only; exactly
// one call to WaitForResults is supported per instance.
type Queue struct {
	waypointID string
	config     Config
	start      time.Time

	mu         sync.Mutex
	successes  map[string]core.Artifact
	failures   map[string]string
	terminal   core.DispatchStatus
	generation chan struct{} // closed and replaced on every submit

	waited bool
}

// New constructs a Queue for waypointID with the given configuration,
// starting its deadline clock immediately.
func New(waypointID string, config Config) *Queue {
	return &Queue{
		waypointID: waypointID,
		config:     config.Resolve(),
		start:      time.Now(),
		successes:  make(map[string]core.Artifact),
		failures:   make(map[string]string),
		terminal:   core.StatusWaiting,
		generation: make(chan struct{}),
	}
}

// SubmitSuccess records a Worker's Artifact. A duplicate submission from
// the same worker id overwrites the previous Artifact. Safe to call
// after the terminal status is already set — the
// call is accepted but no longer changes the outcome.
func (q *Queue) SubmitSuccess(workerID string, artifact core.Artifact) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.successes[workerID] = artifact
	q.signalLocked()
}

// SubmitFailure records a Worker's failure. A worker id that already
// submitted a success may also submit a failure (or vice versa); both
// entries coexist.
func (q *Queue) SubmitFailure(workerID string, errText string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failures[workerID] = errText
	q.signalLocked()
}

// signalLocked wakes any goroutine parked in WaitForResults. Must be
// called with q.mu held.
func (q *Queue) signalLocked() {
	close(q.generation)
	q.generation = make(chan struct{})
}

// WaitForResults blocks until a termination rule in the decision tree
// fires, then returns the (possibly partial) Artifact list and metrics.
// FAILED is the only terminal that returns an error (NoResults); every
// other terminal returns a nil error. Safe to call exactly once per Queue.
//
// If ctx is cancelled before a termination rule fires, the queue is
// forced to FAILED with a Cancelled error regardless of how many
// successes it had already accumulated: any queue that has not yet
// reached a terminal status at cancellation time is marked FAILED and
// its dispatch task records the reason.
func (q *Queue) WaitForResults(ctx context.Context) ([]core.Artifact, core.DispatchMetrics, error) {
	q.mu.Lock()
	if q.waited {
		q.mu.Unlock()
		panic("dispatch: WaitForResults called more than once on the same Queue")
	}
	q.waited = true

	for {
		status, artifacts, done := q.evaluateLocked()
		if done {
			metrics := q.metricsLocked(status)
			q.terminal = status
			q.mu.Unlock()

			if status == core.StatusFailed {
				return nil, metrics, fmt.Errorf("%w: waypoint %s", core.ErrNoResults, q.waypointID)
			}
			return artifacts, metrics, nil
		}

		wake := q.nextWakeupLocked()
		gen := q.generation
		q.mu.Unlock()

		timer := time.NewTimer(time.Until(wake))
		select {
		case <-gen:
			timer.Stop()
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			q.mu.Lock()
			metrics := q.metricsLocked(core.StatusFailed)
			q.terminal = core.StatusFailed
			q.mu.Unlock()
			return nil, metrics, fmt.Errorf("%w: waypoint %s dispatch cancelled", core.ErrCancelled, q.waypointID)
		}

		q.mu.Lock()
	}
}

// evaluateLocked runs the decision tree's rules 1-3 and reports
// whether a terminal status has been reached. Must be called with q.mu
// held.
func (q *Queue) evaluateLocked() (core.DispatchStatus, []core.Artifact, bool) {
	nSucc := len(q.successes)
	nFail := len(q.failures)
	nTot := nSucc + nFail
	elapsed := time.Since(q.start)

	if nTot >= q.config.Expected {
		switch {
		case nSucc >= q.config.Expected:
			return core.StatusComplete, q.artifactsLocked(), true
		case nSucc >= q.config.MinForSoft:
			return core.StatusSoftDegraded, q.artifactsLocked(), true
		case nSucc >= q.config.MinForHard:
			return core.StatusHardDegraded, q.artifactsLocked(), true
		default:
			return core.StatusFailed, nil, true
		}
	}

	if elapsed >= q.config.HardTimeout {
		if nSucc >= q.config.MinForHard {
			return core.StatusHardDegraded, q.artifactsLocked(), true
		}
		return core.StatusFailed, nil, true
	}

	if elapsed >= q.config.SoftTimeout && nSucc >= q.config.MinForSoft {
		return core.StatusSoftDegraded, q.artifactsLocked(), true
	}

	return core.StatusWaiting, nil, false
}

// nextWakeupLocked computes the absolute time WaitForResults should next
// re-evaluate, per the decision tree's rule 4. Must be called with
// q.mu held.
func (q *Queue) nextWakeupLocked() time.Time {
	if len(q.successes) >= q.config.MinForSoft {
		return q.start.Add(q.config.SoftTimeout)
	}
	return q.start.Add(q.config.HardTimeout)
}

func (q *Queue) artifactsLocked() []core.Artifact {
	out := make([]core.Artifact, 0, len(q.successes))
	for _, a := range q.successes {
		out = append(out, a)
	}
	return out
}

func (q *Queue) metricsLocked(status core.DispatchStatus) core.DispatchMetrics {
	succeeded := make([]string, 0, len(q.successes))
	for id := range q.successes {
		succeeded = append(succeeded, id)
	}
	failed := make([]string, 0, len(q.failures))
	for id := range q.failures {
		failed = append(failed, id)
	}
	now := time.Now()
	return core.DispatchMetrics{
		WaypointID:     q.waypointID,
		StartTime:      q.start,
		EndTime:        now,
		Terminal:       status,
		ExpectedCount:  q.config.Expected,
		ReceivedCount:  len(succeeded) + len(failed),
		SucceededIDs:   succeeded,
		FailedIDs:      failed,
		WaitDurationMS: now.Sub(q.start).Milliseconds(),
	}
}
