package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmind/dispatch/core"
)

func artifact(kind core.ContentKind) core.Artifact {
	return core.NewArtifact("wp-1", kind, "title", "source", 5.0)
}

// Happy path: all three workers succeed well before the soft timeout.
func TestQueueCompleteBeforeSoftTimeout(t *testing.T) {
	q := New("wp-1", Config{Expected: 3, SoftTimeout: 50 * time.Millisecond, HardTimeout: 200 * time.Millisecond})

	go func() {
		q.SubmitSuccess("video", artifact(core.ContentVideo))
		q.SubmitSuccess("music", artifact(core.ContentMusic))
		q.SubmitSuccess("text", artifact(core.ContentText))
	}()

	artifacts, metrics, err := q.WaitForResults(context.Background())
	require.NoError(t, err)
	assert.Len(t, artifacts, 3)
	assert.Equal(t, core.StatusComplete, metrics.Terminal)
	assert.Equal(t, 3, metrics.ExpectedCount)
}

// E-1 of E workers succeed before the soft deadline: soft-degrade fires
// at the soft deadline rather than waiting for the hard deadline.
func TestQueueSoftDegradeOnEarlySuccesses(t *testing.T) {
	q := New("wp-1", Config{Expected: 3, SoftTimeout: 30 * time.Millisecond, HardTimeout: 300 * time.Millisecond})

	go func() {
		q.SubmitSuccess("video", artifact(core.ContentVideo))
		q.SubmitSuccess("music", artifact(core.ContentMusic))
	}()

	start := time.Now()
	artifacts, metrics, err := q.WaitForResults(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, artifacts, 2)
	assert.Equal(t, core.StatusSoftDegraded, metrics.Terminal)
	assert.Less(t, elapsed, 250*time.Millisecond, "should not wait for the hard deadline once MinForSoft is met")
}

// Fewer than MinForSoft successes by the soft deadline, but at least
// MinForHard by the hard deadline: hard-degrade.
func TestQueueHardDegradeAtHardTimeout(t *testing.T) {
	q := New("wp-1", Config{Expected: 3, SoftTimeout: 20 * time.Millisecond, HardTimeout: 60 * time.Millisecond})

	go func() {
		time.Sleep(5 * time.Millisecond)
		q.SubmitSuccess("video", artifact(core.ContentVideo))
	}()

	artifacts, metrics, err := q.WaitForResults(context.Background())
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
	assert.Equal(t, core.StatusHardDegraded, metrics.Terminal)
}

// Zero successes by the hard deadline: FAILED, with ErrNoResults.
func TestQueueFailedWhenNoSuccessesByHardTimeout(t *testing.T) {
	q := New("wp-1", Config{Expected: 3, SoftTimeout: 10 * time.Millisecond, HardTimeout: 30 * time.Millisecond})

	go func() {
		q.SubmitFailure("video", "boom")
		q.SubmitFailure("music", "boom")
		q.SubmitFailure("text", "boom")
	}()

	artifacts, metrics, err := q.WaitForResults(context.Background())
	assert.Nil(t, artifacts)
	assert.ErrorIs(t, err, core.ErrNoResults)
	assert.Equal(t, core.StatusFailed, metrics.Terminal)
}

// All E results in before either deadline, but not all successes: the
// nTot >= Expected branch must still apply the soft/hard/fail thresholds
// rather than assuming completion.
func TestQueueAllReportedButNotAllSucceeded(t *testing.T) {
	q := New("wp-1", Config{Expected: 3, SoftTimeout: time.Second, HardTimeout: 2 * time.Second})

	q.SubmitSuccess("video", artifact(core.ContentVideo))
	q.SubmitSuccess("music", artifact(core.ContentMusic))
	q.SubmitFailure("text", "boom")

	artifacts, metrics, err := q.WaitForResults(context.Background())
	require.NoError(t, err)
	assert.Len(t, artifacts, 2)
	assert.Equal(t, core.StatusSoftDegraded, metrics.Terminal)
}

// Exactly MinForHard successes and the rest failures, all in before the
// hard deadline: hard-degrade without waiting out either timer.
func TestQueueHardDegradeOnAllReportedMinimalSuccess(t *testing.T) {
	q := New("wp-1", Config{Expected: 3, SoftTimeout: time.Second, HardTimeout: 2 * time.Second})

	q.SubmitSuccess("video", artifact(core.ContentVideo))
	q.SubmitFailure("music", "boom")
	q.SubmitFailure("text", "boom")

	artifacts, metrics, err := q.WaitForResults(context.Background())
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
	assert.Equal(t, core.StatusHardDegraded, metrics.Terminal)
}

// A duplicate SubmitSuccess from the same worker id overwrites rather
// than double-counting.
func TestQueueDuplicateSuccessOverwrites(t *testing.T) {
	q := New("wp-1", Config{Expected: 1, SoftTimeout: time.Second, HardTimeout: 2 * time.Second})

	first := artifact(core.ContentVideo)
	second := core.NewArtifact("wp-1", core.ContentVideo, "better title", "source", 8.0)

	q.SubmitSuccess("video", first)
	q.SubmitSuccess("video", second)

	artifacts, metrics, err := q.WaitForResults(context.Background())
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "better title", artifacts[0].Title)
	assert.Equal(t, 1, metrics.ReceivedCount)
}

// Context cancellation forces FAILED regardless of accumulated successes.
func TestQueueCancelledContextForcesFailed(t *testing.T) {
	q := New("wp-1", Config{Expected: 3, SoftTimeout: time.Second, HardTimeout: 2 * time.Second})
	q.SubmitSuccess("video", artifact(core.ContentVideo))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	artifacts, metrics, err := q.WaitForResults(ctx)
	assert.Nil(t, artifacts)
	assert.ErrorIs(t, err, core.ErrCancelled)
	assert.Equal(t, core.StatusFailed, metrics.Terminal)
}

// WaitForResults may only be called once per Queue.
func TestQueueWaitForResultsTwicePanics(t *testing.T) {
	q := New("wp-1", Config{Expected: 1, SoftTimeout: time.Millisecond, HardTimeout: 2 * time.Millisecond})
	q.SubmitSuccess("video", artifact(core.ContentVideo))
	_, _, err := q.WaitForResults(context.Background())
	require.NoError(t, err)

	assert.Panics(t, func() {
		_, _, _ = q.WaitForResults(context.Background())
	})
}

func TestConfigResolveDefaults(t *testing.T) {
	c := Config{Expected: 4, SoftTimeout: time.Second, HardTimeout: 2 * time.Second}.Resolve()
	assert.Equal(t, 3, c.MinForSoft)
	assert.Equal(t, 1, c.MinForHard)

	explicit := Config{Expected: 4, MinForSoft: 2, MinForHard: 2}.Resolve()
	assert.Equal(t, 2, explicit.MinForSoft)
	assert.Equal(t, 2, explicit.MinForHard)
}
