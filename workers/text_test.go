package workers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailmind/dispatch/cache"
	"github.com/trailmind/dispatch/core"
	"github.com/trailmind/dispatch/worker"
)

func TestTextWorkerMockModeByDefault(t *testing.T) {
	w := NewTextWorker("text", 0)
	require.NoError(t, w.Configure(nil))
	assert.True(t, w.MockMode())
}

func TestTextWorkerExecuteUsesCatalogMatchByName(t *testing.T) {
	w := NewTextWorker("text", 0)
	require.NoError(t, w.Configure(nil))

	wp := core.Waypoint{ID: "wp-1", Name: "Latrun Monastery"}
	a, err := w.Execute(context.Background(), wp, worker.ProfileContext{})
	require.NoError(t, err)
	assert.Equal(t, "The Silent Monks of Latrun", a.Title)
	assert.True(t, a.IsMock())
	assert.Equal(t, core.ContentText, a.Kind)
}

func TestTextWorkerExecuteFallsBackToGenericForUnknownLocation(t *testing.T) {
	w := NewTextWorker("text", 0)
	require.NoError(t, w.Configure(nil))

	wp := core.Waypoint{ID: "wp-2", Name: "Somewhere Unlisted"}
	a, err := w.Execute(context.Background(), wp, worker.ProfileContext{})
	require.NoError(t, err)
	assert.True(t, a.IsMock())
}

func TestTextWorkerExecuteReturnsCachedArtifactWithoutRecomputing(t *testing.T) {
	w := NewTextWorker("text", 0)
	require.NoError(t, w.Configure(nil))
	c := cache.NewInMemory()
	w.SetCache(c)

	wp := core.Waypoint{ID: "wp-3", Name: "Tel Aviv"}
	first, err := w.Execute(context.Background(), wp, worker.ProfileContext{})
	require.NoError(t, err)

	cached, ok := c.Get(context.Background(), "wp-3", core.ContentText)
	require.True(t, ok)
	assert.Equal(t, first.Title, cached.Title)

	second, err := w.Execute(context.Background(), wp, worker.ProfileContext{})
	require.NoError(t, err)
	assert.Equal(t, first.Title, second.Title)
}

func TestTextWorkerExecuteRespectsCancelledContext(t *testing.T) {
	w := NewTextWorker("text", 0)
	require.NoError(t, w.Configure(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Execute(ctx, core.Waypoint{ID: "wp-4"}, worker.ProfileContext{})
	assert.ErrorIs(t, err, context.Canceled)
}
