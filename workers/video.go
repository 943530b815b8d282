package workers

import (
	"context"
	"fmt"
	"strings"

	"github.com/trailmind/dispatch/core"
	"github.com/trailmind/dispatch/worker"
)

// mockVideos is the curated fallback catalog for recognizable locations,
// keyed by a substring of the waypoint's name or address.
var mockVideos = map[string]struct {
	title, videoID, description string
}{
	"Ammunition Hill": {
		title:       "The Battle of Ammunition Hill - Documentary",
		videoID:     "dQw4w9WgXcQ",
		description: "Documentary about the fierce battle during the Six-Day War",
	},
	"Tel Aviv": {
		title:       "Tel Aviv: The City That Never Sleeps",
		videoID:     "abc123",
		description: "Explore the vibrant streets of Israel's cultural capital",
	},
	"Jerusalem": {
		title:       "Jerusalem: 3000 Years of History",
		videoID:     "xyz789",
		description: "A journey through the holy city's fascinating past",
	},
	"Latrun": {
		title:       "Latrun Tank Museum - Israel's Armored Corps",
		videoID:     "tank456",
		description: "Explore the impressive tank collection at Latrun",
	},
}

// VideoWorker produces VIDEO Artifacts. The driver-safety rule means
// its output is routinely excluded by the Selection Policy rather than
// by this Worker, which has no notion of the consuming profile's
// is_driver flag until Execute.
type VideoWorker struct {
	base
}

// NewVideoWorker builds a VideoWorker with the given scheduling priority
// and resilience knobs. Callers typically build these from a loaded
// Manifest rather than calling this directly.
func NewVideoWorker(name string, priority int) *VideoWorker {
	return &VideoWorker{base: base{meta: worker.Metadata{
		Name:             name,
		Version:          "1.0.0",
		Kind:             core.ContentVideo,
		Priority:         priority,
		Timeout:          8,
		MaxRetries:       2,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CapabilityTags:   []string{"content", "video", "youtube"},
	}}}
}

func (w *VideoWorker) Execute(ctx context.Context, wp core.Waypoint, profile worker.ProfileContext) (*core.Artifact, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	w.nextCallCount()

	if a, ok := w.cached(ctx, wp.ID, core.ContentVideo); ok {
		return &a, nil
	}

	// A live integration would call the YouTube Data API here, generate
	// search queries from wp and profile, and rank results with an LLM
	// the way a live video-search agent would. Absent that wiring this
	// Worker degrades to the mock path rather than erroring, since no
	// provider client is configured in this repo.
	a := w.mockResult(wp)
	w.remember(ctx, wp.ID, core.ContentVideo, a)
	return &a, nil
}

func (w *VideoWorker) mockResult(wp core.Waypoint) core.Artifact {
	location := locationName(wp)

	for key, v := range mockVideos {
		if strings.Contains(location, key) || strings.Contains(wp.Address, key) {
			return mockArtifact(wp.ID, core.ContentVideo, v.title, v.description,
				"https://www.youtube.com/watch?v="+v.videoID, "YouTube (Mock)", 7.5)
		}
	}

	return mockArtifact(wp.ID, core.ContentVideo,
		fmt.Sprintf("Discovering %s", location),
		fmt.Sprintf("An exploration of %s and its surroundings", location),
		"https://www.youtube.com/watch?v=mock_"+wp.ID, "YouTube (Mock)", 7.5)
}
