package workers

import (
	"context"
	"fmt"
	"strings"

	"github.com/trailmind/dispatch/core"
	"github.com/trailmind/dispatch/worker"
)

// mockSongs is the curated fallback catalog of songs for recognizable
// locations.
var mockSongs = map[string]struct {
	title, artist, url string
}{
	"Ammunition Hill": {title: "Givat HaTachmoshet (Ammunition Hill)", artist: "Yehoram Gaon", url: "https://www.youtube.com/watch?v=ammunition_hill"},
	"Tel Aviv":         {title: "Tel Aviv", artist: "Omer Adam", url: "https://www.youtube.com/watch?v=telaviv"},
	"Jerusalem":        {title: "Jerusalem of Gold (Yerushalayim Shel Zahav)", artist: "Naomi Shemer", url: "https://www.youtube.com/watch?v=jerusalem_gold"},
	"Latrun":           {title: "In the Fields of the Land", artist: "HaGashash HaHiver", url: "https://www.youtube.com/watch?v=latrun"},
}

// MusicWorker produces MUSIC Artifacts.
type MusicWorker struct {
	base
}

func NewMusicWorker(name string, priority int) *MusicWorker {
	return &MusicWorker{base: base{meta: worker.Metadata{
		Name:             name,
		Version:          "1.0.0",
		Kind:             core.ContentMusic,
		Priority:         priority,
		Timeout:          8,
		MaxRetries:       2,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CapabilityTags:   []string{"content", "music", "audio"},
	}}}
}

func (w *MusicWorker) Execute(ctx context.Context, wp core.Waypoint, profile worker.ProfileContext) (*core.Artifact, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	w.nextCallCount()

	if a, ok := w.cached(ctx, wp.ID, core.ContentMusic); ok {
		return &a, nil
	}

	// A live integration would query a streaming catalog API for songs
	// matching wp and profile.InterestTags and rank them, the way
	// a live music-search agent would through an LLM. No such client is
	// wired in this repo, so every call degrades to the mock catalog.
	a := w.mockResult(wp)
	w.remember(ctx, wp.ID, core.ContentMusic, a)
	return &a, nil
}

func (w *MusicWorker) mockResult(wp core.Waypoint) core.Artifact {
	location := locationName(wp)

	for key, song := range mockSongs {
		if strings.Contains(location, key) || strings.Contains(wp.Address, key) {
			return mockArtifact(wp.ID, core.ContentMusic, song.title, "by "+song.artist,
				song.url, "YouTube Music (Mock)", 7.0)
		}
	}

	return mockArtifact(wp.ID, core.ContentMusic,
		fmt.Sprintf("Song About %s", location), "by Israeli Artist",
		"https://www.youtube.com/watch?v=mock_"+wp.ID, "YouTube Music (Mock)", 7.0)
}
