// Package workers provides concrete Worker implementations for the three
// core content kinds. No upstream provider client is wired in: every
// Worker returns a canned, clearly-flagged mock Artifact whether or not
// credentials are configured, so a fresh checkout with no API keys still
// produces a working dispatch end to end.
package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trailmind/dispatch/cache"
	"github.com/trailmind/dispatch/core"
	"github.com/trailmind/dispatch/worker"
)

// contentCacheTTL is how long a Worker's Artifact stays valid in the
// optional content cache before a waypoint must be re-fetched.
const contentCacheTTL = 6 * time.Hour

// base holds the lifecycle bookkeeping shared by every concrete Worker in
// this package: metadata, a health flag flipped by Start/Stop, the
// mock/live mode decided once at Configure time from the presence of an
// API key, and an optional content cache consulted before any upstream
// call (mock or live) to avoid re-fetching the same waypoint/kind pair.
type base struct {
	meta worker.Metadata

	mu      sync.RWMutex
	healthy bool
	apiKey  string
	cache   cache.ContentCache

	calls int64
}

// SetCache installs the content cache this Worker consults before
// producing a fresh Artifact. Optional: a nil cache (the default) means
// every Execute call recomputes its result.
func (b *base) SetCache(c cache.ContentCache) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache = c
}

// cached looks up a previously produced Artifact for this Worker's kind,
// returning ok=false when no cache is installed or on a miss.
func (b *base) cached(ctx context.Context, waypointID string, kind core.ContentKind) (core.Artifact, bool) {
	b.mu.RLock()
	c := b.cache
	b.mu.RUnlock()
	if c == nil {
		return core.Artifact{}, false
	}
	return c.Get(ctx, waypointID, kind)
}

// remember stores a freshly produced Artifact in the installed cache, if
// any.
func (b *base) remember(ctx context.Context, waypointID string, kind core.ContentKind, artifact core.Artifact) {
	b.mu.RLock()
	c := b.cache
	b.mu.RUnlock()
	if c == nil {
		return
	}
	c.Put(ctx, waypointID, kind, artifact, contentCacheTTL)
}

func (b *base) Metadata() worker.Metadata { return b.meta }

func (b *base) Configure(cfg map[string]interface{}) error {
	if key, ok := cfg["api_key"].(string); ok {
		b.apiKey = key
	}
	return nil
}

func (b *base) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = true
	return nil
}

func (b *base) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = false
	return nil
}

func (b *base) Destroy(ctx context.Context) error {
	return b.Stop(ctx)
}

func (b *base) Health() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.healthy
}

// MockMode reports whether no upstream credential was configured, for
// tests that assert mock-by-default behavior. Execute returns a mock
// catalog Artifact either way.
func (b *base) MockMode() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.apiKey == ""
}

func (b *base) nextCallCount() int64 {
	return atomic.AddInt64(&b.calls, 1)
}

// locationName prefers a Waypoint's friendly Name, falling back to its
// Address, matching the `location_name or address` fallback pattern used
// throughout this package's mock catalogs.
func locationName(wp core.Waypoint) string {
	if wp.Name != "" {
		return wp.Name
	}
	return wp.Address
}

// mockArtifact builds a flagged mock Artifact from canned fields,
// clamping relevance through core.NewArtifact and stamping
// metadata["mock"]=true so downstream consumers (Decision.Reasoning)
// can surface that no live provider backed this candidate.
func mockArtifact(waypointID string, kind core.ContentKind, title, description, url, source string, relevance float64) core.Artifact {
	a := core.NewArtifact(waypointID, kind, title, source, relevance)
	a.Description = description
	a.URL = url
	a.Metadata["mock"] = true
	return a
}
