// Package cache provides the optional content cache Workers may consult
// before calling an upstream API: the same Artifact for the same
// (waypoint, content kind) pair need not be fetched twice. A best-effort
// in-memory map covers the default case, plus a Redis-backed
// implementation of the same interface for a multi-process deployment.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/trailmind/dispatch/core"
)

// ContentCache is the narrow interface Workers consult. A miss is not an
// error — it simply means the Worker must call its upstream API.
type ContentCache interface {
	Get(ctx context.Context, waypointID string, kind core.ContentKind) (core.Artifact, bool)
	Put(ctx context.Context, waypointID string, kind core.ContentKind, artifact core.Artifact, ttl time.Duration)
}

func key(waypointID string, kind core.ContentKind) string {
	return fmt.Sprintf("%s:%s", waypointID, kind)
}

// InMemory is the default best-effort cache: a mutex-guarded map with
// lazy expiry, no eviction policy beyond TTL. Safe for concurrent use by
// every Worker in a dispatch.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	artifact core.Artifact
	expires  time.Time
}

// NewInMemory builds an empty InMemory cache.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]entry)}
}

func (c *InMemory) Get(_ context.Context, waypointID string, kind core.ContentKind) (core.Artifact, bool) {
	c.mu.RLock()
	e, ok := c.entries[key(waypointID, kind)]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return core.Artifact{}, false
	}
	return e.artifact, true
}

func (c *InMemory) Put(_ context.Context, waypointID string, kind core.ContentKind, artifact core.Artifact, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(waypointID, kind)] = entry{artifact: artifact, expires: time.Now().Add(ttl)}
}

// marshalled is the JSON envelope stored in Redis; core.Artifact's
// Metadata is an untyped map so a plain json.Marshal round-trips it.
type marshalled struct {
	Artifact core.Artifact `json:"artifact"`
}

func marshal(a core.Artifact) ([]byte, error) {
	return json.Marshal(marshalled{Artifact: a})
}

func unmarshal(data []byte) (core.Artifact, error) {
	var m marshalled
	if err := json.Unmarshal(data, &m); err != nil {
		return core.Artifact{}, err
	}
	return m.Artifact, nil
}

// Redis is a ContentCache backed by a shared Redis instance, for
// deployments that run more than one Orchestrator process against the
// same Worker set and want cache hits to cross process boundaries. A
// logger receives Get/Put errors (connection drops, marshal failures)
// since a cache-layer error must never fail the Worker's dispatch — the
// caller treats it exactly like a miss.
type Redis struct {
	client *redis.Client
	prefix string
	logger core.Logger
}

// NewRedis builds a Redis-backed cache over an already-connected client.
// keyPrefix namespaces keys so multiple deployments can share one Redis
// instance without key collisions.
func NewRedis(client *redis.Client, keyPrefix string, logger core.Logger) *Redis {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Redis{client: client, prefix: keyPrefix, logger: logger}
}

func (c *Redis) fullKey(waypointID string, kind core.ContentKind) string {
	return c.prefix + ":" + key(waypointID, kind)
}

func (c *Redis) Get(ctx context.Context, waypointID string, kind core.ContentKind) (core.Artifact, bool) {
	raw, err := c.client.Get(ctx, c.fullKey(waypointID, kind)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache: redis get failed", map[string]interface{}{
				"waypoint_id": waypointID, "kind": string(kind), "error": err.Error(),
			})
		}
		return core.Artifact{}, false
	}
	artifact, err := unmarshal(raw)
	if err != nil {
		c.logger.Warn("cache: redis entry unmarshal failed", map[string]interface{}{
			"waypoint_id": waypointID, "kind": string(kind), "error": err.Error(),
		})
		return core.Artifact{}, false
	}
	return artifact, true
}

func (c *Redis) Put(ctx context.Context, waypointID string, kind core.ContentKind, artifact core.Artifact, ttl time.Duration) {
	data, err := marshal(artifact)
	if err != nil {
		c.logger.Warn("cache: redis entry marshal failed", map[string]interface{}{
			"waypoint_id": waypointID, "kind": string(kind), "error": err.Error(),
		})
		return
	}
	if err := c.client.Set(ctx, c.fullKey(waypointID, kind), data, ttl).Err(); err != nil {
		c.logger.Warn("cache: redis set failed", map[string]interface{}{
			"waypoint_id": waypointID, "kind": string(kind), "error": err.Error(),
		})
	}
}
