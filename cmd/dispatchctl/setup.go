package main

import (
	"context"
	"fmt"

	"github.com/trailmind/dispatch/cache"
	"github.com/trailmind/dispatch/core"
	"github.com/trailmind/dispatch/dispatch"
	"github.com/trailmind/dispatch/eventbus"
	"github.com/trailmind/dispatch/judge"
	"github.com/trailmind/dispatch/judge/llmclient"
	"github.com/trailmind/dispatch/orchestration"
	"github.com/trailmind/dispatch/resilience"
	"github.com/trailmind/dispatch/worker"
	"github.com/trailmind/dispatch/workers"
)

// builtinManifests describes the three workers this binary ships,
// used when cfg.WorkerManifestDir has no manifest files on disk.
// entry_point selects the concrete workers.* type in workers/factory.go.
func builtinManifests() []worker.Manifest {
	return []worker.Manifest{
		{Name: "text-worker", Version: "1.0.0", EntryPoint: "text", Kind: "TEXT",
			DefaultConfig: map[string]interface{}{"priority": 10}},
		{Name: "music-worker", Version: "1.0.0", EntryPoint: "music", Kind: "MUSIC",
			DefaultConfig: map[string]interface{}{"priority": 20}},
		{Name: "video-worker", Version: "1.0.0", EntryPoint: "video", Kind: "VIDEO",
			DefaultConfig: map[string]interface{}{"priority": 30}},
	}
}

// loadManifests reads cfg.WorkerManifestDir, falling back to the built-in
// set when the directory is absent or empty — a fresh checkout with no
// workers.d/ directory still dispatches against all three content kinds.
func loadManifests(dir string, logger core.Logger) []worker.Manifest {
	manifests, err := worker.LoadManifests(dir)
	if err != nil || len(manifests) == 0 {
		logger.Info("worker manifest dir empty or unreadable, using built-in workers", map[string]interface{}{
			"dir": dir,
		})
		return builtinManifests()
	}
	return manifests
}

// envelopeConfig builds one resilience.EnvelopeConfig per Worker from the
// process Config, named after the Worker so resilience.Lookup(name) finds
// it from orchestration.runWorker.
func envelopeConfig(cfg *core.Config, workerName string) *resilience.EnvelopeConfig {
	return &resilience.EnvelopeConfig{
		Name: workerName,
		RateLimiter: &resilience.RateLimiterConfig{
			Name:      workerName,
			Algorithm: resilience.RateLimiterAlgorithm(cfg.RateLimiterAlgorithm),
			MaxCalls:  cfg.RateLimiterMaxCalls,
			Period:    cfg.RateLimiterPeriod,
		},
		Bulkhead: &resilience.BulkheadConfig{
			Name:      workerName,
			Capacity:  cfg.BulkheadCapacity,
			QueueSize: cfg.BulkheadQueue,
		},
		CircuitBreaker: func() *resilience.CircuitBreakerConfig {
			c := resilience.DefaultCircuitBreakerConfig()
			c.Name = workerName
			return c
		}(),
		Retry:   resilience.DefaultRetryConfig(),
		Timeout: cfg.WorkerTimeout,
	}
}

// cacheSetter is implemented by every workers.* type via its embedded
// base; matched with a type assertion since worker.Worker itself has no
// notion of a content cache.
type cacheSetter interface {
	SetCache(cache.ContentCache)
}

// buildSystem wires a Registry, Policy, and Orchestrator from cfg: it
// loads manifests, builds one resilience Envelope per Worker, starts
// every Worker, and returns an Orchestrator ready for Start.
func buildSystem(ctx context.Context, cfg *core.Config, logger core.Logger, bus *eventbus.Bus) (*worker.Registry, *orchestration.Orchestrator, error) {
	registry := worker.NewRegistry(logger, bus)
	manifests := loadManifests(cfg.WorkerManifestDir, logger)
	contentCache := cache.NewInMemory()

	configs := make(map[string]map[string]interface{}, len(manifests))
	for _, m := range manifests {
		cfgCopy := make(map[string]interface{}, len(m.DefaultConfig)+1)
		for k, v := range m.DefaultConfig {
			cfgCopy[k] = v
		}
		if cfg.YoutubeAPIKey != "" && m.EntryPoint == "video" {
			cfgCopy["api_key"] = cfg.YoutubeAPIKey
		}
		if cfg.SpotifyClientID != "" && m.EntryPoint == "music" {
			cfgCopy["api_key"] = cfg.SpotifyClientID
		}
		configs[m.Name] = cfgCopy

		if _, err := resilience.NewEnvelope(envelopeConfig(cfg, m.Name)); err != nil {
			return nil, nil, fmt.Errorf("dispatchctl: build envelope for %s: %w", m.Name, err)
		}
	}

	factory := func(m worker.Manifest) (worker.Worker, error) {
		w, err := workers.Factory(m)
		if err != nil {
			return nil, err
		}
		if setter, ok := w.(cacheSetter); ok {
			setter.SetCache(contentCache)
		}
		return w, nil
	}

	if err := registry.StartAll(ctx, manifests, factory, configs); err != nil {
		return nil, nil, fmt.Errorf("dispatchctl: start workers: %w", err)
	}

	var policy *judge.Policy
	if cfg.AnthropicAPIKey != "" {
		client, err := llmclient.New(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("dispatchctl: build llm client: %w", err)
		}
		policy = judge.New(client, cfg.LLMModel, logger)
	} else {
		policy = judge.New(nil, cfg.LLMModel, logger)
	}

	maxConcurrent := cfg.MaxConcurrent / 4
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	orch := orchestration.New(registry, policy, bus, orchestration.Config{
		MaxConcurrent: maxConcurrent,
		Queue: dispatch.Config{
			SoftTimeout: cfg.QueueSoftTimeout,
			HardTimeout: cfg.QueueHardTimeout,
		},
	}, logger)
	return registry, orch, nil
}
