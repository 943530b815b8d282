package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/trailmind/dispatch/core"
	"github.com/trailmind/dispatch/eventbus"
	"github.com/trailmind/dispatch/resilience"
)

// statusReport is the JSON shape `status` prints: the Orchestrator's
// Stats snapshot alongside each Worker's lifecycle state and envelope
// circuit state. Since the core persists nothing between runs, a
// `status` call that hasn't shared a process with a `run` reports a
// fresh, idle system rather than historical data from a prior
// invocation.
type statusReport struct {
	Orchestrator statsReport            `json:"orchestrator"`
	Workers      []workerStatus         `json:"workers"`
	Config       map[string]interface{} `json:"config"`
}

type statsReport struct {
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Pending   int64 `json:"pending"`
}

type workerStatus struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	State    string `json:"state"`
	MockMode bool   `json:"mock_mode"`
	Healthy  bool   `json:"healthy"`
	Circuit  string `json:"circuit_state"`
}

func cmdStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	cfg, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatchctl status: %v\n", err)
		return exitConfig
	}

	logger := core.NewProductionLogger(cfg.LogLevel)
	bus := eventbus.New(logger, 64)

	ctx := context.Background()
	registry, orch, err := buildSystem(ctx, cfg, logger, bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatchctl status: %v\n", err)
		return exitInternal
	}
	defer registry.StopAll(ctx)

	stats := orch.Stats()
	report := statusReport{
		Orchestrator: statsReport{Active: stats.Active, Completed: stats.Completed, Pending: stats.Pending},
		Config: map[string]interface{}{
			"max_concurrent_threads": cfg.MaxConcurrent,
			"queue_soft_timeout":     cfg.QueueSoftTimeout.String(),
			"queue_hard_timeout":     cfg.QueueHardTimeout.String(),
			"llm_provider":           cfg.LLMProvider,
		},
	}
	for _, inst := range registry.Enumerate() {
		meta := inst.Metadata()
		ws := workerStatus{
			Name:     meta.Name,
			Kind:     string(meta.Kind),
			State:    inst.State().String(),
			Healthy:  inst.Health(),
			MockMode: mockModeFor(cfg, meta.Kind),
			Circuit:  "unknown",
		}
		if envelope, ok := resilience.Lookup(meta.Name); ok {
			ws.Circuit = envelope.Stats().CircuitState.String()
		}
		report.Workers = append(report.Workers, ws)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "dispatchctl status: %v\n", err)
		return exitInternal
	}
	return exitOK
}

// mockModeFor reports whether no upstream credential is configured for a
// Worker of the given kind. The text Worker takes no credential, so it
// always reports true. No Worker in this repo has a live provider client,
// so every Worker returns mock Artifacts whatever this reports.
func mockModeFor(cfg *core.Config, kind core.ContentKind) bool {
	switch kind {
	case core.ContentVideo:
		return cfg.YoutubeAPIKey == ""
	case core.ContentMusic:
		return cfg.SpotifyClientID == ""
	default:
		return true
	}
}
