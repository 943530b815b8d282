package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trailmind/dispatch/core"
	"github.com/trailmind/dispatch/eventbus"
	"github.com/trailmind/dispatch/orchestration"
	"github.com/trailmind/dispatch/profile"
	"github.com/trailmind/dispatch/telemetry"
)

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	origin := fs.String("origin", "", "origin address")
	destination := fs.String("destination", "", "destination address")
	mode := fs.String("mode", "batch", "dispatch mode: batch|stream")
	profileName := fs.String("profile", "default", "consumer profile preset")
	interval := fs.Float64("interval", 0.5, "seconds between stream submissions")
	demo := fs.Bool("demo", false, "dispatch a fixed in-memory demo route")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	if !*demo && (*origin == "" || *destination == "") {
		fmt.Fprintln(os.Stderr, "dispatchctl run: --origin and --destination are required (or pass --demo)")
		return exitConfig
	}
	if *mode != "batch" && *mode != "stream" {
		fmt.Fprintf(os.Stderr, "dispatchctl run: unknown --mode %q\n", *mode)
		return exitConfig
	}
	prof, ok := resolveProfile(*profileName)
	if !ok {
		fmt.Fprintf(os.Stderr, "dispatchctl run: unknown --profile %q\n", *profileName)
		return exitConfig
	}

	cfg, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatchctl run: %v\n", err)
		return exitConfig
	}

	logger := core.NewProductionLogger(cfg.LogLevel)
	bus := eventbus.New(logger, 256)
	bus.Subscribe(eventbus.EventDispatchCompleted, func(ev eventbus.Event) {
		logger.Info("dispatch completed", map[string]interface{}{"waypoint_id": ev.WaypointID})
	})
	bus.Subscribe(eventbus.EventDispatchDegraded, func(ev eventbus.Event) {
		logger.Warn("dispatch degraded", map[string]interface{}{
			"waypoint_id": ev.WaypointID, "status": ev.Payload["status"],
		})
	})

	provider, err := telemetry.NewProvider("dispatchctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatchctl run: %v\n", err)
		return exitInternal
	}
	defer provider.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, orch, err := buildSystem(ctx, cfg, logger, bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatchctl run: %v\n", err)
		return exitInternal
	}
	if err := orch.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "dispatchctl run: %v\n", err)
		return exitInternal
	}
	defer orch.Stop(5 * time.Second)

	var waypoints []core.Waypoint
	if *demo {
		waypoints = demoRoute()
	} else {
		waypoints = twoPointRoute(*origin, *destination)
	}

	var runErr error
	if *mode == "batch" {
		runErr = runBatch(ctx, orch, waypoints, prof)
	} else {
		runErr = runStream(ctx, orch, waypoints, prof, time.Duration(*interval*float64(time.Second)))
	}

	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "dispatchctl run: interrupted")
		return exitInterrupt
	}
	if runErr != nil {
		if core.IsCancelled(runErr) {
			return exitInterrupt
		}
		fmt.Fprintf(os.Stderr, "dispatchctl run: %v\n", runErr)
		return exitInternal
	}
	return exitOK
}

// runBatch dispatches every Waypoint through SubmitBatch and prints each
// resulting Decision in input order.
func runBatch(ctx context.Context, orch *orchestration.Orchestrator, waypoints []core.Waypoint, prof *profile.Profile) error {
	decisions, err := orch.SubmitBatch(ctx, waypoints, prof)
	for _, d := range decisions {
		printDecision(d)
	}
	return err
}

// runStream submits Waypoints one at a time, paced by interval, and
// prints each Decision as its dispatch completes (not input order).
func runStream(ctx context.Context, orch *orchestration.Orchestrator, waypoints []core.Waypoint, prof *profile.Profile, interval time.Duration) error {
	in := make(chan core.Waypoint)
	go func() {
		defer close(in)
		for _, wp := range waypoints {
			select {
			case in <- wp:
			case <-ctx.Done():
				return
			}
			if interval > 0 {
				select {
				case <-time.After(interval):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	var lastErr error
	for result := range orch.Stream(ctx, in, prof) {
		printDecision(result.Decision)
		if result.Err != nil {
			lastErr = result.Err
		}
	}
	return lastErr
}

func printDecision(d core.Decision) {
	if d.SafetySkipped {
		fmt.Printf("[%s] no safe content selected: %s\n", d.WaypointID, d.Reasoning)
		return
	}
	if d.Selected == nil {
		fmt.Printf("[%s] dispatch failed\n", d.WaypointID)
		return
	}
	mock := ""
	if d.Selected.IsMock() {
		mock = " (mock)"
	}
	fmt.Printf("[%s] %s: %q%s (confidence %.2f) - %s\n",
		d.WaypointID, d.Selected.Kind, d.Selected.Title, mock, d.Confidence, d.Reasoning)
}
