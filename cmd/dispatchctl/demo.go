package main

import "github.com/trailmind/dispatch/core"

// demoRoute is the fixed in-memory route `run --demo` exercises. Waypoint
// names match the curated mock catalogs in workers/{video,music,text}.go
// so the demo always shows at least one non-generic mock Artifact per
// content kind.
func demoRoute() []core.Waypoint {
	return []core.Waypoint{
		{ID: "wp-1", Index: 0, Name: "Ammunition Hill", Address: "Ammunition Hill, Jerusalem, Israel"},
		{ID: "wp-2", Index: 1, Name: "Jerusalem", Address: "Jerusalem, Israel",
			CumulativeDistanceMeters: 4200, CumulativeDurationSeconds: 600},
		{ID: "wp-3", Index: 2, Name: "Latrun", Address: "Latrun, Israel",
			CumulativeDistanceMeters: 28000, CumulativeDurationSeconds: 1800},
		{ID: "wp-4", Index: 3, Name: "Tel Aviv", Address: "Tel Aviv, Israel",
			CumulativeDistanceMeters: 62000, CumulativeDurationSeconds: 3600},
	}
}

// twoPointRoute builds the minimal origin/destination route `run`
// dispatches when not given --demo. This CLI has no geocoding or
// routing-engine integration, so every Waypoint besides the two named
// endpoints is out of scope; a host embedding this core would supply its
// own route producer upstream of the Orchestrator.
func twoPointRoute(origin, destination string) []core.Waypoint {
	return []core.Waypoint{
		{ID: "origin", Index: 0, Name: origin, Address: origin},
		{ID: "destination", Index: 1, Name: destination, Address: destination,
			CumulativeDistanceMeters: 0, CumulativeDurationSeconds: 0},
	}
}
