package workers

import (
	"fmt"

	"github.com/trailmind/dispatch/worker"
)

// Factory builds a live Worker from a loaded Manifest, dispatching on the
// manifest's entry_point field. It is the factory func worker.Registry.
// StartAll expects.
func Factory(m worker.Manifest) (worker.Worker, error) {
	switch m.EntryPoint {
	case "video":
		return NewVideoWorker(m.Name, priorityOf(m)), nil
	case "music":
		return NewMusicWorker(m.Name, priorityOf(m)), nil
	case "text":
		return NewTextWorker(m.Name, priorityOf(m)), nil
	default:
		return nil, fmt.Errorf("workers: unknown entry_point %q for manifest %s", m.EntryPoint, m.Name)
	}
}

func priorityOf(m worker.Manifest) int {
	if v, ok := m.DefaultConfig["priority"]; ok {
		switch p := v.(type) {
		case int:
			return p
		case float64:
			return int(p)
		}
	}
	return 0
}
