package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/trailmind/dispatch/core"
	"github.com/trailmind/dispatch/eventbus"
)

// Registry is the process-wide Worker table. Reads (lookup, enumerate,
// filter by capability) dominate and must not block one another, so
// lookups take a read lock and only registration/removal takes a write
// lock.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*Instance
	watcher *fsnotify.Watcher
	logger  core.Logger
	bus     *eventbus.Bus
}

// NewRegistry builds an empty Registry. bus may be nil; when set, the
// registry publishes WorkerLoaded/WorkerStarted/WorkerStopped/WorkerError
// events as Workers move through StartAll/StopAll.
func NewRegistry(logger core.Logger, bus *eventbus.Bus) *Registry {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Registry{
		workers: make(map[string]*Instance),
		logger:  logger,
		bus:     bus,
	}
}

func (r *Registry) publish(ev eventbus.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

const registryEventSource = "worker.Registry"

// Register adds an Instance under its Worker's metadata name. Registering
// a name twice replaces the existing entry — duplicate rejection is the
// manifest loader's job, not the registry's.
func (r *Registry) Register(inst *Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[inst.Metadata().Name] = inst
}

// Lookup finds a registered Instance by name.
func (r *Registry) Lookup(name string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.workers[name]
	return inst, ok
}

// Enumerate returns every registered Instance, in no particular order.
func (r *Registry) Enumerate() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Instance, 0, len(r.workers))
	for _, inst := range r.workers {
		out = append(out, inst)
	}
	return out
}

// FilterByCapability returns every registered Instance whose Worker
// declares tag among its CapabilityTags.
func (r *Registry) FilterByCapability(tag string) []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Instance
	for _, inst := range r.workers {
		for _, t := range inst.Metadata().CapabilityTags {
			if t == tag {
				out = append(out, inst)
				break
			}
		}
	}
	return out
}

// StartAll configures and starts every registered Worker in topological
// dependency order, built from the same manifest data used to register
// them. Callers pass the manifests alongside the factory that turns a
// manifest's entry point into a live Worker, since a manifest alone
// carries no executable code.
func (r *Registry) StartAll(ctx context.Context, manifests []Manifest, factory func(Manifest) (Worker, error), configs map[string]map[string]interface{}) error {
	order, err := TopologicalOrder(manifests)
	if err != nil {
		return err
	}

	byName := make(map[string]Manifest, len(manifests))
	for _, m := range manifests {
		byName[m.Name] = m
	}

	for _, name := range order {
		m := byName[name]
		w, err := factory(m)
		if err != nil {
			return fmt.Errorf("worker: build %s: %w", name, err)
		}

		inst := NewInstance(w)
		loadedEvent := eventbus.New(eventbus.EventWorkerLoaded, registryEventSource)
		loadedEvent.WorkerID = name
		loadedEvent.Payload["version"] = m.Version
		r.publish(loadedEvent)

		cfg := configs[name]
		if cfg == nil {
			cfg = m.DefaultConfig
		}
		if err := inst.Configure(cfg); err != nil {
			r.publishError(name, "config_invalid", err)
			return fmt.Errorf("worker: configure %s: %w", name, err)
		}
		if err := inst.Start(ctx); err != nil {
			r.publishError(name, "start_failed", err)
			return fmt.Errorf("worker: start %s: %w", name, err)
		}

		r.Register(inst)
		startedEvent := eventbus.New(eventbus.EventWorkerStarted, registryEventSource)
		startedEvent.WorkerID = name
		r.publish(startedEvent)
		r.logger.Info("worker started", map[string]interface{}{"worker": name, "version": m.Version})
	}

	return nil
}

func (r *Registry) publishError(name, kind string, err error) {
	ev := eventbus.New(eventbus.EventWorkerError, registryEventSource)
	ev.WorkerID = name
	ev.Payload["error_kind"] = kind
	ev.Payload["error_message"] = err.Error()
	r.publish(ev)
}

// StopAll stops every registered Worker, collecting (not short-circuiting
// on) the first error so one stuck Worker doesn't block the others from
// releasing their resources.
func (r *Registry) StopAll(ctx context.Context) error {
	var firstErr error
	for _, inst := range r.Enumerate() {
		name := inst.Metadata().Name
		uptime := inst.Uptime()
		if err := inst.Stop(ctx); err != nil {
			r.publishError(name, "stop_failed", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		stoppedEvent := eventbus.New(eventbus.EventWorkerStopped, registryEventSource)
		stoppedEvent.WorkerID = name
		stoppedEvent.Payload["uptime_seconds"] = uptime.Seconds()
		r.publish(stoppedEvent)
	}
	return firstErr
}

// WatchManifestDir watches dir for manifest file changes, reloading the
// manifest set and invoking onChange with it on every create, write,
// remove or rename event; events are not debounced. The watcher runs
// until ctx is cancelled.
func (r *Registry) WatchManifestDir(ctx context.Context, dir string, onChange func([]Manifest)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("worker: create manifest watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("worker: watch manifest dir %s: %w", dir, err)
	}
	r.watcher = watcher

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				manifests, err := LoadManifests(dir)
				if err != nil {
					r.logger.Error("manifest reload failed", map[string]interface{}{"error": err.Error()})
					continue
				}
				onChange(manifests)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Error("manifest watcher error", map[string]interface{}{"error": err.Error()})
			}
		}
	}()

	return nil
}
