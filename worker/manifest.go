package worker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/trailmind/dispatch/core"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk declaration a Worker's directory carries:
// name, version, declared entry point, dependencies, and default config.
// Discovery reads these from the configured manifest directory tree.
type Manifest struct {
	Name         string                 `yaml:"name"`
	Version      string                 `yaml:"version"`
	EntryPoint   string                 `yaml:"entry_point"`
	Kind         string                 `yaml:"kind"`
	DependsOn    []string               `yaml:"depends_on"`
	DefaultConfig map[string]interface{} `yaml:"default_config"`
	Replace      bool                   `yaml:"replace"`
}

// LoadManifests reads every *.yaml/*.yml file directly under dir,
// validating semver and rejecting duplicate names unless a later entry
// sets replace: true; otherwise a duplicate name without the explicit
// replace flag is rejected.
func LoadManifests(dir string) ([]Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("worker: read manifest dir %s: %w", dir, err)
	}

	seen := make(map[string]bool)
	var manifests []Manifest

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("worker: read manifest %s: %w", path, err)
		}

		var m Manifest
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("worker: parse manifest %s: %w", path, err)
		}

		if m.Name == "" {
			return nil, fmt.Errorf("worker: manifest %s missing name", path)
		}
		if !semver.IsValid(normalizeSemver(m.Version)) {
			return nil, fmt.Errorf("worker: manifest %s has invalid semver %q", path, m.Version)
		}
		if seen[m.Name] && !m.Replace {
			return nil, fmt.Errorf("worker: duplicate manifest name %q (set replace: true to override)", m.Name)
		}
		seen[m.Name] = true

		manifests = append(manifests, m)
	}

	return manifests, nil
}

func normalizeSemver(v string) string {
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

// TopologicalOrder returns manifest names ordered so each entry's
// DependsOn names precede it, rejecting a cycle with ErrCircularDependency
// and a missing dependency with a descriptive error.
func TopologicalOrder(manifests []Manifest) ([]string, error) {
	byName := make(map[string]Manifest, len(manifests))
	for _, m := range manifests {
		byName[m.Name] = m
	}
	for _, m := range manifests {
		for _, dep := range m.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("worker: %s depends on unregistered worker %s", m.Name, dep)
			}
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(manifests))
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case grey:
			return fmt.Errorf("worker: circular dependency at %s: %w", name, core.ErrCircularDependency)
		}
		color[name] = grey
		for _, dep := range byName[name].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	for _, m := range manifests {
		if err := visit(m.Name); err != nil {
			return nil, err
		}
	}

	return order, nil
}
