// Package missions holds the per game version registry of mission ids,
// grouped by parent location and sub-location.
package missions

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

//go:embed data/*.json
var builtin embed.FS

// Registry serves mission ids per game version. Registries are decoded from
// <dir>/<version>.json when present, else from the embedded data, on first
// use and cached.
type Registry struct {
	dir string

	mu    sync.Mutex
	trees map[string]any
}

// NewRegistry creates a registry backed by the built-in data.
func NewRegistry() *Registry {
	return NewRegistryWithDir("")
}

// NewRegistryWithDir creates a registry whose files in dir replace the
// built-in data per game version. dir may be empty.
func NewRegistryWithDir(dir string) *Registry {
	return &Registry{dir: dir, trees: make(map[string]any)}
}

// NewRegistryFromTrees creates a registry from already-decoded nested
// structures, keyed by game version.
func NewRegistryFromTrees(trees map[string]any) *Registry {
	r := NewRegistry()
	for gv, tree := range trees {
		r.trees[gv] = tree
	}
	return r
}

func (r *Registry) tree(gameVersion string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tree, ok := r.trees[gameVersion]; ok {
		return tree, nil
	}

	data, err := r.read(gameVersion)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse mission registry for %s: %w", gameVersion, err)
	}
	r.trees[gameVersion] = tree
	return tree, nil
}

func (r *Registry) read(gameVersion string) ([]byte, error) {
	if r.dir != "" {
		data, err := os.ReadFile(filepath.Join(r.dir, gameVersion+".json"))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read mission registry for %s: %w", gameVersion, err)
		}
	}
	data, err := builtin.ReadFile("data/" + gameVersion + ".json")
	if err != nil {
		return nil, fmt.Errorf("no mission registry for game version %q", gameVersion)
	}
	return data, nil
}

// MissionIDs returns every mission id in the registry for a game version,
// de-duplicated and sorted.
func (r *Registry) MissionIDs(gameVersion string) ([]string, error) {
	tree, err := r.tree(gameVersion)
	if err != nil {
		return nil, err
	}

	ids := CollectStrings(tree)
	sort.Strings(ids)
	out := ids[:0]
	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// CollectStrings walks a decoded JSON structure and returns every string
// value it contains. Map iteration order is not stable, so neither is the
// order of the result.
func CollectStrings(v any) []string {
	var out []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case []any:
			for _, item := range t {
				walk(item)
			}
		case []string:
			out = append(out, t...)
		case map[string]any:
			for _, item := range t {
				walk(item)
			}
		case map[string][]string:
			for _, item := range t {
				out = append(out, item...)
			}
		}
	}
	walk(v)
	return out
}
