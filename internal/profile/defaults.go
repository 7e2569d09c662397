package profile

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

//go:embed defaults/*.json
var builtinDefaults embed.FS

// Defaults hands out fresh default profiles per game version. A directory
// may shadow the built-in templates with <dir>/<version>.json.
type Defaults struct {
	dir string

	mu        sync.Mutex
	templates map[string][]byte
}

// NewDefaults creates a defaults store. dir may be empty.
func NewDefaults(dir string) *Defaults {
	return &Defaults{dir: dir, templates: make(map[string][]byte)}
}

func (d *Defaults) template(gameVersion string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if data, ok := d.templates[gameVersion]; ok {
		return data, nil
	}

	var data []byte
	if d.dir != "" {
		override, err := os.ReadFile(filepath.Join(d.dir, gameVersion+".json"))
		if err == nil {
			data = override
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read default profile override: %w", err)
		}
	}
	if data == nil {
		builtin, err := builtinDefaults.ReadFile("defaults/" + gameVersion + ".json")
		if err != nil {
			return nil, fmt.Errorf("no default profile for game version %q", gameVersion)
		}
		data = builtin
	}

	d.templates[gameVersion] = data
	return data, nil
}

// Default returns a new profile decoded from the version's template. Every
// call returns an independent copy.
func (d *Defaults) Default(gameVersion string) (*UserProfile, error) {
	data, err := d.template(gameVersion)
	if err != nil {
		return nil, err
	}

	var p UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse default profile for %s: %w", gameVersion, err)
	}
	p.ensureContainers()
	return &p, nil
}

// ensureContainers replaces nil maps so callers can write into them.
func (p *UserProfile) ensureContainers() {
	if p.LinkedAccounts == nil {
		p.LinkedAccounts = make(map[string]string)
	}
	ext := &p.Extensions
	if ext.PeacockEscalations == nil {
		ext.PeacockEscalations = make(map[string]int)
	}
	if ext.PeacockPlayedContracts == nil {
		ext.PeacockPlayedContracts = make(map[string]PlayedContract)
	}
	if ext.CPD == nil {
		ext.CPD = make(map[string]map[string]json.RawMessage)
	}
	if ext.OpportunityProgression == nil {
		ext.OpportunityProgression = make(map[string]bool)
	}
	if ext.ChallengeProgression == nil {
		ext.ChallengeProgression = make(map[string]ChallengeProgress)
	}
	if ext.Progression.Locations == nil {
		ext.Progression.Locations = make(map[string]*LocationProgression)
	}
	gpd := &ext.GamePersistentData
	if gpd.PersistentBool == nil {
		gpd.PersistentBool = make(map[string]bool)
	}
	if gpd.Videos == nil {
		gpd.Videos = make(map[string]VideoState)
	}
	if gpd.Epilogues == nil {
		gpd.Epilogues = make(map[string]map[string]bool)
	}
}
