// Package challenges loads challenge definitions per game version and looks
// them up by id.
package challenges

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/vitphire/flow-peacock/internal/logging"
	"github.com/vitphire/flow-peacock/internal/statemachine"
)

//go:embed data/*.json
var builtin embed.FS

// Challenge is one registry entry.
type Challenge struct {
	Id               string                  `json:"Id"`
	Name             string                  `json:"Name"`
	Description      string                  `json:"Description"`
	Type             string                  `json:"Type"`
	LocationId       string                  `json:"LocationId"`
	ParentLocationId string                  `json:"ParentLocationId"`
	Tags             []string                `json:"Tags"`
	Xp               int                     `json:"Xp"`
	Definition       statemachine.Definition `json:"Definition"`
}

// Group is a category of challenges at one location.
type Group struct {
	CategoryId string      `json:"CategoryId"`
	Name       string      `json:"Name"`
	Location   string      `json:"Location"`
	Challenges []Challenge `json:"Challenges"`
}

type groupFile struct {
	Groups []Group `json:"Groups"`
}

// Registry indexes challenges by game version and id. Extra definitions are
// read from <dir>/<version>/*.json and win over built-ins with the same id.
type Registry struct {
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	versions map[string]map[string]*Challenge
}

// NewRegistry creates a registry. dir may be empty.
func NewRegistry(dir string, logger *zap.Logger) *Registry {
	logger = logging.OrNop(logger)
	return &Registry{dir: dir, logger: logger, versions: make(map[string]map[string]*Challenge)}
}

// ChallengeByID finds a challenge for a game version. Load failures are
// logged and reported as not found.
func (r *Registry) ChallengeByID(id, gameVersion string) (*Challenge, bool) {
	index, err := r.index(gameVersion)
	if err != nil {
		r.logger.Warn("Challenge registry unavailable",
			zap.String("game_version", gameVersion), zap.Error(err))
		return nil, false
	}
	c, ok := index[id]
	return c, ok
}

// Count returns how many challenges are known for a game version.
func (r *Registry) Count(gameVersion string) (int, error) {
	index, err := r.index(gameVersion)
	if err != nil {
		return 0, err
	}
	return len(index), nil
}

func (r *Registry) index(gameVersion string) (map[string]*Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index, ok := r.versions[gameVersion]; ok {
		return index, nil
	}

	data, err := builtin.ReadFile("data/" + gameVersion + ".json")
	if err != nil {
		return nil, fmt.Errorf("no challenges for game version %q", gameVersion)
	}
	index := make(map[string]*Challenge)
	if err := addGroups(index, data); err != nil {
		return nil, fmt.Errorf("failed to parse built-in challenges for %s: %w", gameVersion, err)
	}

	if r.dir != "" {
		files, err := filepath.Glob(filepath.Join(r.dir, gameVersion, "*.json"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read challenges %s: %w", file, err)
			}
			if err := addGroups(index, data); err != nil {
				return nil, fmt.Errorf("failed to parse challenges %s: %w", file, err)
			}
			r.logger.Debug("Loaded challenge file", zap.String("path", file))
		}
	}

	r.versions[gameVersion] = index
	return index, nil
}

func addGroups(index map[string]*Challenge, data []byte) error {
	var f groupFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	for gi := range f.Groups {
		for ci := range f.Groups[gi].Challenges {
			c := &f.Groups[gi].Challenges[ci]
			if c.Id == "" {
				return fmt.Errorf("challenge %d of group %q has no id", ci, f.Groups[gi].CategoryId)
			}
			index[c.Id] = c
		}
	}
	return nil
}
