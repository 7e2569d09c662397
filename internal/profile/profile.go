// Package profile defines the local save-format user profile and the
// versioned defaults a fresh profile is built from.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// UserProfile is the local record for one player on one game version.
type UserProfile struct {
	Id             string            `json:"Id"`
	LinkedAccounts map[string]string `json:"LinkedAccounts"`
	Extensions     Extensions        `json:"Extensions"`
	ETag           *string           `json:"ETag"`
	Gamertag       string            `json:"Gamertag"`
	DevId          *string           `json:"DevId"`
	SteamId        *string           `json:"SteamId"`
	EpicId         *string           `json:"EpicId"`
	NintendoId     *string           `json:"NintendoId"`
	XboxLiveId     *string           `json:"XboxLiveId"`
	PSNAccountId   *string           `json:"PSNAccountId"`
	PSNOnlineId    *string           `json:"PSNOnlineId"`
}

// Extensions holds everything the game and the server track per player.
type Extensions struct {
	PeacockEscalations          map[string]int                        `json:"PeacockEscalations"`
	PeacockFavoriteContracts    []string                              `json:"PeacockFavoriteContracts"`
	PeacockCompletedEscalations []string                              `json:"PeacockCompletedEscalations"`
	PeacockPlayedContracts      map[string]PlayedContract             `json:"PeacockPlayedContracts"`
	CPD                         map[string]map[string]json.RawMessage `json:"CPD"`
	DefaultLoadout              json.RawMessage                       `json:"defaultloadout,omitempty"`
	Entitlements                []string                              `json:"entitlements"`
	OpportunityProgression      map[string]bool                       `json:"opportunityprogression"`
	GamePersistentData          GamePersistentData                    `json:"gamepersistentdata"`
	Progression                 Progression                           `json:"progression"`
	Achievements                json.RawMessage                       `json:"achievements,omitempty"`
	Friends                     []string                              `json:"friends"`
	ChallengeProgression        map[string]ChallengeProgress          `json:"ChallengeProgression"`
}

// PlayedContract records a contract the player has played.
type PlayedContract struct {
	LastPlayedAt int64 `json:"LastPlayedAt,omitempty"`
	Completed    bool  `json:"Completed,omitempty"`
	IsEscalation bool  `json:"IsEscalation,omitempty"`
}

// GamePersistentData is the game-owned state blob, reshaped for the local
// schema.
type GamePersistentData struct {
	Stats          json.RawMessage            `json:"__stats,omitempty"`
	PersistentBool map[string]bool            `json:"PersistentBool"`
	Unlockables    map[string]bool            `json:"Unlockables"`
	HitsFilterType map[string]string          `json:"HitsFilterType"`
	Prologue       Prologue                   `json:"Prologue"`
	Videos         map[string]VideoState      `json:"Videos"`
	Epilogues      map[string]map[string]bool `json:"Epilogues"`
	MenuData       map[string]json.RawMessage `json:"menudata,omitempty"`
}

// Prologue flags.
type Prologue struct {
	Unlocked  bool `json:"Unlocked"`
	Completed bool `json:"Completed"`
}

// VideoState marks a video as shown.
type VideoState struct {
	Shown bool `json:"Shown"`
}

// Progression carries XP counters and per-location progression.
type Progression struct {
	LastScore       int                             `json:"LastScore"`
	XPGain          int                             `json:"XPGain"`
	Timers          json.RawMessage                 `json:"Timers,omitempty"`
	PlayerProfileXP PlayerProfileXP                 `json:"PlayerProfileXP"`
	Locations       map[string]*LocationProgression `json:"Locations"`
	Unlockables     map[string]json.RawMessage      `json:"Unlockables,omitempty"`
}

// PlayerProfileXP is the aggregate XP record.
type PlayerProfileXP struct {
	Total        int           `json:"Total"`
	ProfileLevel int           `json:"ProfileLevel"`
	Sublocations []Sublocation `json:"Sublocations"`
}

// Sublocation is the XP earned in one sub-area.
type Sublocation struct {
	Location string `json:"Location"`
	Xp       int    `json:"Xp"`
	ActionXp int    `json:"ActionXp"`
}

// ChallengeProgress is the local progress entry of one challenge.
type ChallengeProgress struct {
	Ticked       bool            `json:"Ticked"`
	Completed    bool            `json:"Completed"`
	CurrentState string          `json:"CurrentState"`
	State        json.RawMessage `json:"State,omitempty"`
}

// ReadFile loads a profile from disk.
func ReadFile(path string) (*UserProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return &p, nil
}

// WriteFile persists a profile, creating parent directories. The file is
// replaced atomically.
func WriteFile(path string, p *UserProfile) error {
	if p == nil {
		return fmt.Errorf("nil profile")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace profile: %w", err)
	}
	return nil
}
