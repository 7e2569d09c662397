package official

import (
	"encoding/json"
	"strings"
)

// RemoteProfile is the GetProfile payload.
type RemoteProfile struct {
	Id             string            `json:"Id"`
	LinkedAccounts map[string]string `json:"LinkedAccounts"`
	Extensions     RemoteExtensions  `json:"Extensions"`
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

// RemoteExtensions holds the profile extensions requested in ProfileExtensions.
type RemoteExtensions struct {
	Progression            RemoteProgression        `json:"progression"`
	GamePersistentData     RemoteGamePersistentData `json:"gamepersistentdata"`
	OpportunityProgression map[string]string        `json:"opportunityprogression"`
	Achievements           json.RawMessage          `json:"achievements"`
	Friends                []string                 `json:"friends"`
}

// RemoteProgression carries the progression counters and per-location XP.
type RemoteProgression struct {
	XPGain    int                                  `json:"XPGain"`
	LastScore int                                  `json:"LastScore"`
	Timers    json.RawMessage                      `json:"Timers"`
	Locations map[string]RemoteLocationProgression `json:"Locations"`
}

// RemoteLocationProgression is XP and level for one location.
type RemoteLocationProgression struct {
	Xp    int `json:"Xp"`
	Level int `json:"Level"`
}

// RemoteGamePersistentData is the gamepersistentdata extension.
type RemoteGamePersistentData struct {
	Stats             json.RawMessage   `json:"__stats"`
	PersistentBool    map[string]bool   `json:"PersistentBool"`
	Unlockables       map[string]bool   `json:"Unlockables"`
	HitsFilterType    map[string]string `json:"HitsFilterType"`
	PrologueUnlocked  bool              `json:"PrologueUnlocked"`
	PrologueCompleted bool              `json:"PrologueCompleted"`
	VideosShown       []string          `json:"VideosShown"`
	EpiloguesSeen     []RemoteEpilogue  `json:"EpiloguesSeen"`
}

// RemoteEpilogue marks one epilogue as seen at a location.
type RemoteEpilogue struct {
	Location string `json:"Location"`
	Id       string `json:"Id"`
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

// ChallengeWithProgression pairs a challenge with the player's progress on it.
type ChallengeWithProgression struct {
	Challenge   ChallengeSummary     `json:"Challenge"`
	Progression ChallengeProgression `json:"Progression"`
}

// ChallengeSummary is the subset of the challenge definition we keep.
type ChallengeSummary struct {
	Id   string `json:"Id"`
	Name string `json:"Name"`
}

// ChallengeProgression is the server's view of one challenge's progress.
type ChallengeProgression struct {
	ChallengeId string          `json:"ChallengeId"`
	ProfileId   string          `json:"ProfileId"`
	Completed   bool            `json:"Completed"`
	Ticked      bool            `json:"Ticked"`
	CompletedAt *string         `json:"CompletedAt"`
	State       json.RawMessage `json:"State"`
}

// ID returns the challenge id, preferring the progression's own id.
func (c ChallengeWithProgression) ID() string {
	if c.Progression.ChallengeId != "" {
		return c.Progression.ChallengeId
	}
	return c.Challenge.Id
}

// CurrentState extracts State.CurrentState; empty when absent.
func (p ChallengeProgression) CurrentState() string {
	if len(p.State) == 0 {
		return ""
	}
	var s struct {
		CurrentState string `json:"CurrentState"`
	}
	if err := json.Unmarshal(p.State, &s); err != nil {
		return ""
	}
	return s.CurrentState
}

// HitCategory names a server-side listing bucket.
type HitCategory string

const (
	CategoryHistory     HitCategory = "MyHistory"
	CategoryMyContracts HitCategory = "MyContracts"
	CategoryFavorites   HitCategory = "MyFavorites"
	CategoryArcade      HitCategory = "Arcade"
)

// HitCategories lists the categories fetched for a carryover, in fetch order.
var HitCategories = []HitCategory{
	CategoryHistory,
	CategoryMyContracts,
	CategoryFavorites,
	CategoryArcade,
}

type hitsCategoryResponse struct {
	Data struct {
		Data struct {
			Hits    []Hit `json:"Hits"`
			HasMore bool  `json:"HasMore"`
			Page    int   `json:"Page"`
		} `json:"Data"`
	} `json:"data"`
}

// Hit is one contract entry in a hit category listing.
type Hit struct {
	Id                  string              `json:"Id"`
	UserCentricContract UserCentricContract `json:"UserCentricContract"`
}

// UserCentricContract wraps a contract with the player's data for it.
type UserCentricContract struct {
	Contract struct {
		Metadata ContractMetadata `json:"Metadata"`
	} `json:"Contract"`
	Data UserCentricData `json:"Data"`
}

// ContractMetadata identifies a contract.
type ContractMetadata struct {
	Id            string `json:"Id"`
	PublicId      string `json:"PublicId"`
	Title         string `json:"Title"`
	Type          string `json:"Type"`
	Location      string `json:"Location"`
	CreatorUserId string `json:"CreatorUserId"`
}

// UserCentricData is the player's progress on a contract.
type UserCentricData struct {
	IsLocked                  bool   `json:"IsLocked"`
	LastPlayedAt              string `json:"LastPlayedAt"`
	Completed                 bool   `json:"Completed"`
	EscalationCompletedLevels int    `json:"EscalationCompletedLevels"`
	EscalationTotalLevels     int    `json:"EscalationTotalLevels"`
	EscalationCompleted       bool   `json:"EscalationCompleted"`
}

// ContractID returns the contract id of the hit.
func (h Hit) ContractID() string {
	if id := h.UserCentricContract.Contract.Metadata.Id; id != "" {
		return id
	}
	return h.Id
}

// PublicID returns the public contract id, trimmed.
func (h Hit) PublicID() string {
	return strings.TrimSpace(h.UserCentricContract.Contract.Metadata.PublicId)
}
