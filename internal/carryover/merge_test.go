package carryover

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitphire/flow-peacock/internal/official"
	"github.com/vitphire/flow-peacock/internal/profile"
)

func emptyProfile() *profile.UserProfile {
	return &profile.UserProfile{}
}

func snapshotWith(remote official.RemoteProfile) *Snapshot {
	return &Snapshot{Profile: &remote}
}

func TestMerge_LocationXPMatchesRemoteForEveryShape(t *testing.T) {
	tests := []struct {
		name  string
		local *profile.LocationProgression
	}{
		{"flat", profile.NewFlatLocation(10, 1)},
		{"nested", &profile.LocationProgression{Kind: profile.LocationNested, Nested: map[string]*profile.LocationRecord{
			"FIREARMS_SC_HERO_SNIPER_HM":     {Xp: 1, Level: 1},
			"FIREARMS_SC_HERO_SNIPER_KNIGHT": {Xp: 2, Level: 2},
		}}},
		{"absent", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := emptyProfile()
			p.Extensions.Progression.Locations = map[string]*profile.LocationProgression{}
			if tt.local != nil {
				p.Extensions.Progression.Locations["location_parent_x"] = tt.local
			}
			var remote official.RemoteProfile
			remote.Extensions.Progression.Locations = map[string]official.RemoteLocationProgression{
				"LOCATION_PARENT_X": {Xp: 7777, Level: 9},
			}

			require.NoError(t, Merge(p, snapshotWith(remote)))

			got := p.Extensions.Progression.Locations["location_parent_x"]
			require.NotNil(t, got)
			switch got.Kind {
			case profile.LocationFlat:
				assert.Equal(t, 7777, got.Flat.Xp)
				assert.Equal(t, 9, got.Flat.Level)
			case profile.LocationNested:
				require.NotEmpty(t, got.Nested)
				for _, child := range got.Nested {
					assert.Equal(t, 7777, child.Xp)
					assert.Equal(t, 9, child.Level)
				}
			}
			if tt.local != nil {
				assert.Equal(t, tt.local.Kind, got.Kind, "the local shape is kept")
			}
		})
	}
}

func TestMerge_OpportunitiesAreTrueIffNonEmpty(t *testing.T) {
	var remote official.RemoteProfile
	remote.Extensions.OpportunityProgression = map[string]string{
		"a": "x",
		"b": "",
		"c": " ",
		"d": "2023-01-01T00:00:00Z",
	}
	p := emptyProfile()
	require.NoError(t, Merge(p, snapshotWith(remote)))

	for k, v := range remote.Extensions.OpportunityProgression {
		assert.Equal(t, v != "", p.Extensions.OpportunityProgression[k], k)
	}
	assert.Len(t, p.Extensions.OpportunityProgression, 4)
}

func TestChallengeProgress_Completion(t *testing.T) {
	stamp := "2022-05-05T10:00:00Z"
	tests := []struct {
		name        string
		completed   bool
		completedAt *string
		want        bool
	}{
		{"neither", false, nil, false},
		{"flag", true, nil, true},
		{"timestamp", false, &stamp, true},
		{"both", true, &stamp, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := challengeProgress(official.ChallengeProgression{Completed: tt.completed, CompletedAt: tt.completedAt})
			assert.Equal(t, tt.want, got.Completed)
			assert.Equal(t, tt.want, got.Ticked)
			assert.Equal(t, StartState, got.CurrentState)
		})
	}
}

func TestChallengeProgress_KeepsState(t *testing.T) {
	state := json.RawMessage(`{"CurrentState": "Counting", "Count": 3}`)
	got := challengeProgress(official.ChallengeProgression{State: state})
	assert.Equal(t, "Counting", got.CurrentState)
	assert.JSONEq(t, string(state), string(got.State))
}

func TestMergeEscalations(t *testing.T) {
	hit := func(id string, levels int, done bool) official.Hit {
		var h official.Hit
		h.UserCentricContract.Contract.Metadata.Id = id
		h.UserCentricContract.Data.EscalationCompletedLevels = levels
		h.UserCentricContract.Data.EscalationCompleted = done
		return h
	}
	arcade := []official.Hit{
		hit("e0", 0, false),
		hit("e1", 4, true),
		hit("e2", 2, false),
		hit("e1", 4, true),
	}

	ext := &profile.Extensions{PeacockEscalations: map[string]int{}}
	mergeEscalations(ext, arcade)

	for _, h := range arcade {
		assert.Equal(t, h.UserCentricContract.Data.EscalationCompletedLevels+1, ext.PeacockEscalations[h.ContractID()])
	}
	assert.Equal(t, []string{"e1"}, ext.PeacockCompletedEscalations)
}

func TestMerge_GamePersistentDataReshape(t *testing.T) {
	var remote official.RemoteProfile
	gpd := &remote.Extensions.GamePersistentData
	gpd.Stats = json.RawMessage(`{"a": 1}`)
	gpd.PersistentBool = map[string]bool{"k": true}
	gpd.Unlockables = map[string]bool{"u": true}
	gpd.HitsFilterType = map[string]string{"MyHistory": "all"}
	gpd.PrologueUnlocked = true
	gpd.VideosShown = []string{"v1", "v2"}
	gpd.EpiloguesSeen = []official.RemoteEpilogue{
		{Location: "L1", Id: "e1"},
		{Location: "L1", Id: "e2"},
		{Location: "L2", Id: "e3"},
	}

	p := emptyProfile()
	p.Extensions.GamePersistentData.Videos = map[string]profile.VideoState{"stale": {Shown: true}}
	require.NoError(t, Merge(p, snapshotWith(remote)))

	want := profile.GamePersistentData{
		Stats:          json.RawMessage(`{"a": 1}`),
		PersistentBool: map[string]bool{"k": true},
		Unlockables:    map[string]bool{"u": true},
		HitsFilterType: map[string]string{"MyHistory": "all"},
		Prologue:       profile.Prologue{Unlocked: true},
		Videos:         map[string]profile.VideoState{"v1": {Shown: true}, "v2": {Shown: true}},
		Epilogues: map[string]map[string]bool{
			"L1": {"e1": true, "e2": true},
			"L2": {"e3": true},
		},
	}
	if diff := cmp.Diff(want, p.Extensions.GamePersistentData); diff != "" {
		t.Errorf("game persistent data mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_PlayerProfileReplacesSublocations(t *testing.T) {
	p := emptyProfile()
	p.Extensions.Progression.PlayerProfileXP.Sublocations = []profile.Sublocation{{Location: "OLD", Xp: 1}}

	snap := snapshotWith(official.RemoteProfile{})
	snap.PlayerProfile = &official.PlayerProfileXP{
		Total:        500,
		ProfileLevel: 2,
		Sublocations: []official.Sublocation{{Location: "NEW", Xp: 10, ActionXp: 3}},
	}
	require.NoError(t, Merge(p, snap))

	assert.Equal(t, profile.PlayerProfileXP{
		Total:        500,
		ProfileLevel: 2,
		Sublocations: []profile.Sublocation{{Location: "NEW", Xp: 10, ActionXp: 3}},
	}, p.Extensions.Progression.PlayerProfileXP)
}

func TestMerge_RequiresInputs(t *testing.T) {
	assert.Error(t, Merge(nil, &Snapshot{}))
	assert.Error(t, Merge(emptyProfile(), nil))
	assert.Error(t, Merge(emptyProfile(), &Snapshot{}))
}

func TestMerge_IsPureOverwrite(t *testing.T) {
	var remote official.RemoteProfile
	remote.Gamertag = "47"
	remote.Extensions.Friends = []string{"diana"}
	remote.Extensions.Progression.Locations = map[string]official.RemoteLocationProgression{"LOCATION_PARENT_PARIS": {Xp: 5, Level: 2}}

	defaults := profile.NewDefaults("")
	a, err := defaults.Default("h3")
	require.NoError(t, err)
	b, err := defaults.Default("h3")
	require.NoError(t, err)

	require.NoError(t, Merge(a, snapshotWith(remote)))
	require.NoError(t, Merge(b, snapshotWith(remote)))
	require.NoError(t, Merge(b, snapshotWith(remote)))

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("merging twice changed the result (-once +twice):\n%s", diff)
	}
}
