package carryover

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vitphire/flow-peacock/internal/official"
	"github.com/vitphire/flow-peacock/internal/profile"
)

// StartState is the state of a challenge with no recorded progress.
const StartState = "Start"

// Merge overwrites the profile fields backed by the snapshot. Apart from the
// shape of existing location records, no prior profile value is read.
func Merge(p *profile.UserProfile, snap *Snapshot) error {
	if p == nil || snap == nil || snap.Profile == nil {
		return fmt.Errorf("merge: profile and snapshot are required")
	}
	ensureExtensions(p)
	remote := snap.Profile

	mergeIdentity(p, remote)
	mergeProgression(&p.Extensions.Progression, remote.Extensions.Progression)
	if snap.PlayerProfile != nil {
		mergePlayerProfile(&p.Extensions.Progression.PlayerProfileXP, snap.PlayerProfile)
	}
	mergeGamePersistentData(&p.Extensions.GamePersistentData, remote.Extensions.GamePersistentData)

	p.Extensions.OpportunityProgression = opportunities(remote.Extensions.OpportunityProgression)
	p.Extensions.Achievements = remote.Extensions.Achievements
	p.Extensions.Friends = append([]string{}, remote.Extensions.Friends...)

	for id, c := range snap.Challenges {
		p.Extensions.ChallengeProgression[id] = challengeProgress(c.Progression)
	}

	mergeEscalations(&p.Extensions, snap.Hits[official.CategoryArcade])

	for id, payload := range snap.CPD {
		entry, err := flattenCPD(payload)
		if err != nil {
			return fmt.Errorf("merge: contract progression data %s: %w", id, err)
		}
		p.Extensions.CPD[id] = entry
	}
	return nil
}

func ensureExtensions(p *profile.UserProfile) {
	ext := &p.Extensions
	if ext.ChallengeProgression == nil {
		ext.ChallengeProgression = make(map[string]profile.ChallengeProgress)
	}
	if ext.PeacockEscalations == nil {
		ext.PeacockEscalations = make(map[string]int)
	}
	if ext.PeacockPlayedContracts == nil {
		ext.PeacockPlayedContracts = make(map[string]profile.PlayedContract)
	}
	if ext.CPD == nil {
		ext.CPD = make(map[string]map[string]json.RawMessage)
	}
	if ext.Progression.Locations == nil {
		ext.Progression.Locations = make(map[string]*profile.LocationProgression)
	}
}

func mergeIdentity(p *profile.UserProfile, remote *official.RemoteProfile) {
	p.Gamertag = remote.Gamertag
	p.DevId = remote.DevId
	p.SteamId = remote.SteamId
	p.EpicId = remote.EpicId
	p.NintendoId = remote.NintendoId
	p.XboxLiveId = remote.XboxLiveId
	p.PSNAccountId = remote.PSNAccountId
	p.PSNOnlineId = remote.PSNOnlineId

	p.LinkedAccounts = make(map[string]string, len(remote.LinkedAccounts))
	for k, v := range remote.LinkedAccounts {
		p.LinkedAccounts[k] = v
	}
}

func mergeProgression(local *profile.Progression, remote official.RemoteProgression) {
	local.XPGain = remote.XPGain
	local.LastScore = remote.LastScore
	local.Timers = remote.Timers

	for id, rl := range remote.Locations {
		key := strings.ToLower(id)
		ll, ok := local.Locations[key]
		if !ok || ll == nil {
			local.Locations[key] = profile.NewFlatLocation(rl.Xp, rl.Level)
			continue
		}

		switch ll.Kind {
		case profile.LocationFlat:
			ll.Flat.Xp = rl.Xp
			ll.Flat.Level = rl.Level
		case profile.LocationNested:
			// TODO: sniper locations track XP per unlockable; the remote
			// payload only carries one value per location, so every child
			// gets the same numbers until the per-unlockable split is fetched.
			for _, child := range ll.Nested {
				child.Xp = rl.Xp
				child.Level = rl.Level
			}
		}
	}
}

func mergePlayerProfile(local *profile.PlayerProfileXP, remote *official.PlayerProfileXP) {
	local.Total = remote.Total
	local.ProfileLevel = remote.ProfileLevel
	local.Sublocations = make([]profile.Sublocation, 0, len(remote.Sublocations))
	for _, sub := range remote.Sublocations {
		local.Sublocations = append(local.Sublocations, profile.Sublocation{
			Location: sub.Location,
			Xp:       sub.Xp,
			ActionXp: sub.ActionXp,
		})
	}
}

func mergeGamePersistentData(local *profile.GamePersistentData, remote official.RemoteGamePersistentData) {
	local.Stats = remote.Stats
	local.PersistentBool = copyBools(remote.PersistentBool)
	local.Unlockables = copyBools(remote.Unlockables)
	local.HitsFilterType = make(map[string]string, len(remote.HitsFilterType))
	for k, v := range remote.HitsFilterType {
		local.HitsFilterType[k] = v
	}

	local.Prologue = profile.Prologue{
		Unlocked:  remote.PrologueUnlocked,
		Completed: remote.PrologueCompleted,
	}

	local.Videos = make(map[string]profile.VideoState, len(remote.VideosShown))
	for _, id := range remote.VideosShown {
		local.Videos[id] = profile.VideoState{Shown: true}
	}

	local.Epilogues = make(map[string]map[string]bool)
	for _, e := range remote.EpiloguesSeen {
		if local.Epilogues[e.Location] == nil {
			local.Epilogues[e.Location] = make(map[string]bool)
		}
		local.Epilogues[e.Location][e.Id] = true
	}
}

func copyBools(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// opportunities marks an opportunity unlocked when the server has any value
// for it.
func opportunities(remote map[string]string) map[string]bool {
	out := make(map[string]bool, len(remote))
	for id, v := range remote {
		out[id] = v != ""
	}
	return out
}

// challengeProgress trusts CompletedAt when the completed flag lags behind.
func challengeProgress(remote official.ChallengeProgression) profile.ChallengeProgress {
	completed := remote.Completed || remote.CompletedAt != nil
	state := remote.CurrentState()
	if state == "" {
		state = StartState
	}
	return profile.ChallengeProgress{
		Ticked:       completed,
		Completed:    completed,
		CurrentState: state,
		State:        remote.State,
	}
}

func mergeEscalations(ext *profile.Extensions, arcade []official.Hit) {
	for _, hit := range arcade {
		id := hit.ContractID()
		if id == "" {
			continue
		}
		data := hit.UserCentricContract.Data
		ext.PeacockEscalations[id] = data.EscalationCompletedLevels + 1
		if data.EscalationCompleted {
			ext.PeacockCompletedEscalations = appendUnique(ext.PeacockCompletedEscalations, id)
		}
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// flattenCPD lifts every top-level field and keeps the whole payload under
// "Payload".
func flattenCPD(payload map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	entry := make(map[string]json.RawMessage, len(payload)+1)
	for k, v := range payload {
		entry[k] = v
	}
	entry["Payload"] = raw
	return entry, nil
}
