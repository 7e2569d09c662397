package carryover

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vitphire/flow-peacock/internal/challenges"
	"github.com/vitphire/flow-peacock/internal/official"
	"github.com/vitphire/flow-peacock/internal/profile"
	"github.com/vitphire/flow-peacock/internal/statemachine"
)

func discoverySnapshot(discovered ...string) *Snapshot {
	var remote official.RemoteProfile
	remote.Extensions.GamePersistentData.PersistentBool = map[string]bool{}
	for _, id := range DiscoveryAreaIDs {
		remote.Extensions.GamePersistentData.PersistentBool[id] = false
	}
	for _, id := range discovered {
		remote.Extensions.GamePersistentData.PersistentBool[id] = true
	}
	return &Snapshot{Profile: &remote}
}

func newDiscoveryProfile() *profile.UserProfile {
	return &profile.UserProfile{Extensions: profile.Extensions{ChallengeProgression: map[string]profile.ChallengeProgress{}}}
}

func TestReconstructDiscovery_SingleAreaWithStub(t *testing.T) {
	rig := newRig()
	eval := &successEvaluator{}
	rig.evaluator = eval
	svc := rig.service(t)

	p := newDiscoveryProfile()
	require.NoError(t, svc.reconstructDiscoveryChallenge(p, discoverySnapshot(DiscoveryAreaIDs[0]), "h3"))

	require.Len(t, eval.values, 1)
	assert.Equal(t, DiscoveryAreaIDs[0], eval.values[0]["RepositoryId"])

	got := p.Extensions.ChallengeProgression[DiscoveryChallengeID]
	assert.True(t, got.Completed)
	assert.True(t, got.Ticked)
	assert.Equal(t, "Success", got.CurrentState)
}

func TestReconstructDiscovery_ReplaysInListOrder(t *testing.T) {
	rig := newRig()
	eval := &successEvaluator{}
	rig.evaluator = eval
	svc := rig.service(t)

	p := newDiscoveryProfile()
	snap := discoverySnapshot(DiscoveryAreaIDs[4], DiscoveryAreaIDs[1], DiscoveryAreaIDs[3])
	require.NoError(t, svc.reconstructDiscoveryChallenge(p, snap, "h3"))

	var replayed []string
	for _, v := range eval.values {
		replayed = append(replayed, v["RepositoryId"])
	}
	assert.Equal(t, []string{DiscoveryAreaIDs[1], DiscoveryAreaIDs[3], DiscoveryAreaIDs[4]}, replayed)
	assert.Equal(t, []string{StartState, "Success", "Success"}, eval.states, "each event starts from the previous state")
}

func TestReconstructDiscovery_AreasFromDefinition(t *testing.T) {
	rig := newRig()
	rig.challenges = fakeChallenges{DiscoveryChallengeID: {
		Id: DiscoveryChallengeID,
		Definition: statemachine.Definition{Context: map[string]any{
			"AreaIDs": []any{"area-b", "area-a"},
		}},
	}}
	eval := &successEvaluator{}
	rig.evaluator = eval
	svc := rig.service(t)

	var remote official.RemoteProfile
	remote.Extensions.GamePersistentData.PersistentBool = map[string]bool{
		"area-a":            true,
		"area-b":            true,
		DiscoveryAreaIDs[0]: true,
	}
	require.NoError(t, svc.reconstructDiscoveryChallenge(newDiscoveryProfile(), &Snapshot{Profile: &remote}, "h3"))

	var replayed []string
	for _, v := range eval.values {
		replayed = append(replayed, v["RepositoryId"])
	}
	assert.Equal(t, []string{"area-b", "area-a"}, replayed, "the definition's list replaces the built-in areas")
}

func TestReconstructDiscovery_NothingDiscovered(t *testing.T) {
	rig := newRig()
	svc := rig.service(t)

	p := newDiscoveryProfile()
	require.NoError(t, svc.reconstructDiscoveryChallenge(p, discoverySnapshot(), "h3"))

	got := p.Extensions.ChallengeProgression[DiscoveryChallengeID]
	assert.False(t, got.Completed)
	assert.Equal(t, StartState, got.CurrentState)
	assert.JSONEq(t, `{"Count": 0}`, string(got.State))
}

func TestReconstructDiscovery_MissingDefinitionWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rig := newRig()
	rig.challenges = fakeChallenges{}
	rig.logger = zap.New(core)
	svc := rig.service(t)

	p := newDiscoveryProfile()
	require.NoError(t, svc.reconstructDiscoveryChallenge(p, discoverySnapshot(DiscoveryAreaIDs[0]), "h3"))
	assert.NotContains(t, p.Extensions.ChallengeProgression, DiscoveryChallengeID)
	assert.Equal(t, 1, logs.FilterMessage("Discovery challenge definition not found, skipping").Len())
}

func TestReconstructDiscovery_EvaluatorErrorFails(t *testing.T) {
	rig := newRig()
	rig.evaluator = &successEvaluator{err: errors.New("bad graph")}
	svc := rig.service(t)

	err := svc.reconstructDiscoveryChallenge(newDiscoveryProfile(), discoverySnapshot(DiscoveryAreaIDs[2]), "h3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad graph")
}

func TestReconstructDiscovery_RealDefinition(t *testing.T) {
	rig := newRig()
	rig.challenges = challenges.NewRegistry("", nil)
	rig.evaluator = statemachine.NewEvaluator()
	svc := rig.service(t)

	partial := newDiscoveryProfile()
	require.NoError(t, svc.reconstructDiscoveryChallenge(partial, discoverySnapshot(DiscoveryAreaIDs[0], DiscoveryAreaIDs[2]), "h3"))
	got := partial.Extensions.ChallengeProgression[DiscoveryChallengeID]
	assert.False(t, got.Completed)
	assert.Equal(t, StartState, got.CurrentState)

	var state map[string]any
	require.NoError(t, json.Unmarshal(got.State, &state))
	assert.Equal(t, 2.0, state["Count"])
	assert.Equal(t, []any{DiscoveryAreaIDs[0], DiscoveryAreaIDs[2]}, state["DiscoveredAreas"])

	full := newDiscoveryProfile()
	require.NoError(t, svc.reconstructDiscoveryChallenge(full, discoverySnapshot(DiscoveryAreaIDs...), "h3"))
	got = full.Extensions.ChallengeProgression[DiscoveryChallengeID]
	assert.True(t, got.Completed)
	assert.True(t, got.Ticked)
	assert.Equal(t, "Success", got.CurrentState)
}
