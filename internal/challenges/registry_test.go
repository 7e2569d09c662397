package challenges

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vitphire/flow-peacock/internal/statemachine"
)

const islandChallenge = "aa1bb0a0-4db8-4ac1-a2e4-0d5a6f1ec2cb"

func TestRegistry_BuiltinLookup(t *testing.T) {
	reg := NewRegistry("", nil)

	c, ok := reg.ChallengeByID(islandChallenge, "h3")
	require.True(t, ok)
	assert.Equal(t, "LOCATION_PARENT_ROCKY", c.ParentLocationId)
	assert.Len(t, c.Definition.Context["AreaIDs"], 5)
	require.Contains(t, c.Definition.States, "Start")
	assert.Len(t, c.Definition.States["Start"]["AreaDiscovered"], 2)

	_, ok = reg.ChallengeByID(islandChallenge, "h1")
	assert.False(t, ok)
}

func TestRegistry_BuiltinDefinitionReachesSuccess(t *testing.T) {
	c, ok := NewRegistry("", nil).ChallengeByID(islandChallenge, "h3")
	require.True(t, ok)

	ev := statemachine.NewEvaluator()
	state, ctx := "Start", c.Definition.Context
	for i, area := range c.Definition.Context["AreaIDs"].([]any) {
		res, err := ev.HandleEvent(c.Definition, ctx, map[string]any{"RepositoryId": area}, statemachine.Options{
			EventName:    "AreaDiscovered",
			CurrentState: state,
		})
		require.NoError(t, err)
		state, ctx = res.State, res.Context
		if i < 4 {
			assert.Equal(t, "Start", state)
		}
	}
	assert.Equal(t, "Success", state)
	assert.Equal(t, 5.0, ctx["Count"])
}

func TestRegistry_DirectoryOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "h3"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "h3", "extra.json"), []byte(`{
		"Groups": [{"CategoryId": "custom", "Challenges": [
			{"Id": "custom-1", "Name": "Custom", "Definition": {"Context": {}, "States": {}}},
			{"Id": "`+islandChallenge+`", "Name": "Replaced", "Definition": {"Context": {}, "States": {}}}
		]}]
	}`), 0644))

	reg := NewRegistry(dir, nil)

	c, ok := reg.ChallengeByID("custom-1", "h3")
	require.True(t, ok)
	assert.Equal(t, "Custom", c.Name)

	c, ok = reg.ChallengeByID(islandChallenge, "h3")
	require.True(t, ok)
	assert.Equal(t, "Replaced", c.Name)

	n, err := reg.Count("h3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRegistry_BadFileIsLoggedAndNotFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "h3"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "h3", "broken.json"), []byte(`{"Groups": [{"Challenges": [{"Name": "no id"}]}]}`), 0644))

	core, logs := observer.New(zap.WarnLevel)
	reg := NewRegistry(dir, zap.New(core))

	_, ok := reg.ChallengeByID(islandChallenge, "h3")
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("Challenge registry unavailable").Len())
}

func TestRegistry_UnknownVersion(t *testing.T) {
	_, err := NewRegistry("", nil).Count("h9")
	assert.Error(t, err)
}
