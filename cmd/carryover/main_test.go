package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitphire/flow-peacock/internal/config"
	"github.com/vitphire/flow-peacock/internal/official"
	"github.com/vitphire/flow-peacock/internal/profile"
)

const cliPlayer = "b8c7a2f4-1d2e-4c5b-9a8f-3e6d7c8b9a01"

// officialServer fakes the endpoints a carryover touches.
type officialServer struct {
	*httptest.Server
	token      string
	challenges atomic.Int32
	rejected   atomic.Int32
	contracts  atomic.Int32
	// history is served as the MyHistory hit list when set.
	history []any
}

func newOfficialServer(t *testing.T, token string) *officialServer {
	t.Helper()
	s := &officialServer{token: token}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *officialServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "bearer "+s.token {
		s.rejected.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var body any
	switch r.URL.Path {
	case official.PathProfile:
		body = map[string]any{
			"Id":       cliPlayer,
			"Gamertag": "Agent47",
			"Extensions": map[string]any{
				"progression": map[string]any{
					"Locations": map[string]any{
						"LOCATION_PARENT_PARIS": map[string]any{"Xp": 81000, "Level": 20},
					},
				},
			},
		}
	case official.PathPlayerProfileXP:
		body = map[string]any{"PlayerProfileXp": map[string]any{"Total": 5000, "ProfileLevel": 3}}
	case official.PathChallenges:
		s.challenges.Add(1)
		body = []any{}
	case official.PathHitsCategory:
		hits := []any{}
		if r.URL.Query().Get("type") == string(official.CategoryHistory) && s.history != nil {
			hits = s.history
		}
		body = map[string]any{"data": map[string]any{"Data": map[string]any{"Hits": hits, "HasMore": false}}}
	case official.PathContractIDFromPubID, official.PathContractForPlay:
		s.contracts.Add(1)
		w.WriteHeader(http.StatusNotFound)
		return
	case official.PathProgressionData:
		body = map[string]any{}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// writeConfig points every path into a temp dir and the h3 backend at baseURL.
func writeConfig(t *testing.T, baseURL string) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	c := config.DefaultConfig()
	c.UserData.Dir = filepath.Join(dir, "userdata")
	c.Sessions.Path = filepath.Join(dir, "userdata", "sessions.json")
	c.Contracts.DatabasePath = filepath.Join(dir, "userdata", "contracts.db")
	c.Logging.File = filepath.Join(dir, "carryover.log")
	c.Official.ChallengeConcurrency = 4
	c.Official.BaseURLs = map[string]string{"h3": baseURL}

	path := filepath.Join(dir, "carryover.yaml")
	require.NoError(t, c.Save(path))
	return path, c
}

// execute runs the CLI with fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	runGameVersion, dryRun = "h3", false
	loginPlayer, loginGameVersion, loginToken, loginExpiresIn = "", "h3", "", 0
	contractsGameVersion, deleteGameVersion = "", "h3"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParsePlayerID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{cliPlayer, cliPlayer, false},
		{" " + strings.ToUpper(cliPlayer) + " ", cliPlayer, false},
		{"not-a-player", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePlayerID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBaseURLResolver(t *testing.T) {
	c := config.DefaultConfig()
	c.Official.BaseURLs = map[string]string{"h3": "http://localhost:9000"}
	resolve := baseURLResolver(c)

	got, err := resolve("h3")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", got)

	builtin, err := official.BaseURL("h2")
	require.NoError(t, err)
	got, err = resolve("h2")
	require.NoError(t, err)
	assert.Equal(t, builtin, got)

	_, err = resolve("h9")
	assert.Error(t, err)
}

func TestLoginThenRun(t *testing.T) {
	srv := newOfficialServer(t, "secret-token")
	cfgPath, c := writeConfig(t, srv.URL)

	out, err := execute(t, "login", "--config", cfgPath, "--player", cliPlayer, "--token", "secret-token")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in "+cliPlayer)

	out, err = execute(t, "run", cliPlayer, "--config", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Carryover complete")
	assert.Contains(t, out, "Agent47")
	assert.Zero(t, srv.rejected.Load())
	assert.Positive(t, srv.challenges.Load())

	out, err = execute(t, "sessions", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, out, "last used never", "a run records session use")

	written, err := profile.ReadFile(c.UserProfilePath("h3", cliPlayer))
	require.NoError(t, err)
	assert.Equal(t, cliPlayer, written.Id)
	assert.Equal(t, "Agent47", written.Gamertag)
	assert.Equal(t, 5000, written.Extensions.Progression.PlayerProfileXP.Total)
	paris := written.Extensions.Progression.Locations["location_parent_paris"]
	require.NotNil(t, paris)
	assert.Equal(t, 81000, paris.Flat.Xp)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	srv := newOfficialServer(t, "secret-token")
	srv.history = []any{map[string]any{
		"Id": "hit-1",
		"UserCentricContract": map[string]any{
			"Contract": map[string]any{"Metadata": map[string]any{"Id": "contract-1", "PublicId": "105-1234567-89"}},
		},
	}}
	cfgPath, c := writeConfig(t, srv.URL)

	_, err := execute(t, "login", "--config", cfgPath, "--player", cliPlayer, "--token", "secret-token")
	require.NoError(t, err)

	out, err := execute(t, "run", cliPlayer, "--config", cfgPath, "--dry-run")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Dry run")
	assert.Contains(t, out, "Not downloaded")
	assert.Zero(t, srv.contracts.Load(), "no contract endpoint is called")

	_, err = profile.ReadFile(c.UserProfilePath("h3", cliPlayer))
	assert.Error(t, err)

	out, err = execute(t, "contracts", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No downloaded contracts")

	out, err = execute(t, "sessions", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "last used never")
}

func TestRun_WithoutSessionSuggestsLogin(t *testing.T) {
	srv := newOfficialServer(t, "secret-token")
	cfgPath, _ := writeConfig(t, srv.URL)

	_, err := execute(t, "run", cliPlayer, "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carryover login")
}

func TestRun_RejectedTokenSuggestsLogin(t *testing.T) {
	srv := newOfficialServer(t, "secret-token")
	cfgPath, _ := writeConfig(t, srv.URL)

	_, err := execute(t, "login", "--config", cfgPath, "--player", cliPlayer, "--token", "stale")
	require.NoError(t, err)

	_, err = execute(t, "run", cliPlayer, "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log in again")
	assert.Positive(t, srv.rejected.Load())
}

func TestRun_RejectsBadArguments(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:1")

	_, err := execute(t, "run", "nope", "--config", cfgPath)
	assert.Error(t, err)

	_, err = execute(t, "run", cliPlayer, "--config", cfgPath, "--game-version", "h4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid game version")
}

func TestSessionsListAndDelete(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:1")

	out, err := execute(t, "sessions", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No stored sessions")

	_, err = execute(t, "login", "--config", cfgPath, "--player", cliPlayer, "--token", "t", "--expires-in", "1h")
	require.NoError(t, err)

	out, err = execute(t, "sessions", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, cliPlayer)
	assert.Contains(t, out, "valid")
	assert.Contains(t, out, "Total: 1 sessions")

	out, err = execute(t, "sessions", "delete", cliPlayer, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted session")

	_, err = execute(t, "sessions", "delete", cliPlayer, "--config", cfgPath)
	assert.Error(t, err)
}

func TestContractsListEmpty(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:1")

	out, err := execute(t, "contracts", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No downloaded contracts")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
