package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Paths(t *testing.T) {
	clearEnv(t)
	t.Setenv("CARRYOVER_USERDATA", "/srv/peacock/userdata")
	t.Setenv("CARRYOVER_CONTRACTS_DB", "/srv/peacock/contracts.db")
	t.Setenv("CARRYOVER_SESSIONS", "/srv/peacock/sessions.json")
	t.Setenv("CARRYOVER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/srv/peacock/userdata", cfg.UserData.Dir)
	assert.Equal(t, "/srv/peacock/contracts.db", cfg.Contracts.DatabasePath)
	assert.Equal(t, "/srv/peacock/sessions.json", cfg.Sessions.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrides_FeatureFlags(t *testing.T) {
	t.Run("flags can be switched off", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CARRYOVER_DOWNLOAD_HISTORY", "false")
		t.Setenv("CARRYOVER_DOWNLOAD_MY_CONTRACTS", "0")
		t.Setenv("CARRYOVER_DOWNLOAD_FAVORITES", "false")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.False(t, cfg.Carryover.DownloadContractHistory)
		assert.False(t, cfg.Carryover.DownloadMyContracts)
		assert.False(t, cfg.Carryover.DownloadFavorites)
	})

	t.Run("limit parses as integer", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CARRYOVER_DOWNLOAD_HISTORY_LIMIT", "0")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 0, cfg.Carryover.DownloadContractHistoryLimit)
	})

	t.Run("garbage values are ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CARRYOVER_DOWNLOAD_HISTORY", "sometimes")
		t.Setenv("CARRYOVER_DOWNLOAD_HISTORY_LIMIT", "lots")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Carryover.DownloadContractHistory)
		assert.Equal(t, 100, cfg.Carryover.DownloadContractHistoryLimit)
	})
}
