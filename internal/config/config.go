package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all carryover configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Local replacement-server save directory
	UserData UserDataConfig `yaml:"userdata"`

	// Official backend access
	Official OfficialConfig `yaml:"official"`

	// Feature flags for secondary downloads
	Carryover CarryoverConfig `yaml:"carryover"`

	// Stored official sessions
	Sessions SessionsConfig `yaml:"sessions"`

	// Downloaded contracts
	Contracts ContractsConfig `yaml:"contracts"`

	// Extra challenge definitions
	Challenges ChallengesConfig `yaml:"challenges"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// UserDataConfig locates the replacement server's userdata tree.
type UserDataConfig struct {
	Dir string `yaml:"dir"`
}

// OfficialConfig configures access to the official backend.
type OfficialConfig struct {
	// Per game version base URL overrides (h1, h2, h3, scpc)
	BaseURLs map[string]string `yaml:"base_urls"`

	Timeout          string `yaml:"timeout"`
	MaxResponseBytes int64  `yaml:"max_response_bytes"`

	// Cap on concurrent challenge requests (0 = one request per mission at once)
	ChallengeConcurrency int `yaml:"challenge_concurrency"`
}

// CarryoverConfig holds the download toggles.
type CarryoverConfig struct {
	DownloadContractHistory      bool `yaml:"download_contract_history"`
	DownloadContractHistoryLimit int  `yaml:"download_contract_history_limit"` // 0 = no limit
	DownloadMyContracts          bool `yaml:"download_my_contracts"`
	DownloadFavorites            bool `yaml:"download_favorites"`
}

// SessionsConfig locates the session token file.
type SessionsConfig struct {
	Path string `yaml:"path"`
}

// ContractsConfig locates the contract database.
type ContractsConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ChallengesConfig points at additional challenge definition files.
type ChallengesConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "carryover",
		Version: "1.0.0",

		UserData: UserDataConfig{
			Dir: "userdata",
		},

		Official: OfficialConfig{
			Timeout:              "30s",
			MaxResponseBytes:     32 << 20,
			ChallengeConcurrency: 0,
		},

		Carryover: CarryoverConfig{
			DownloadContractHistory:      true,
			DownloadContractHistoryLimit: 100,
			DownloadMyContracts:          true,
			DownloadFavorites:            true,
		},

		Sessions: SessionsConfig{
			Path: "userdata/sessions.json",
		},

		Contracts: ContractsConfig{
			DatabasePath: "userdata/contracts.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults still honour the environment
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("CARRYOVER_USERDATA"); dir != "" {
		c.UserData.Dir = dir
	}
	if path := os.Getenv("CARRYOVER_CONTRACTS_DB"); path != "" {
		c.Contracts.DatabasePath = path
	}
	if path := os.Getenv("CARRYOVER_SESSIONS"); path != "" {
		c.Sessions.Path = path
	}
	if level := os.Getenv("CARRYOVER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	// Feature flags
	if v, ok := envBool("CARRYOVER_DOWNLOAD_HISTORY"); ok {
		c.Carryover.DownloadContractHistory = v
	}
	if v, ok := envInt("CARRYOVER_DOWNLOAD_HISTORY_LIMIT"); ok {
		c.Carryover.DownloadContractHistoryLimit = v
	}
	if v, ok := envBool("CARRYOVER_DOWNLOAD_MY_CONTRACTS"); ok {
		c.Carryover.DownloadMyContracts = v
	}
	if v, ok := envBool("CARRYOVER_DOWNLOAD_FAVORITES"); ok {
		c.Carryover.DownloadFavorites = v
	}
}

func envBool(key string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// GetOfficialTimeout returns the official HTTP timeout as a duration.
func (c *Config) GetOfficialTimeout() time.Duration {
	d, err := time.ParseDuration(c.Official.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// BaseURLOverride returns the configured base URL for a game version, if any.
func (c *Config) BaseURLOverride(gameVersion string) (string, bool) {
	if c.Official.BaseURLs == nil {
		return "", false
	}
	url, ok := c.Official.BaseURLs[gameVersion]
	return url, ok && url != ""
}

// ValidGameVersions lists every game version the carryover understands.
var ValidGameVersions = []string{"h1", "h2", "h3", "scpc"}

// IsValidGameVersion reports whether gv is a known game version.
func IsValidGameVersion(gv string) bool {
	for _, v := range ValidGameVersions {
		if v == gv {
			return true
		}
	}
	return false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.UserData.Dir == "" {
		return fmt.Errorf("userdata directory not configured")
	}
	if c.Sessions.Path == "" {
		return fmt.Errorf("session store path not configured")
	}
	if c.Contracts.DatabasePath == "" {
		return fmt.Errorf("contract database path not configured")
	}
	if c.Carryover.DownloadContractHistoryLimit < 0 {
		return fmt.Errorf("download_contract_history_limit must not be negative (got %d)", c.Carryover.DownloadContractHistoryLimit)
	}
	if c.Official.ChallengeConcurrency < 0 {
		return fmt.Errorf("challenge_concurrency must not be negative (got %d)", c.Official.ChallengeConcurrency)
	}
	for gv := range c.Official.BaseURLs {
		if !IsValidGameVersion(gv) {
			return fmt.Errorf("invalid game version in official.base_urls: %s (valid: %v)", gv, ValidGameVersions)
		}
	}
	return nil
}

// UserProfilePath returns where the replacement server keeps a player's
// profile for a game version. h3 lives at the userdata root.
func (c *Config) UserProfilePath(gameVersion, playerID string) string {
	if gameVersion == "h3" {
		return filepath.Join(c.UserData.Dir, "users", playerID+".json")
	}
	return filepath.Join(c.UserData.Dir, gameVersion, "users", playerID+".json")
}
