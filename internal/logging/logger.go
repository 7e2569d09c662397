// Package logging builds the zap loggers used across the carryover tool.
// Each subsystem logs through a named child logger; categories can be switched
// off individually in the config file, in which case the child is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vitphire/flow-peacock/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // CLI startup, config loading
	CategorySession    Category = "session"    // Session store and official HTTP calls
	CategoryOfficial   Category = "official"   // Remote fetchers
	CategoryCarryover  Category = "carryover"  // Fan-out, merge, downloads
	CategoryContracts  Category = "contracts"  // Contract store and downloader
	CategoryChallenges Category = "challenges" // Challenge registry and state machines
)

// AllCategories lists every known category in a stable order.
var AllCategories = []Category{
	CategoryBoot,
	CategorySession,
	CategoryOfficial,
	CategoryCarryover,
	CategoryContracts,
	CategoryChallenges,
}

// ParseLevel maps a config level string onto a zap level. Unknown values fall
// back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Loggers holds the root logger and the per-category toggles.
type Loggers struct {
	root       *zap.Logger
	categories map[string]bool
}

// New builds the root logger from the logging section of the config.
// verbose forces debug level regardless of the configured level.
func New(cfg config.LoggingConfig, verbose bool) (*Loggers, error) {
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}

	level := ParseLevel(cfg.Level)
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	} else {
		zc.OutputPaths = []string{"stderr"}
		zc.ErrorOutputPaths = []string{"stderr"}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return Wrap(logger, cfg.Categories), nil
}

// Wrap builds Loggers around an existing root logger. Tests use it with
// zaptest or observer loggers.
func Wrap(root *zap.Logger, categories map[string]bool) *Loggers {
	if root == nil {
		root = zap.NewNop()
	}
	for _, name := range unknownCategories(categories) {
		root.Warn("Unknown log category in config", zap.String("category", name))
	}
	return &Loggers{root: root, categories: categories}
}

// unknownCategories returns the toggle names that match no category, sorted.
func unknownCategories(categories map[string]bool) []string {
	var unknown []string
	for name := range categories {
		if !slices.Contains(AllCategories, Category(name)) {
			unknown = append(unknown, name)
		}
	}
	slices.Sort(unknown)
	return unknown
}

// Root returns the unnamed root logger.
func (l *Loggers) Root() *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.root
}

// IsCategoryEnabled reports whether a category logs. Categories missing from
// the toggle map are enabled.
func (l *Loggers) IsCategoryEnabled(category Category) bool {
	if l == nil {
		return false
	}
	enabled, exists := l.categories[string(category)]
	return !exists || enabled
}

// For returns the child logger for a category, or a no-op logger when the
// category was disabled in config.
func (l *Loggers) For(category Category) *zap.Logger {
	if !l.IsCategoryEnabled(category) {
		return zap.NewNop()
	}
	return l.root.Named(string(category))
}

// Sync flushes the root logger.
func (l *Loggers) Sync() error {
	if l == nil {
		return nil
	}
	return l.root.Sync()
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
