// Package main implements the carryover CLI.
// It copies a player's progression from the official backend into the local
// replacement server's userdata tree.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitphire/flow-peacock/internal/config"
	"github.com/vitphire/flow-peacock/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg     *config.Config
	loggers *logging.Loggers
	logger  *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "carryover",
	Short: "Carry official-server progression over to a local profile",
	Long: `carryover fetches a player's progression from the official backend
and writes it into the local server's profile format.

Log in once per player and game version, then run the carryover:

  carryover login --player <id> --game-version h3 --token <access token>
  carryover run <id> --game-version h3`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = loaded

		loggers, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		logger = loggers.For(logging.CategoryBoot)
		logger.Debug("Configuration loaded",
			zap.String("config", configPath),
			zap.String("userdata", cfg.UserData.Dir))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if loggers != nil {
			_ = loggers.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "carryover.yaml", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	runCmd.Flags().StringVarP(&runGameVersion, "game-version", "g", "h3", "Game version (h1, h2, h3, scpc)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Fetch and merge without writing the profile, downloading contracts or saving sessions")

	loginCmd.Flags().StringVar(&loginPlayer, "player", "", "Player id (required)")
	loginCmd.Flags().StringVarP(&loginGameVersion, "game-version", "g", "h3", "Game version (h1, h2, h3, scpc)")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Official access token (or set CARRYOVER_ACCESS_TOKEN)")
	loginCmd.Flags().DurationVar(&loginExpiresIn, "expires-in", 0, "Token lifetime, 0 when unknown")
	_ = loginCmd.MarkFlagRequired("player")

	contractsCmd.Flags().StringVarP(&contractsGameVersion, "game-version", "g", "", "Only list contracts for this game version")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsDeleteCmd.Flags().StringVarP(&deleteGameVersion, "game-version", "g", "h3", "Game version (h1, h2, h3, scpc)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(contractsCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext applies --timeout and cancels on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func validateGameVersion(gv string) error {
	if !config.IsValidGameVersion(gv) {
		return fmt.Errorf("invalid game version: %s (valid: %v)", gv, config.ValidGameVersions)
	}
	return nil
}
