package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitphire/flow-peacock/internal/session"
)

var (
	loginPlayer      string
	loginGameVersion string
	loginToken       string
	loginExpiresIn   time.Duration
)

// loginCmd stores an official access token for a player
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an official access token for a player",
	Long: `Stores the access token the official backend issued to a player, so
later runs can authenticate as that player for the given game version.

The token is read from --token, then from CARRYOVER_ACCESS_TOKEN.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	playerID, err := parsePlayerID(loginPlayer)
	if err != nil {
		return err
	}
	if err := validateGameVersion(loginGameVersion); err != nil {
		return err
	}

	token := strings.TrimSpace(loginToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("CARRYOVER_ACCESS_TOKEN"))
	}
	if token == "" {
		return fmt.Errorf("no access token given (use --token or CARRYOVER_ACCESS_TOKEN)")
	}

	sessions, err := openSessions(cfg, loggers)
	if err != nil {
		return err
	}

	sess := &session.Session{
		PlayerID:    playerID,
		GameVersion: loginGameVersion,
		AccessToken: token,
	}
	if loginExpiresIn > 0 {
		sess.AccessExpiry = time.Now().Add(loginExpiresIn)
	}
	if err := sessions.Put(sess); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	logger.Info("Session stored",
		zap.String("player", playerID),
		zap.String("game_version", loginGameVersion))
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in %s for %s\n", playerID, loginGameVersion)
	return nil
}
