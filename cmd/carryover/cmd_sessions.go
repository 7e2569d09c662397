package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var deleteGameVersion string

// sessionsCmd manages stored official sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored official sessions",
	Long: `List and delete stored official sessions.

Subcommands:
  list     - List all stored sessions
  delete   - Delete the session of one player`,
	RunE: runSessionsList,
}

// sessionsListCmd lists stored sessions
var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored sessions",
	RunE:  runSessionsList,
}

// sessionsDeleteCmd removes one stored session
var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <player-id>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	sessions, err := openSessions(cfg, loggers)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	list := sessions.List()
	if len(list) == 0 {
		fmt.Fprintln(out, "No stored sessions.")
		return nil
	}

	now := time.Now()
	fmt.Fprintln(out, "Stored Sessions")
	fmt.Fprintln(out, strings.Repeat("─", 72))
	for _, s := range list {
		status := "valid"
		switch {
		case s.IsExpired(now):
			status = "expired"
		case s.AccessExpiry.IsZero():
			status = "no expiry"
		}
		lastUsed := "never"
		if !s.LastUsed.IsZero() {
			lastUsed = s.LastUsed.Format(time.RFC3339)
		}
		fmt.Fprintf(out, "  %-5s %s  %-9s  last used %s\n", s.GameVersion, s.PlayerID, status, lastUsed)
	}
	fmt.Fprintln(out, strings.Repeat("─", 72))
	fmt.Fprintf(out, "Total: %d sessions\n", len(list))
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	playerID, err := parsePlayerID(args[0])
	if err != nil {
		return err
	}
	if err := validateGameVersion(deleteGameVersion); err != nil {
		return err
	}

	sessions, err := openSessions(cfg, loggers)
	if err != nil {
		return err
	}
	if err := sessions.Delete(playerID, deleteGameVersion); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s (%s)\n", playerID, deleteGameVersion)
	return nil
}
