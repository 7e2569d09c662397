package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitphire/flow-peacock/internal/carryover"
	"github.com/vitphire/flow-peacock/internal/official"
	"github.com/vitphire/flow-peacock/internal/profile"
	"github.com/vitphire/flow-peacock/internal/session"
)

var (
	runGameVersion string
	dryRun         bool
)

// runCmd performs a carryover for one player
var runCmd = &cobra.Command{
	Use:   "run <player-id>",
	Short: "Carry a player's official progression over to the local profile",
	Long: `Fetches the player's profile, challenge progression, hit categories and
contract progression data from the official backend, merges them into a fresh
default profile and writes it to the userdata directory.

Any existing local profile for the player is replaced. With --dry-run the
merged profile is reported but nothing is written: no profile, no contract
downloads and no session bookkeeping.`,
	Args: cobra.ExactArgs(1),
	RunE: runCarryover,
}

func runCarryover(cmd *cobra.Command, args []string) error {
	playerID, err := parsePlayerID(args[0])
	if err != nil {
		return err
	}
	if err := validateGameVersion(runGameVersion); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	rt, err := openRuntime(cfg, loggers, dryRun)
	if err != nil {
		return err
	}
	defer rt.Close()

	if n, err := rt.challenges.Count(runGameVersion); err == nil {
		logger.Debug("Challenge definitions available", zap.Int("count", n))
	}

	report, err := rt.service.CarryOver(ctx, playerID, runGameVersion)
	if err != nil {
		return explainFailure(err)
	}
	path := ""
	if !dryRun {
		if err := rt.sessions.Save(); err != nil {
			logger.Warn("Failed to record session use", zap.Error(err))
		}
		path = cfg.UserProfilePath(runGameVersion, playerID)
		if err := profile.WriteFile(path, report.Profile); err != nil {
			return err
		}
	}

	logger.Debug("Carryover finished",
		zap.String("player", playerID),
		zap.String("profile_path", path),
		zap.Int("downloaded", report.Downloads.Downloaded))
	renderReport(cmd.OutOrStdout(), report, path)
	return nil
}

func parsePlayerID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid player id %q: %w", raw, err)
	}
	return id.String(), nil
}

// explainFailure adds a hint for the failures a user can act on.
func explainFailure(err error) error {
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionExpired):
		return fmt.Errorf("%w\nrun `carryover login` for this player first", err)
	}
	if se, ok := official.IsStatus(err); ok && (se.Status == 401 || se.Status == 403) {
		return fmt.Errorf("%w\nthe official session was rejected, log in again", err)
	}
	return err
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(22)
	valueStyle = lipgloss.NewStyle().Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func renderReport(w io.Writer, report *carryover.Report, path string) {
	row := func(label string, value any) string {
		return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value))
	}

	p := report.Profile
	rows := []string{
		titleStyle.Render("Carryover complete"),
		"",
		row("Player", p.Id),
		row("Gamertag", p.Gamertag),
		row("Profile level", p.Extensions.Progression.PlayerProfileXP.ProfileLevel),
		row("Locations", len(p.Extensions.Progression.Locations)),
		row("Missions queried", report.Missions),
		row("Challenges", report.Challenges),
		row("Escalations", len(p.Extensions.PeacockEscalations)),
	}
	for _, cat := range official.HitCategories {
		rows = append(rows, row(string(cat), report.Hits[cat]))
	}

	d := report.Downloads
	rows = append(rows,
		row("Contracts downloaded", fmt.Sprintf("%d of %d", d.Downloaded, d.Considered)),
		row("Already local", d.Known),
	)
	if d.Skipped > 0 {
		rows = append(rows, row("Not downloaded", d.Skipped))
	}
	if d.Invalid > 0 || d.Failed > 0 {
		rows = append(rows, warnStyle.Render(fmt.Sprintf("%d skipped, %d failed (see log)", d.Invalid, d.Failed)))
	}
	if !report.CPD {
		rows = append(rows, warnStyle.Render("Contract progression data unavailable"))
	}

	rows = append(rows, "")
	if path == "" {
		rows = append(rows, warnStyle.Render("Dry run, profile not written"))
	} else {
		rows = append(rows, row("Written to", path))
	}

	fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}
