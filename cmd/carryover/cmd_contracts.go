package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitphire/flow-peacock/internal/contracts"
)

var contractsGameVersion string

// contractsCmd lists downloaded contracts
var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "List contracts downloaded from the official backend",
	Args:  cobra.NoArgs,
	RunE:  runContractsList,
}

func runContractsList(cmd *cobra.Command, args []string) error {
	if contractsGameVersion != "" {
		if err := validateGameVersion(contractsGameVersion); err != nil {
			return err
		}
	}

	store, err := contracts.NewStore(cfg.Contracts.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open contract store: %w", err)
	}
	defer store.Close()

	list, err := store.List(context.Background(), contractsGameVersion)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No downloaded contracts.")
		return nil
	}

	fmt.Fprintln(out, "Downloaded Contracts")
	fmt.Fprintln(out, strings.Repeat("─", 72))
	for _, c := range list {
		fmt.Fprintf(out, "  %-5s %-15s %-40s %s\n",
			c.GameVersion, c.PublicID, truncate(c.Title, 40), c.DownloadedAt.Format(time.DateOnly))
	}
	fmt.Fprintln(out, strings.Repeat("─", 72))
	fmt.Fprintf(out, "Total: %d contracts\n", len(list))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
