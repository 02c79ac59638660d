package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/callisto/pkg/cli"
)

var syncFlags struct {
	day string
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one provider sync",
	Long: `Fetch daily usage costs from the billing provider for every
configured account and merge them into the cost ledger. Re-running a
sync for the same day overwrites the existing rows rather than
duplicating them.

Examples:
  # Sync yesterday (the default)
  callisto sync

  # Backfill a specific day
  callisto sync --day 2026-08-15`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncFlags.day, "day", "", "calendar day to sync, YYYY-MM-DD (default: yesterday)")
}

func runSync(cmd *cobra.Command, args []string) error {
	day := time.Now().UTC().AddDate(0, 0, -1)
	if syncFlags.day != "" {
		parsed, err := time.Parse("2006-01-02", syncFlags.day)
		if err != nil {
			return cli.NewConfigError("day", fmt.Sprintf("invalid day %q: expected YYYY-MM-DD", syncFlags.day))
		}
		day = parsed
	}

	cfg, err := loadConfigAndLogging(cfgFile, "")
	if err != nil {
		return err
	}

	app, err := buildApp(cfg, false)
	if err != nil {
		return cli.NewCommandError("sync", err)
	}
	defer app.Close()

	result, err := app.syncer.SyncDay(context.Background(), day)
	if err != nil {
		return cli.NewCommandError("sync", err)
	}

	fmt.Printf("Day:             %s\n", day.Format("2006-01-02"))
	fmt.Printf("Accounts:        %d (%d failed)\n", result.Accounts, result.FailedAccounts)
	fmt.Printf("Records written: %d\n", result.Written)
	fmt.Printf("Rejected:        %d\n", result.Rejected)
	fmt.Printf("Unroutable:      %d\n", result.Unroutable)
	if result.FailedAccounts > 0 {
		return cli.NewCommandError("sync", fmt.Errorf("%d account(s) failed", result.FailedAccounts))
	}
	return nil
}
