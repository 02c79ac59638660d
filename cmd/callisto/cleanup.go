package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"mercator-hq/callisto/pkg/cli"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge expired ledger and alert rows",
	Long: `Delete cost ledger rows and alert history older than the configured
retention windows. Runs the same purge as the scheduled cleanup job.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging(cfgFile, "")
	if err != nil {
		return err
	}

	app, err := buildApp(cfg, false)
	if err != nil {
		return cli.NewCommandError("cleanup", err)
	}
	defer app.Close()

	result, err := app.cleaner.Cleanup(context.Background())
	if err != nil {
		return cli.NewCommandError("cleanup", err)
	}

	fmt.Printf("Cost rows purged:  %d\n", result.CostRows)
	fmt.Printf("Alert rows purged: %d\n", result.AlertRows)
	return nil
}
