package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "callisto",
	Short: "Callisto - cost aggregation and budget alerting service",
	Long: `Callisto aggregates usage costs from external billing providers and
enforces budget policies on top of them.

It provides:
  - A daily cost ledger with idempotent provider sync
  - Aggregation queries (totals, breakdowns, drivers, trends)
  - Month-end spend forecasting
  - Budget policies with threshold and over-budget alerting
  - Retention cleanup for aged ledger and alert rows`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
