package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"mercator-hq/callisto/pkg/cli"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one budget sweep",
	Long: `Evaluate every subject with an enabled, active budget policy and
dispatch qualifying alerts. Alerts suppressed by the cooldown are
skipped, exactly as they would be on the scheduled sweep.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging(cfgFile, "")
	if err != nil {
		return err
	}

	app, err := buildApp(cfg, false)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	defer app.Close()

	result, err := app.dispatcher.Sweep(context.Background())
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}

	fmt.Printf("Subjects evaluated: %d\n", result.Subjects)
	fmt.Printf("Alerts dispatched:  %d\n", result.Dispatched)
	fmt.Printf("Skipped:            %d\n", result.Skipped)
	fmt.Printf("Failures:           %d\n", result.Failures)
	if result.Failures > 0 {
		return cli.NewCommandError("sweep", fmt.Errorf("%d subject(s) failed", result.Failures))
	}
	return nil
}
