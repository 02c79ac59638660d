package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/scheduler"
	"mercator-hq/callisto/pkg/server"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	demo          bool
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Callisto service",
	Long: `Start the Callisto service with the specified configuration.

The service exposes the cost and budget API on the configured address and
runs the scheduled background jobs: provider sync, budget sweeps, and
retention cleanup.

Examples:
  # Start with default config
  callisto serve

  # Start with custom config
  callisto serve --config /etc/callisto/config.yaml

  # Override listen address
  callisto serve --listen 0.0.0.0:8080

  # Run without external dependencies (in-memory storage, fake provider)
  callisto serve --demo

  # Validate config without starting the service
  callisto serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.demo, "demo", false, "in-memory storage, fake provider, log notifier")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the service")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging(cfgFile, serveFlags.logLevel)
	if err != nil {
		return err
	}

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}

	if serveFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	app, err := buildApp(cfg, serveFlags.demo)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background jobs
	sched := scheduler.NewScheduler(scheduler.ScheduleConfig{
		Sweep:   cfg.Schedule.Sweep,
		Sync:    cfg.Schedule.Sync,
		Cleanup: cfg.Schedule.Cleanup,
	}, app.dispatcher, app.syncer, app.cleaner, jobReporter(app))
	if err := sched.Start(ctx); err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("starting scheduler: %w", err))
	}
	defer sched.Stop()

	// Config hot reload: registry and alert recipients apply without a
	// restart; everything else needs one.
	watcher := config.NewWatcher(cfgFile)
	go func() {
		err := watcher.Watch(ctx, func(newCfg *config.Config) {
			app.registry.Replace(registryAccounts(newCfg), registryAssignments(newCfg))
			app.dispatcher.SetRecipients(dispatchRecipients(newCfg))
			slog.Info("configuration reloaded",
				"accounts", len(newCfg.Registry.Accounts),
				"assignments", len(newCfg.Registry.Assignments),
			)
		})
		if err != nil {
			slog.Warn("config watcher stopped", "error", err)
		}
	}()
	defer watcher.Stop()

	var healthCheck func(ctx context.Context) error
	if app.db != nil {
		healthCheck = app.db.PingContext
	}

	srv := server.NewServer(&cfg.Server, &cfg.Telemetry.Metrics, server.Deps{
		Aggregator:  app.aggregator,
		Forecaster:  app.forecaster,
		Policies:    app.policies,
		Alerts:      app.alerts,
		Evaluator:   app.evaluator,
		Sweeper:     app.dispatcher,
		Metrics:     app.collector,
		HealthCheck: healthCheck,
	})

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "address", cfg.Server.ListenAddress)
		if err := srv.Start(ctx); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	printServeBanner(cfg)

	sigChan := cli.WaitForShutdown()
	select {
	case err := <-errChan:
		return cli.NewCommandError("serve", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("serve", err)
		}

		fmt.Println("✓ Service stopped")
		return nil
	}
}

// jobReporter returns the scheduler's metrics reporter, or nil when
// metrics are disabled.
func jobReporter(app *app) scheduler.Reporter {
	if app.collector == nil {
		return nil
	}
	return app.collector.Jobs()
}

func printServeBanner(cfg *config.Config) {
	// Give the listener a moment before printing endpoints.
	time.Sleep(100 * time.Millisecond)

	fmt.Printf("Callisto v%s\n", Version)
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")
}
