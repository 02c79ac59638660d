package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/callisto/pkg/alerting"
)

// ScheduleConfig holds the cron expressions for the background jobs.
// An empty or "-" expression disables that job.
type ScheduleConfig struct {
	// Sweep is the budget sweep schedule. Default: hourly on the hour.
	Sweep string `yaml:"sweep"`

	// Sync is the provider sync schedule. Default: daily at 02:15.
	Sync string `yaml:"sync"`

	// Cleanup is the retention cleanup schedule. Default: Sundays at
	// 03:30.
	Cleanup string `yaml:"cleanup"`
}

// DefaultScheduleConfig returns the default job schedules.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Sweep:   "0 * * * *",
		Sync:    "15 2 * * *",
		Cleanup: "30 3 * * 0",
	}
}

// Sweeper runs one budget sweep. Implemented by alerting.Dispatcher.
type Sweeper interface {
	Sweep(ctx context.Context) (*alerting.SweepResult, error)
}

// Reporter receives job outcomes for instrumentation.
type Reporter interface {
	JobCompleted(job string, duration time.Duration, err error)
}

// NopReporter discards all job outcomes.
type NopReporter struct{}

// JobCompleted implements Reporter.
func (NopReporter) JobCompleted(string, time.Duration, error) {}

// Scheduler wires the sweep, sync, and cleanup jobs onto a shared cron
// runner.
type Scheduler struct {
	config   ScheduleConfig
	sweeper  Sweeper
	syncer   *Syncer
	cleaner  *Cleaner
	reporter Reporter

	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler for the given jobs. A nil reporter
// disables instrumentation.
func NewScheduler(config ScheduleConfig, sweeper Sweeper, syncer *Syncer, cleaner *Cleaner, reporter Reporter) *Scheduler {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Scheduler{
		config:   config,
		sweeper:  sweeper,
		syncer:   syncer,
		cleaner:  cleaner,
		reporter: reporter,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "scheduler"),
	}
}

// Start validates the configured cron expressions, registers the jobs,
// and starts the runner. The scheduler stops itself when ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	jobs := []struct {
		name string
		expr string
		run  func(context.Context)
	}{
		{"sweep", s.config.Sweep, s.runSweep},
		{"sync", s.config.Sync, s.runSync},
		{"cleanup", s.config.Cleanup, s.runCleanup},
	}

	for _, job := range jobs {
		if job.expr == "" || job.expr == "-" {
			s.logger.Info("job schedule not configured, skipping", "job", job.name)
			continue
		}
		if _, err := cron.ParseStandard(job.expr); err != nil {
			return fmt.Errorf("invalid cron schedule %q for %s: %w", job.expr, job.name, err)
		}
		run := job.run
		if _, err := s.cron.AddFunc(job.expr, func() { run(ctx) }); err != nil {
			return fmt.Errorf("scheduling %s: %w", job.name, err)
		}
		s.logger.Info("job scheduled", "job", job.name, "schedule", job.expr)
	}

	s.cron.Start()
	s.running = true

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the runner and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("scheduler stopped")
	}
}

// IsRunning reports whether the runner is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRuns returns the next fire time of every registered job, earliest
// first.
func (s *Scheduler) NextRuns() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		next = append(next, e.Next)
	}
	return next
}

func (s *Scheduler) runSweep(ctx context.Context) {
	start := time.Now()
	result, err := s.sweeper.Sweep(ctx)
	s.reporter.JobCompleted("sweep", time.Since(start), err)

	if err != nil {
		s.logger.Error("scheduled sweep failed", "error", err)
		return
	}
	s.logger.Info("scheduled sweep completed",
		"subjects", result.Subjects,
		"dispatched", result.Dispatched,
		"skipped", result.Skipped,
		"failures", result.Failures,
	)
}

func (s *Scheduler) runSync(ctx context.Context) {
	// Providers finalize a day's usage after midnight, so each cycle
	// pulls yesterday.
	day := time.Now().UTC().AddDate(0, 0, -1)

	start := time.Now()
	result, err := s.syncer.SyncDay(ctx, day)
	s.reporter.JobCompleted("sync", time.Since(start), err)

	if err != nil {
		s.logger.Error("scheduled sync failed", "error", err)
		return
	}
	if result.FailedAccounts > 0 {
		s.logger.Warn("scheduled sync completed with account failures",
			"failed_accounts", result.FailedAccounts,
			"written", result.Written,
		)
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	start := time.Now()
	_, err := s.cleaner.Cleanup(ctx)
	s.reporter.JobCompleted("cleanup", time.Since(start), err)

	if err != nil {
		s.logger.Error("scheduled cleanup failed", "error", err)
	}
}
