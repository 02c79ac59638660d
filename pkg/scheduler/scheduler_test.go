package scheduler

import (
	"context"
	"strings"
	"testing"

	"mercator-hq/callisto/pkg/alerting"
	"mercator-hq/callisto/pkg/ledger/storage"
	"mercator-hq/callisto/pkg/provider"
	"mercator-hq/callisto/pkg/registry"
)

type nopSweeper struct{}

func (nopSweeper) Sweep(ctx context.Context) (*alerting.SweepResult, error) {
	return &alerting.SweepResult{}, nil
}

func newTestScheduler(config ScheduleConfig) *Scheduler {
	store := storage.NewMemoryBackend()
	alerts := alerting.NewMemoryStore(alerting.DefaultStoreConfig())
	reg := registry.NewStaticRegistry(nil, nil)
	syncer := NewSyncer(provider.NewFakeClient(), reg, store)
	cleaner := NewCleaner(store, alerts, DefaultCleanerConfig())
	return NewScheduler(config, nopSweeper{}, syncer, cleaner, nil)
}

// TestScheduler_StartStop tests the running state transitions.
func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler(DefaultScheduleConfig())

	if s.IsRunning() {
		t.Fatal("Scheduler reports running before Start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !s.IsRunning() {
		t.Error("Scheduler not running after Start")
	}

	// Starting twice is a no-op.
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Second Start() failed: %v", err)
	}

	if got := len(s.NextRuns()); got != 3 {
		t.Errorf("Expected 3 scheduled jobs, got %d", got)
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("Scheduler still running after Stop")
	}
}

// TestScheduler_InvalidSchedule tests that bad cron expressions are
// rejected at start, naming the job.
func TestScheduler_InvalidSchedule(t *testing.T) {
	config := DefaultScheduleConfig()
	config.Sync = "not a cron expression"
	s := newTestScheduler(config)

	err := s.Start(context.Background())
	if err == nil {
		s.Stop()
		t.Fatal("Expected an error for an invalid schedule")
	}
	if !strings.Contains(err.Error(), "sync") {
		t.Errorf("Error should name the offending job: %v", err)
	}
	if s.IsRunning() {
		t.Error("Scheduler should not be running after a failed Start")
	}
}

// TestScheduler_DisabledJobs tests that empty and "-" expressions skip
// the job instead of failing.
func TestScheduler_DisabledJobs(t *testing.T) {
	s := newTestScheduler(ScheduleConfig{
		Sweep:   "0 * * * *",
		Sync:    "",
		Cleanup: "-",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer s.Stop()

	if got := len(s.NextRuns()); got != 1 {
		t.Errorf("Expected only the sweep job registered, got %d", got)
	}
}

// TestScheduler_StopsOnContextCancel tests that cancelling the start
// context shuts the runner down.
func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := newTestScheduler(DefaultScheduleConfig())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	cancel()

	// Stop is idempotent, so racing with the context goroutine is fine.
	s.Stop()
	if s.IsRunning() {
		t.Error("Scheduler still running after context cancel")
	}
}
