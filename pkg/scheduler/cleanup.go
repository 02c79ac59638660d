package scheduler

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/callisto/pkg/alerting"
	"mercator-hq/callisto/pkg/ledger/storage"
)

// CleanerConfig controls how far back cost and alert history is kept.
type CleanerConfig struct {
	// CostRetentionMonths is how many months of ledger rows to keep.
	// Default: 24.
	CostRetentionMonths int `yaml:"cost_retention_months"`

	// AlertRetentionMonths is how many months of alert history to keep.
	// Default: 12.
	AlertRetentionMonths int `yaml:"alert_retention_months"`
}

// DefaultCleanerConfig returns the default retention windows.
func DefaultCleanerConfig() CleanerConfig {
	return CleanerConfig{
		CostRetentionMonths:  24,
		AlertRetentionMonths: 12,
	}
}

func (c CleanerConfig) withDefaults() CleanerConfig {
	def := DefaultCleanerConfig()
	if c.CostRetentionMonths <= 0 {
		c.CostRetentionMonths = def.CostRetentionMonths
	}
	if c.AlertRetentionMonths <= 0 {
		c.AlertRetentionMonths = def.AlertRetentionMonths
	}
	return c
}

// CleanupResult reports how many rows one cleanup cycle removed.
type CleanupResult struct {
	CostRows  int64
	AlertRows int64
}

// Cleaner purges ledger rows and alert events older than the configured
// retention windows. Cutoffs are exclusive: a row dated exactly at the
// cutoff survives, anything strictly older goes.
type Cleaner struct {
	store  storage.Backend
	alerts alerting.Store
	config CleanerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewCleaner creates a cleaner over the given ledger backend and alert
// store.
func NewCleaner(store storage.Backend, alerts alerting.Store, config CleanerConfig) *Cleaner {
	return &Cleaner{
		store:  store,
		alerts: alerts,
		config: config.withDefaults(),
		logger: slog.Default().With("component", "scheduler.cleanup"),
		now:    time.Now,
	}
}

// WithClock overrides the cleaner's time source. Intended for tests.
func (c *Cleaner) WithClock(now func() time.Time) *Cleaner {
	c.now = now
	return c
}

// Cleanup runs one purge cycle and returns the per-store row counts.
// A failure purging costs does not skip the alert purge.
func (c *Cleaner) Cleanup(ctx context.Context) (CleanupResult, error) {
	now := c.now().UTC()
	costCutoff := now.AddDate(0, -c.config.CostRetentionMonths, 0)
	alertCutoff := now.AddDate(0, -c.config.AlertRetentionMonths, 0)

	var result CleanupResult
	var firstErr error

	costRows, err := c.store.PurgeOlderThan(ctx, costCutoff)
	if err != nil {
		firstErr = err
		c.logger.Error("cost purge failed", "cutoff", costCutoff.Format("2006-01-02"), "error", err)
	} else {
		result.CostRows = costRows
	}

	alertRows, err := c.alerts.PurgeOlderThan(ctx, alertCutoff)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
		c.logger.Error("alert purge failed", "cutoff", alertCutoff.Format("2006-01-02"), "error", err)
	} else {
		result.AlertRows = alertRows
	}

	c.logger.Info("cleanup cycle completed",
		"cost_rows", result.CostRows,
		"alert_rows", result.AlertRows,
		"cost_cutoff", costCutoff.Format("2006-01-02"),
		"alert_cutoff", alertCutoff.Format("2006-01-02"),
	)
	return result, firstErr
}
