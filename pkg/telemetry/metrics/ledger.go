package metrics

import (
	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks cost ledger writes.
//
// Metrics:
//   - callisto_ledger_records_written_total: Merged ledger rows by source
//   - callisto_ledger_records_rejected_total: Rows rejected by validation
type LedgerMetrics struct {
	writtenTotal  *prometheus.CounterVec
	rejectedTotal *prometheus.CounterVec
}

// NewLedgerMetrics creates and registers ledger metrics with the
// provided registry.
func NewLedgerMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *LedgerMetrics {
	lm := &LedgerMetrics{
		writtenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "ledger_records_written_total",
				Help:      "Cost records merged into the ledger by source",
			},
			[]string{"source"},
		),

		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "ledger_records_rejected_total",
				Help:      "Cost records rejected by validation, by source",
			},
			[]string{"source"},
		),
	}

	registry.MustRegister(lm.writtenTotal, lm.rejectedTotal)
	return lm
}

// RecordMerge records the outcome of a merge batch.
func (lm *LedgerMetrics) RecordMerge(source string, written, rejected int) {
	if written > 0 {
		lm.writtenTotal.WithLabelValues(source).Add(float64(written))
	}
	if rejected > 0 {
		lm.rejectedTotal.WithLabelValues(source).Add(float64(rejected))
	}
}
