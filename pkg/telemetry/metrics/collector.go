package metrics

import (
	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector is the orchestrator for all Prometheus metrics in Callisto.
// It owns the registry and the per-concern metric groups.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Job metrics (sweep, sync, cleanup)
	jobMetrics *JobMetrics

	// Alert dispatch metrics
	alertMetrics *AlertMetrics

	// Ledger write metrics
	ledgerMetrics *LedgerMetrics

	// HTTP API metrics
	requestMetrics *RequestMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// registry with the standard Go and process collectors is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "callisto"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.jobMetrics = NewJobMetrics(cfg, registry)
	c.alertMetrics = NewAlertMetrics(cfg, registry)
	c.ledgerMetrics = NewLedgerMetrics(cfg, registry)
	c.requestMetrics = NewRequestMetrics(cfg, registry)

	return c
}

// Registry returns the Prometheus registry used by this collector.
// Serve it with promhttp.HandlerFor.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Jobs returns the background job metrics group.
func (c *Collector) Jobs() *JobMetrics {
	return c.jobMetrics
}

// Alerts returns the alert dispatch metrics group.
func (c *Collector) Alerts() *AlertMetrics {
	return c.alertMetrics
}

// Ledger returns the ledger write metrics group.
func (c *Collector) Ledger() *LedgerMetrics {
	return c.ledgerMetrics
}

// Requests returns the HTTP API metrics group.
func (c *Collector) Requests() *RequestMetrics {
	return c.requestMetrics
}
