package metrics

import (
	"mercator-hq/callisto/pkg/alerting"
	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AlertMetrics tracks budget alert dispatch outcomes.
//
// Metrics:
//   - callisto_alerts_dispatched_total: Delivered alerts by kind and severity
//   - callisto_alert_failures_total: Failed deliveries by kind
type AlertMetrics struct {
	dispatchedTotal *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
}

// NewAlertMetrics creates and registers alert metrics with the provided
// registry.
func NewAlertMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AlertMetrics {
	am := &AlertMetrics{
		dispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "alerts_dispatched_total",
				Help:      "Successfully delivered budget alerts by kind and severity",
			},
			[]string{"kind", "severity"},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "alert_failures_total",
				Help:      "Failed alert deliveries by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(am.dispatchedTotal, am.failuresTotal)
	return am
}

// AlertDispatched records one alert dispatch outcome. It implements
// alerting.Reporter.
func (am *AlertMetrics) AlertDispatched(kind alerting.Kind, severity alerting.Severity, succeeded bool) {
	if succeeded {
		am.dispatchedTotal.WithLabelValues(string(kind), string(severity)).Inc()
		return
	}
	am.failuresTotal.WithLabelValues(string(kind)).Inc()
}
