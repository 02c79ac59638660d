package metrics

import (
	"time"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks the HTTP API.
//
// Metrics:
//   - callisto_http_requests_total: Requests by route, method, and status code
//   - callisto_http_request_duration_seconds: Request duration by route
type RequestMetrics struct {
	requestsTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers HTTP metrics with the
// provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method, and status code",
			},
			[]string{"route", "method", "code"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by route",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.duration)
	return rm
}

// RecordRequest records one completed HTTP request.
func (rm *RequestMetrics) RecordRequest(route, method, code string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(route, method, code).Inc()
	rm.duration.WithLabelValues(route).Observe(duration.Seconds())
}
