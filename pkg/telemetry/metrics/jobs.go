package metrics

import (
	"time"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks the background jobs (sweep, sync, cleanup).
//
// Metrics:
//   - callisto_job_runs_total: Completed runs by job and status
//   - callisto_job_duration_seconds: Run duration distribution by job
type JobMetrics struct {
	runsTotal *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewJobMetrics creates and registers job metrics with the provided
// registry.
func NewJobMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *JobMetrics {
	jm := &JobMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "job_runs_total",
				Help:      "Completed background job runs by job name and status",
			},
			[]string{"job", "status"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "job_duration_seconds",
				Help:      "Background job run duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"job"},
		),
	}

	registry.MustRegister(jm.runsTotal, jm.duration)
	return jm
}

// JobCompleted records one finished job run. It implements the
// scheduler's Reporter interface.
func (jm *JobMetrics) JobCompleted(job string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	jm.runsTotal.WithLabelValues(job, status).Inc()
	jm.duration.WithLabelValues(job).Observe(duration.Seconds())
}
