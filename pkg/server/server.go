package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercator-hq/callisto/pkg/aggregate"
	"mercator-hq/callisto/pkg/alerting"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/forecast"
	"mercator-hq/callisto/pkg/policy"
	"mercator-hq/callisto/pkg/server/middleware"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// Sweeper runs one budget sweep. Implemented by alerting.Dispatcher.
type Sweeper interface {
	Sweep(ctx context.Context) (*alerting.SweepResult, error)
}

// Deps bundles the server's dependencies.
type Deps struct {
	Aggregator *aggregate.Engine
	Forecaster *forecast.Engine
	Policies   policy.Store
	Alerts     alerting.Store
	Evaluator  *alerting.Evaluator
	Sweeper    Sweeper

	// Metrics serves the Prometheus endpoint and instruments requests.
	// Nil disables both.
	Metrics *metrics.Collector

	// HealthCheck is probed by /healthz. Nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// Server is the HTTP API server.
type Server struct {
	config      *config.ServerConfig
	metricsCfg  *config.MetricsConfig
	aggregator  *aggregate.Engine
	forecaster  *forecast.Engine
	policies    policy.Store
	alerts      alerting.Store
	evaluator   *alerting.Evaluator
	sweeper     Sweeper
	collector   *metrics.Collector
	healthCheck func(ctx context.Context) error
	now         func() time.Time

	httpServer   *http.Server
	logger       *slog.Logger
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates the API server.
func NewServer(cfg *config.ServerConfig, metricsCfg *config.MetricsConfig, deps Deps) *Server {
	return &Server{
		config:      cfg,
		metricsCfg:  metricsCfg,
		aggregator:  deps.Aggregator,
		forecaster:  deps.Forecaster,
		policies:    deps.Policies,
		alerts:      deps.Alerts,
		evaluator:   deps.Evaluator,
		sweeper:     deps.Sweeper,
		collector:   deps.Metrics,
		healthCheck: deps.HealthCheck,
		now:         time.Now,
		logger:      slog.Default().With("component", "server"),
	}
}

// Start starts the HTTP server and blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting api server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server, bounded by the configured
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("api server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler with the full middleware
// chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/subjects/{id}/costs/total", s.handleCostTotal)
	mux.HandleFunc("GET /api/v1/subjects/{id}/costs/breakdown", s.handleCostBreakdown)
	mux.HandleFunc("GET /api/v1/subjects/{id}/costs/daily", s.handleCostDaily)
	mux.HandleFunc("GET /api/v1/subjects/{id}/costs/drivers", s.handleCostDrivers)
	mux.HandleFunc("GET /api/v1/subjects/{id}/costs/monthly", s.handleCostMonthly)
	mux.HandleFunc("GET /api/v1/subjects/{id}/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/v1/subjects/{id}/policies", s.handlePolicyList)
	mux.HandleFunc("POST /api/v1/subjects/{id}/policies", s.handlePolicyCreate)
	mux.HandleFunc("PATCH /api/v1/policies/{id}", s.handlePolicyUpdate)
	mux.HandleFunc("DELETE /api/v1/policies/{id}", s.handlePolicyDelete)
	mux.HandleFunc("GET /api/v1/subjects/{id}/budget", s.handleBudgetStatus)
	mux.HandleFunc("GET /api/v1/subjects/{id}/alerts", s.handleAlertsBySubject)
	mux.HandleFunc("GET /api/v1/policies/{id}/alerts", s.handleAlertsByPolicy)
	mux.HandleFunc("POST /api/v1/sweep", s.handleSweep)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	if s.collector != nil && s.metricsCfg != nil && s.metricsCfg.Enabled {
		mux.Handle("GET "+s.metricsCfg.Path, promhttp.HandlerFor(
			s.collector.Registry(),
			promhttp.HandlerOpts{},
		))
	}

	var handler http.Handler = mux

	// The metrics middleware reads the matched route pattern off the
	// request, so it has to wrap the mux directly.
	if s.collector != nil {
		handler = middleware.Metrics(s.collector.Requests())(handler)
	}
	handler = middleware.Timeout(s.config.RequestTimeout)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)

	return handler
}
