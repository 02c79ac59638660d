package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 30 * time.Second

	// Storage defaults
	DefaultStorageBackend     = "sqlite"
	DefaultSQLitePath         = "data/callisto.db"
	DefaultSQLiteMaxOpenConns = 10
	DefaultSQLiteMaxIdleConns = 5
	DefaultSQLiteWALMode      = true
	DefaultSQLiteBusyTimeout  = 5 * time.Second

	// Provider defaults
	DefaultProviderRequestTimeout  = 30 * time.Second
	DefaultProviderMaxRetries      = 4
	DefaultProviderInitialBackoff  = 500 * time.Millisecond
	DefaultProviderBreakerFailures = 5
	DefaultProviderBreakerCooldown = 60 * time.Second

	// Alerting defaults
	DefaultAlertNotifier = "log"
	DefaultAlertCooldown = 24 * time.Hour
	DefaultAlertWorkers  = 4
	DefaultSMTPPort      = 587
	DefaultSMTPTimeout   = 10 * time.Second

	// Retention defaults
	DefaultCostRetentionMonths  = 24
	DefaultAlertRetentionMonths = 12

	// Schedule defaults
	DefaultSweepSchedule   = "0 * * * *"
	DefaultSyncSchedule    = "15 2 * * *"
	DefaultCleanupSchedule = "30 3 * * 0"

	// Telemetry defaults
	DefaultLoggingLevel    = "info"
	DefaultLoggingFormat   = "json"
	DefaultMetricsEnabled  = true
	DefaultMetricsPath     = "/metrics"
	DefaultMetricsNamespace = "callisto"
)

// ApplyDefaults applies default values to a Config struct. It sets
// defaults for any fields that have zero values, so it is idempotent
// and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.MaxOpenConns == 0 {
		cfg.Storage.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Storage.SQLite.MaxIdleConns == 0 {
		cfg.Storage.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if !cfg.Storage.SQLite.WALMode {
		cfg.Storage.SQLite.WALMode = DefaultSQLiteWALMode
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Provider defaults
	if cfg.Provider.RequestTimeout == 0 {
		cfg.Provider.RequestTimeout = DefaultProviderRequestTimeout
	}
	if cfg.Provider.MaxRetries == 0 {
		cfg.Provider.MaxRetries = DefaultProviderMaxRetries
	}
	if cfg.Provider.InitialBackoff == 0 {
		cfg.Provider.InitialBackoff = DefaultProviderInitialBackoff
	}
	if cfg.Provider.BreakerFailures == 0 {
		cfg.Provider.BreakerFailures = DefaultProviderBreakerFailures
	}
	if cfg.Provider.BreakerCooldown == 0 {
		cfg.Provider.BreakerCooldown = DefaultProviderBreakerCooldown
	}

	// Alerting defaults
	if cfg.Alerting.Notifier == "" {
		cfg.Alerting.Notifier = DefaultAlertNotifier
	}
	if cfg.Alerting.Cooldown == 0 {
		cfg.Alerting.Cooldown = DefaultAlertCooldown
	}
	if cfg.Alerting.Workers == 0 {
		cfg.Alerting.Workers = DefaultAlertWorkers
	}
	if cfg.Alerting.SMTP.Port == 0 {
		cfg.Alerting.SMTP.Port = DefaultSMTPPort
	}
	if cfg.Alerting.SMTP.Timeout == 0 {
		cfg.Alerting.SMTP.Timeout = DefaultSMTPTimeout
	}

	// Retention defaults
	if cfg.Retention.CostMonths == 0 {
		cfg.Retention.CostMonths = DefaultCostRetentionMonths
	}
	if cfg.Retention.AlertMonths == 0 {
		cfg.Retention.AlertMonths = DefaultAlertRetentionMonths
	}

	// Schedule defaults. An expression of "-" disables the job; empty
	// means "use the default".
	if cfg.Schedule.Sweep == "" {
		cfg.Schedule.Sweep = DefaultSweepSchedule
	}
	if cfg.Schedule.Sync == "" {
		cfg.Schedule.Sync = DefaultSyncSchedule
	}
	if cfg.Schedule.Cleanup == "" {
		cfg.Schedule.Cleanup = DefaultCleanupSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
