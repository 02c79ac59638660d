package config

import "time"

// Config is the root configuration structure for Callisto. It contains
// all sections: the API server, cost storage, the billing provider
// client, the account registry, alerting, retention, job schedules, and
// telemetry.
type Config struct {
	// Server contains HTTP API server configuration.
	Server ServerConfig `yaml:"server"`

	// Storage contains cost ledger and state storage configuration.
	Storage StorageConfig `yaml:"storage"`

	// Provider contains billing provider client configuration.
	Provider ProviderConfig `yaml:"provider"`

	// Registry contains billing accounts and resource assignments.
	Registry RegistryConfig `yaml:"registry"`

	// Alerting contains budget alert dispatch configuration.
	Alerting AlertingConfig `yaml:"alerting"`

	// Retention contains data retention windows.
	Retention RetentionConfig `yaml:"retention"`

	// Schedule contains cron expressions for the background jobs.
	Schedule ScheduleConfig `yaml:"schedule"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire
	// request, including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request when
	// keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before forcing it.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout is the per-request handler deadline.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig contains configuration for cost and state storage.
type StorageConfig struct {
	// Backend specifies the storage backend.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite-specific configuration. The ledger,
// policy, and alert stores share one database file.
type SQLiteConfig struct {
	// Path is the file path for the SQLite database.
	// Default: "data/callisto.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle database connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// ProviderConfig contains configuration for the billing provider client.
type ProviderConfig struct {
	// BaseURL is the base URL for the provider's cost export API.
	// Example: "https://billing.example.com"
	BaseURL string `yaml:"base_url"`

	// RequestTimeout is the per-request deadline.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxRetries is the maximum number of attempts for transient
	// failures.
	// Default: 4
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff is the first retry delay; subsequent delays grow
	// exponentially.
	// Default: 500ms
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// BreakerFailures is the consecutive failure count that opens the
	// circuit breaker.
	// Default: 5
	BreakerFailures int `yaml:"breaker_failures"`

	// BreakerCooldown is how long the breaker stays open before
	// probing again.
	// Default: 60s
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// RegistryConfig contains billing accounts and resource assignments.
type RegistryConfig struct {
	// Accounts lists the external billing accounts to sync from.
	Accounts []AccountConfig `yaml:"accounts"`

	// Assignments map provider resource keys to owning subjects.
	Assignments []AssignmentConfig `yaml:"assignments"`
}

// AccountConfig describes one external billing account.
type AccountConfig struct {
	// ID uniquely identifies the account.
	ID string `yaml:"id"`

	// Name is a human-readable label used in logs.
	Name string `yaml:"name"`

	// CredentialRef is an opaque credential reference passed to the
	// provider client. Typically loaded from an environment variable.
	CredentialRef string `yaml:"credential_ref"`

	// DefaultSubjectID receives rows with no explicit assignment.
	DefaultSubjectID string `yaml:"default_subject_id"`
}

// AssignmentConfig maps a provider resource key to a subject.
type AssignmentConfig struct {
	AccountID   string `yaml:"account_id"`
	ResourceKey string `yaml:"resource_key"`
	SubjectID   string `yaml:"subject_id"`
}

// AlertingConfig contains budget alert dispatch configuration.
type AlertingConfig struct {
	// Notifier selects the delivery channel.
	// Options: "smtp", "log"
	// Default: "log"
	Notifier string `yaml:"notifier"`

	// Cooldown suppresses repeat alerts of the same kind for a subject
	// and policy within this window.
	// Default: 24h
	Cooldown time.Duration `yaml:"cooldown"`

	// Workers is the number of concurrent subjects processed per sweep.
	// Default: 4
	Workers int `yaml:"workers"`

	// DefaultRecipient receives alerts for subjects without an explicit
	// recipient mapping. Empty means such alerts fail delivery.
	DefaultRecipient string `yaml:"default_recipient"`

	// Recipients maps subject IDs to notification addresses.
	Recipients map[string]string `yaml:"recipients"`

	// SMTP contains SMTP delivery configuration, used when Notifier is
	// "smtp".
	SMTP SMTPConfig `yaml:"smtp"`
}

// SMTPConfig contains SMTP delivery configuration.
type SMTPConfig struct {
	// Host is the SMTP server hostname.
	Host string `yaml:"host"`

	// Port is the SMTP server port.
	// Default: 587
	Port int `yaml:"port"`

	// From is the sender address on outgoing mail.
	From string `yaml:"from"`

	// Username and Password authenticate against the server. Empty
	// disables authentication.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Timeout bounds one delivery attempt.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// RetentionConfig contains data retention windows.
type RetentionConfig struct {
	// CostMonths is how many months of cost ledger rows to keep.
	// Default: 24
	CostMonths int `yaml:"cost_months"`

	// AlertMonths is how many months of alert history to keep.
	// Default: 12
	AlertMonths int `yaml:"alert_months"`
}

// ScheduleConfig contains cron expressions for the background jobs.
// An empty expression disables that job.
type ScheduleConfig struct {
	// Sweep is the budget sweep schedule.
	// Default: "0 * * * *" (hourly)
	Sweep string `yaml:"sweep"`

	// Sync is the provider sync schedule.
	// Default: "15 2 * * *" (daily at 02:15)
	Sync string `yaml:"sync"`

	// Cleanup is the retention cleanup schedule.
	// Default: "30 3 * * 0" (Sundays at 03:30)
	Cleanup string `yaml:"cleanup"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the Prometheus endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "callisto"
	Namespace string `yaml:"namespace"`
}
