package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified
// path. It applies default values, validates the configuration, and
// returns any errors.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow
// the naming convention CALLISTO_SECTION_FIELD (e.g.,
// CALLISTO_SERVER_LISTEN_ADDRESS) and always take precedence over
// file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("CALLISTO_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("CALLISTO_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("CALLISTO_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Storage overrides
	if val := os.Getenv("CALLISTO_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("CALLISTO_STORAGE_SQLITE_PATH"); val != "" {
		cfg.Storage.SQLite.Path = val
	}

	// Provider overrides
	if val := os.Getenv("CALLISTO_PROVIDER_BASE_URL"); val != "" {
		cfg.Provider.BaseURL = val
	}
	if val := os.Getenv("CALLISTO_PROVIDER_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Provider.RequestTimeout = d
		}
	}
	if val := os.Getenv("CALLISTO_PROVIDER_MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Provider.MaxRetries = i
		}
	}

	// Alerting overrides
	if val := os.Getenv("CALLISTO_ALERTING_NOTIFIER"); val != "" {
		cfg.Alerting.Notifier = val
	}
	if val := os.Getenv("CALLISTO_ALERTING_DEFAULT_RECIPIENT"); val != "" {
		cfg.Alerting.DefaultRecipient = val
	}
	if val := os.Getenv("CALLISTO_ALERTING_SMTP_HOST"); val != "" {
		cfg.Alerting.SMTP.Host = val
	}
	if val := os.Getenv("CALLISTO_ALERTING_SMTP_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Alerting.SMTP.Port = i
		}
	}
	if val := os.Getenv("CALLISTO_ALERTING_SMTP_USERNAME"); val != "" {
		cfg.Alerting.SMTP.Username = val
	}
	if val := os.Getenv("CALLISTO_ALERTING_SMTP_PASSWORD"); val != "" {
		cfg.Alerting.SMTP.Password = val
	}

	// Retention overrides
	if val := os.Getenv("CALLISTO_RETENTION_COST_MONTHS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.CostMonths = i
		}
	}
	if val := os.Getenv("CALLISTO_RETENTION_ALERT_MONTHS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.AlertMonths = i
		}
	}

	// Telemetry overrides
	if val := os.Getenv("CALLISTO_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
