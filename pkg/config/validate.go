package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g.,
	// "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. All field errors are collected and returned together.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a
// ValidationError if any validation rules fail.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateProvider(&cfg.Provider)...)
	errs = append(errs, validateRegistry(&cfg.Registry)...)
	errs = append(errs, validateAlerting(&cfg.Alerting)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateSchedule(&cfg.Schedule)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite", "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("unknown backend %q (options: sqlite, memory)", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "storage.sqlite.path",
			Message: "database path is required for the sqlite backend",
		})
	}
	return errs
}

func validateProvider(cfg *ProviderConfig) []FieldError {
	var errs []FieldError

	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "provider.base_url",
				Message: fmt.Sprintf("invalid URL %q", cfg.BaseURL),
			})
		}
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{
			Field:   "provider.max_retries",
			Message: "max retries must be non-negative",
		})
	}
	return errs
}

func validateRegistry(cfg *RegistryConfig) []FieldError {
	var errs []FieldError

	seen := make(map[string]bool, len(cfg.Accounts))
	for i, acct := range cfg.Accounts {
		if acct.ID == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("registry.accounts[%d].id", i),
				Message: "account id is required",
			})
			continue
		}
		if seen[acct.ID] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("registry.accounts[%d].id", i),
				Message: fmt.Sprintf("duplicate account id %q", acct.ID),
			})
		}
		seen[acct.ID] = true
	}

	for i, a := range cfg.Assignments {
		if a.AccountID == "" || a.ResourceKey == "" || a.SubjectID == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("registry.assignments[%d]", i),
				Message: "account_id, resource_key, and subject_id are all required",
			})
			continue
		}
		if !seen[a.AccountID] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("registry.assignments[%d].account_id", i),
				Message: fmt.Sprintf("unknown account %q", a.AccountID),
			})
		}
	}
	return errs
}

func validateAlerting(cfg *AlertingConfig) []FieldError {
	var errs []FieldError

	switch cfg.Notifier {
	case "smtp", "log":
	default:
		errs = append(errs, FieldError{
			Field:   "alerting.notifier",
			Message: fmt.Sprintf("unknown notifier %q (options: smtp, log)", cfg.Notifier),
		})
	}
	if cfg.Notifier == "smtp" {
		if cfg.SMTP.Host == "" {
			errs = append(errs, FieldError{
				Field:   "alerting.smtp.host",
				Message: "host is required for the smtp notifier",
			})
		}
		if cfg.SMTP.From == "" {
			errs = append(errs, FieldError{
				Field:   "alerting.smtp.from",
				Message: "sender address is required for the smtp notifier",
			})
		}
	}
	if cfg.Cooldown < 0 {
		errs = append(errs, FieldError{
			Field:   "alerting.cooldown",
			Message: "cooldown must be non-negative",
		})
	}
	if cfg.Workers < 0 {
		errs = append(errs, FieldError{
			Field:   "alerting.workers",
			Message: "workers must be non-negative",
		})
	}
	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.CostMonths < 1 {
		errs = append(errs, FieldError{
			Field:   "retention.cost_months",
			Message: "cost retention must be at least one month",
		})
	}
	if cfg.AlertMonths < 1 {
		errs = append(errs, FieldError{
			Field:   "retention.alert_months",
			Message: "alert retention must be at least one month",
		})
	}
	return errs
}

func validateSchedule(cfg *ScheduleConfig) []FieldError {
	var errs []FieldError

	check := func(field, expr string) {
		if expr == "" || expr == "-" {
			return
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			errs = append(errs, FieldError{
				Field:   "schedule." + field,
				Message: fmt.Sprintf("invalid cron expression %q", expr),
			})
		}
	}
	check("sweep", cfg.Sweep)
	check("sync", cfg.Sync)
	check("cleanup", cfg.Cleanup)
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q (options: debug, info, warn, error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (options: json, text)", cfg.Logging.Format),
		})
	}
	return errs
}
