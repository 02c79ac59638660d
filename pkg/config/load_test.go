package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

// TestLoadConfig tests loading a YAML file with defaults filled in for
// everything the file leaves out.
func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "0.0.0.0:9090"
storage:
  backend: memory
alerting:
  default_recipient: ops@example.com
  recipients:
    user-1: alice@example.com
schedule:
  sweep: "*/5 * * * *"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("Expected listen address from file, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Expected memory backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Alerting.Recipients["user-1"] != "alice@example.com" {
		t.Errorf("Expected recipient mapping, got %v", cfg.Alerting.Recipients)
	}
	if cfg.Schedule.Sweep != "*/5 * * * *" {
		t.Errorf("Expected sweep schedule from file, got %q", cfg.Schedule.Sweep)
	}

	// Everything the file omits gets its default.
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("Expected default read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Alerting.Notifier != DefaultAlertNotifier {
		t.Errorf("Expected default notifier, got %q", cfg.Alerting.Notifier)
	}
	if cfg.Retention.CostMonths != DefaultCostRetentionMonths {
		t.Errorf("Expected default cost retention, got %d", cfg.Retention.CostMonths)
	}
	if cfg.Schedule.Sync != DefaultSyncSchedule {
		t.Errorf("Expected default sync schedule, got %q", cfg.Schedule.Sync)
	}
	if cfg.Telemetry.Logging.Level != DefaultLoggingLevel {
		t.Errorf("Expected default log level, got %q", cfg.Telemetry.Logging.Level)
	}
}

// TestLoadConfig_MissingFile tests the error for a nonexistent path.
func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected an error for a missing file")
	}
}

// TestLoadConfig_MalformedYAML tests the error for unparsable content.
func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not: a: mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("Expected an error for malformed YAML")
	}
}

// TestLoadConfig_InvalidConfig tests that validation failures surface
// as a ValidationError naming every offending field.
func TestLoadConfig_InvalidConfig(t *testing.T) {
	path := writeConfigFile(t, `
storage:
  backend: postgres
schedule:
  sweep: "every hour"
telemetry:
  logging:
    level: loud
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("Expected a validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %T: %v", err, err)
	}
	if len(verr.Errors) != 3 {
		t.Fatalf("Expected 3 field errors, got %d: %v", len(verr.Errors), verr)
	}

	fields := make(map[string]bool, len(verr.Errors))
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"storage.backend", "schedule.sweep", "telemetry.logging.level"} {
		if !fields[want] {
			t.Errorf("Expected a field error for %s, got %v", want, verr.Errors)
		}
	}
}

// TestLoadConfigWithEnvOverrides tests that CALLISTO_* variables win
// over file values.
func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "127.0.0.1:8080"
storage:
  backend: sqlite
  sqlite:
    path: data/from-file.db
`)

	t.Setenv("CALLISTO_SERVER_LISTEN_ADDRESS", "0.0.0.0:7070")
	t.Setenv("CALLISTO_STORAGE_BACKEND", "memory")
	t.Setenv("CALLISTO_RETENTION_COST_MONTHS", "6")
	t.Setenv("CALLISTO_SERVER_READ_TIMEOUT", "45s")
	t.Setenv("CALLISTO_TELEMETRY_METRICS_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7070" {
		t.Errorf("Expected the env listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Expected the env backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Retention.CostMonths != 6 {
		t.Errorf("Expected cost retention 6, got %d", cfg.Retention.CostMonths)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Expected read timeout 45s, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("Expected metrics disabled via env")
	}
}

// TestLoadConfigWithEnvOverrides_InvalidOverride tests that an override
// producing an invalid config is rejected.
func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	path := writeConfigFile(t, "storage:\n  backend: memory\n")

	t.Setenv("CALLISTO_STORAGE_BACKEND", "postgres")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("Expected a validation error after the override")
	}
}
