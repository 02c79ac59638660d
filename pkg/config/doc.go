// Package config defines the root configuration structure for Callisto,
// loading it from YAML with defaults, environment overrides, validation,
// and optional file watching for hot reload.
package config
