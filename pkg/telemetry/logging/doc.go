// Package logging configures the process-wide structured logger on top
// of log/slog. Components obtain their loggers with
// slog.Default().With("component", ...).
package logging
