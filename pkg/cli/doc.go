// Package cli provides shared command-line helpers: signal handling and
// command error types.
package cli
