// Package middleware provides the HTTP middleware chain for the API
// server: request IDs, structured request logging, panic recovery,
// per-request timeouts, and Prometheus instrumentation.
package middleware
