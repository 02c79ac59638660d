// Package metrics exposes Prometheus metrics for the sweep, sync, and
// cleanup jobs, alert dispatch outcomes, ledger writes, and the HTTP
// API. All metrics are registered on a collector-owned registry.
package metrics
