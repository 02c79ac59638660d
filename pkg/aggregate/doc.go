// Package aggregate provides read-only aggregation queries over the cost
// ledger: period totals, service breakdowns, daily trends, and top cost
// drivers.
//
// All sums use fixed-point decimal arithmetic; callers convert to floating
// point only at the presentation boundary (percentages in the API and the
// alerting pipeline).
//
// The package is stateless: every query is computed on demand from the
// ledger and requires no locking.
package aggregate
