// Package forecast predicts next-period spend from ledger history.
//
// Four independent methods are provided: linear extrapolation over the
// current period's daily average, a 7-day moving average, exponential
// smoothing (α = 0.3), and a historical trend over trailing monthly totals.
// Methods with too little data fall back to linear extrapolation.
//
// A comprehensive forecast runs all four, reports their arithmetic mean as
// the consensus, and recommends the single method with the best
// confidence-weighted sample size.
//
// Results are transient: nothing is persisted and every request recomputes
// from the ledger.
package forecast
