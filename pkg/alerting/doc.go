// Package alerting evaluates spending against budget policies and
// dispatches deduplicated alerts.
//
// # Pipeline
//
// The Evaluator combines the subject's active policy with the current
// period's spend into a BudgetStatus. The Dispatcher classifies the status
// (over budget beats threshold; the two never fire together in one pass),
// claims a slot in the alert ledger, attempts delivery through the
// notification transport, and records the outcome.
//
// # Deduplication
//
// The alert ledger is the single source of truth for dedup decisions. For a
// given (subject, policy, kind), two successfully delivered alerts are
// never created less than the cooldown (default 24h) apart. The
// check-and-write is one serializable transaction, so concurrent sweeps
// cannot both claim the same slot. Failed deliveries are recorded but do
// not start the cooldown, so the next sweep retries them.
package alerting
