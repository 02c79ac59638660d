// Package ledger defines the cost ledger domain model: per-day, per-resource
// spending facts ingested from the metered-billing provider.
//
// A CostRecord is uniquely identified by (subject, account, resource, date).
// Re-ingesting the same tuple merges into the existing row rather than
// duplicating it, which makes ingestion idempotent and safe to retry.
//
// Storage backends live in the storage subpackage.
package ledger
