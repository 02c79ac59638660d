package storage

import (
	"context"
	"time"

	"mercator-hq/callisto/pkg/ledger"
)

// Backend is the interface implemented by cost ledger storage backends.
//
// All write operations are idempotent upserts keyed by
// (subject, account, resource, date). Read operations never mutate state.
type Backend interface {
	// Merge upserts a single cost record by its unique key. The amount and
	// usage fields of an existing row are overwritten; created_at is kept.
	// Malformed records are rejected with a *ledger.ValidationError.
	Merge(ctx context.Context, record *ledger.CostRecord) error

	// MergeBatch applies many merges. Malformed records are rejected
	// per-record without aborting the rest of the batch; duplicate keys
	// within the batch collapse to the last value.
	MergeBatch(ctx context.Context, records []*ledger.CostRecord) (*ledger.BatchResult, error)

	// QueryRange returns the subject's records with from <= usage date < to,
	// ordered by usage date, then service, then resource id.
	QueryRange(ctx context.Context, subjectID string, from, to time.Time) ([]*ledger.CostRecord, error)

	// Subjects returns the distinct subject ids present in the ledger.
	Subjects(ctx context.Context) ([]string, error)

	// PurgeOlderThan deletes records with a usage date strictly before the
	// cutoff and returns the number of rows deleted.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources held by the backend.
	Close() error
}
