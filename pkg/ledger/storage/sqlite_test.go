package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"mercator-hq/callisto/pkg/ledger"
)

func newTestSQLiteBackend(t *testing.T) *SQLiteBackend {
	t.Helper()

	backend, err := NewSQLiteBackend(&SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		WALMode:      true,
		BusyTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewSQLiteBackend() failed: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend
}

// TestSQLiteBackend_MergeAndQuery tests a round trip through the database.
func TestSQLiteBackend_MergeAndQuery(t *testing.T) {
	backend := newTestSQLiteBackend(t)
	ctx := context.Background()

	record := testRecord("user-1", "vm-1", "2026-03-10", "12.50")
	record.UsageQuantity = decimal.NewNullDecimal(decimal.RequireFromString("4.5"))
	record.UsageUnit = "GB-hours"

	if err := backend.Merge(ctx, record); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	from, _ := time.Parse("2006-01-02", "2026-03-01")
	to, _ := time.Parse("2006-01-02", "2026-04-01")
	results, err := backend.QueryRange(ctx, "user-1", from, to)
	if err != nil {
		t.Fatalf("QueryRange() failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(results))
	}
	got := results[0]
	if !got.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("Expected amount 12.50, got %s", got.Amount)
	}
	if !got.UsageQuantity.Valid || !got.UsageQuantity.Decimal.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("Expected usage quantity 4.5, got %+v", got.UsageQuantity)
	}
	if got.UsageUnit != "GB-hours" {
		t.Errorf("Expected usage unit GB-hours, got %q", got.UsageUnit)
	}
	if got.Source != ledger.SourceSync {
		t.Errorf("Expected source %q, got %q", ledger.SourceSync, got.Source)
	}
}

// TestSQLiteBackend_MergePreservesCreatedAt tests that a re-merge keeps
// the original created_at while updating the amount.
func TestSQLiteBackend_MergePreservesCreatedAt(t *testing.T) {
	backend := newTestSQLiteBackend(t)
	ctx := context.Background()

	if err := backend.Merge(ctx, testRecord("user-1", "vm-1", "2026-03-10", "10.00")); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	from, _ := time.Parse("2006-01-02", "2026-03-10")
	to, _ := time.Parse("2006-01-02", "2026-03-11")
	first, err := backend.QueryRange(ctx, "user-1", from, to)
	if err != nil {
		t.Fatalf("QueryRange() failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(first))
	}

	if err := backend.Merge(ctx, testRecord("user-1", "vm-1", "2026-03-10", "15.00")); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	second, err := backend.QueryRange(ctx, "user-1", from, to)
	if err != nil {
		t.Fatalf("QueryRange() failed: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("Expected 1 record after re-merge, got %d", len(second))
	}
	if !second[0].Amount.Equal(decimal.RequireFromString("15.00")) {
		t.Errorf("Expected updated amount 15.00, got %s", second[0].Amount)
	}
	if !second[0].CreatedAt.Equal(first[0].CreatedAt) {
		t.Errorf("Expected created_at to be preserved: first=%v second=%v", first[0].CreatedAt, second[0].CreatedAt)
	}
}

// TestSQLiteBackend_MergeBatchRejects tests per-record validation.
func TestSQLiteBackend_MergeBatchRejects(t *testing.T) {
	backend := newTestSQLiteBackend(t)
	ctx := context.Background()

	bad := testRecord("user-1", "vm-2", "2026-03-10", "1.00")
	bad.Amount = decimal.RequireFromString("-5")

	result, err := backend.MergeBatch(ctx, []*ledger.CostRecord{
		testRecord("user-1", "vm-1", "2026-03-10", "10.00"),
		bad,
	})
	if err != nil {
		t.Fatalf("MergeBatch() failed: %v", err)
	}
	if result.Written != 1 || result.Rejected != 1 {
		t.Errorf("Expected 1 written and 1 rejected, got %d/%d", result.Written, result.Rejected)
	}
}

// TestSQLiteBackend_PurgeOlderThan tests retention deletion.
func TestSQLiteBackend_PurgeOlderThan(t *testing.T) {
	backend := newTestSQLiteBackend(t)
	ctx := context.Background()

	for _, day := range []string{"2024-01-15", "2024-06-15", "2024-12-15"} {
		if err := backend.Merge(ctx, testRecord("user-1", "vm-"+day, day, "1.00")); err != nil {
			t.Fatalf("Merge() failed: %v", err)
		}
	}

	cutoff, _ := time.Parse("2006-01-02", "2024-07-01")
	deleted, err := backend.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("PurgeOlderThan() failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	subjects, err := backend.Subjects(ctx)
	if err != nil {
		t.Fatalf("Subjects() failed: %v", err)
	}
	if len(subjects) != 1 {
		t.Errorf("Expected the remaining row's subject, got %v", subjects)
	}
}
