package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Recognized Source values for ledger rows.
const (
	SourceSync   = "sync"
	SourceImport = "import"
	SourceManual = "manual"
)

// CostRecord is one observed spend fact: what a single resource cost on a
// single day, as reported by the billing provider.
type CostRecord struct {
	// SubjectID identifies the user the spend is attributed to.
	SubjectID string

	// AccountID identifies the external billing account the row came from.
	AccountID string

	// ResourceID is the provider-assigned resource key. For service-level
	// rows the provider synthesizes a stable key per (account, service).
	ResourceID string

	// Service is the provider service name (e.g. "compute", "storage").
	Service string

	// UsageDate is the day the spend occurred, truncated to UTC midnight.
	UsageDate time.Time

	// Amount is the monetary amount. Never negative.
	Amount decimal.Decimal

	// Currency is the ISO currency code (e.g. "USD").
	Currency string

	// UsageQuantity is the metered usage, when the provider reports one.
	UsageQuantity decimal.NullDecimal

	// UsageUnit is the unit for UsageQuantity (e.g. "GB-hours").
	UsageUnit string

	// Source records where the row came from ("sync", "import", ...).
	Source string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the unique merge key for the record.
func (r *CostRecord) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", r.SubjectID, r.AccountID, r.ResourceID, r.UsageDate.UTC().Format("2006-01-02"))
}

// Validate checks the record's required fields and value constraints.
// It returns a *ValidationError naming the first offending field.
func (r *CostRecord) Validate() error {
	if r.SubjectID == "" {
		return NewValidationError("subject_id", "must not be empty")
	}
	if r.AccountID == "" {
		return NewValidationError("account_id", "must not be empty")
	}
	if r.ResourceID == "" {
		return NewValidationError("resource_id", "must not be empty")
	}
	if r.Currency == "" {
		return NewValidationError("currency", "must not be empty")
	}
	if r.UsageDate.IsZero() {
		return NewValidationError("usage_date", "must be set")
	}
	if r.Amount.IsNegative() {
		return NewValidationError("amount", "must not be negative")
	}
	return nil
}

// TruncateDay normalizes a timestamp to UTC midnight, the granularity the
// ledger stores.
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BatchResult reports the outcome of a MergeBatch call. Rejected records do
// not abort the batch; each rejection carries the record's index and the
// validation error.
type BatchResult struct {
	// Written is the number of distinct ledger rows written. Duplicate keys
	// within the batch collapse to the last value and count once.
	Written int

	// Rejected is the number of records that failed validation.
	Rejected int

	// Errors holds one entry per rejected record.
	Errors []RecordError
}

// RecordError ties a per-record failure to its position in the batch.
type RecordError struct {
	Index int
	Err   error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }
