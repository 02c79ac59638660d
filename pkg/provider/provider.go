package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UsageRow is one cost row returned by the billing provider: what one
// resource cost on one day.
type UsageRow struct {
	// Service is the provider service the cost accrued under.
	Service string `json:"service"`

	// ResourceKey is the provider-assigned resource identifier. For
	// service-level rows the provider synthesizes a stable key.
	ResourceKey string `json:"resource_key"`

	// Amount is the monetary amount for the day.
	Amount decimal.Decimal `json:"amount"`

	// Currency is the ISO currency code.
	Currency string `json:"currency"`

	// UsageQuantity and UsageUnit carry metered usage when reported.
	UsageQuantity decimal.NullDecimal `json:"usage_quantity"`
	UsageUnit     string              `json:"usage_unit"`

	// Date is the day the cost accrued.
	Date time.Time `json:"date"`
}

// Client fetches daily cost rows from the metered-billing provider.
type Client interface {
	// FetchDailyCosts returns the cost rows for [from, to] (inclusive
	// dates) for the account identified by the credentials reference.
	// Transient failures are retried internally at the batch level.
	FetchDailyCosts(ctx context.Context, credentialsRef string, from, to time.Time) ([]UsageRow, error)

	// Name identifies the provider implementation, for logging.
	Name() string
}

// Error wraps a provider failure, distinguishing transient faults (worth
// retrying next run) from permanent ones.
type Error struct {
	Provider  string
	Transient bool
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	class := "permanent"
	if e.Transient {
		class = "transient"
	}
	return fmt.Sprintf("provider error [provider=%s, class=%s]: %v", e.Provider, class, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new provider Error.
func NewError(provider string, transient bool, cause error) *Error {
	return &Error{Provider: provider, Transient: transient, Cause: cause}
}

// IsTransient reports whether err is a transient provider error.
func IsTransient(err error) bool {
	var providerErr *Error
	return errors.As(err, &providerErr) && providerErr.Transient
}
