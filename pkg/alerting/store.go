package alerting

import (
	"context"
	"time"
)

// Store is the alert ledger: the durable record of alert events and the
// single source of truth for dedup decisions.
type Store interface {
	// Claim atomically checks the cooldown for (subject, policy, kind) and,
	// if clear, records the event with status pending. The check and the
	// write happen in one serializable transaction: when two sweeps race,
	// exactly one claim succeeds.
	//
	// The cooldown counts only from sent events. A pending event younger
	// than the claim TTL also blocks, which is what closes the window
	// between a competing claim and its delivery outcome.
	//
	// Returns false when the slot is held and nothing was recorded.
	Claim(ctx context.Context, event *Event) (bool, error)

	// Resolve records the delivery outcome of a previously claimed event.
	// Success sets status sent and the delivery timestamp, which starts
	// the cooldown. Failure sets status failed with the reason; failed
	// events never start the cooldown, so the next sweep retries.
	Resolve(ctx context.Context, id string, succeeded bool, deliveredAt time.Time, failureReason string) error

	// HistoryBySubject returns the subject's events, newest first.
	HistoryBySubject(ctx context.Context, subjectID string, limit int) ([]*Event, error)

	// HistoryByPolicy returns the policy's events, newest first.
	HistoryByPolicy(ctx context.Context, policyID string, limit int) ([]*Event, error)

	// PurgeOlderThan deletes events created strictly before the cutoff and
	// returns the number of rows deleted.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources held by the store.
	Close() error
}

// StoreConfig contains the dedup timing knobs shared by store backends.
type StoreConfig struct {
	// Cooldown is the minimum spacing between two sent events of the same
	// (subject, policy, kind).
	// Default: 24 hours
	Cooldown time.Duration

	// ClaimTTL is how long a pending event blocks competing claims. Long
	// enough to cover a delivery attempt, short enough that a crashed
	// process does not suppress alerts for a full cooldown.
	// Default: 5 minutes
	ClaimTTL time.Duration
}

// DefaultStoreConfig returns the default dedup timing.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Cooldown: 24 * time.Hour,
		ClaimTTL: 5 * time.Minute,
	}
}

// withDefaults fills zero fields with defaults.
func (c StoreConfig) withDefaults() StoreConfig {
	if c.Cooldown == 0 {
		c.Cooldown = 24 * time.Hour
	}
	if c.ClaimTTL == 0 {
		c.ClaimTTL = 5 * time.Minute
	}
	return c
}
