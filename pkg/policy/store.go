package policy

import (
	"context"
	"time"
)

// Store is the interface implemented by budget policy stores.
type Store interface {
	// Create validates and persists a new policy. The id, threshold
	// default, and timestamps are filled in when absent.
	Create(ctx context.Context, p *Policy) error

	// Update applies a partial update and returns the updated policy.
	// Returns *NotFoundError for unknown ids and *ValidationError when the
	// patched policy violates a constraint.
	Update(ctx context.Context, id string, patch *Patch) (*Policy, error)

	// Delete removes a policy. Only explicit deletion removes rows;
	// automated jobs soft-retire via an end date instead.
	Delete(ctx context.Context, id string) error

	// Get returns a policy by id, or *NotFoundError.
	Get(ctx context.Context, id string) (*Policy, error)

	// Active returns the subject's authoritative active policy at time t:
	// the most recently created policy whose validity window covers t.
	// Returns (nil, nil) when no policy is active.
	Active(ctx context.Context, subjectID string, t time.Time) (*Policy, error)

	// List returns all of the subject's policies, newest first.
	List(ctx context.Context, subjectID string) ([]*Policy, error)

	// SubjectsWithAlerts returns the distinct subjects that have at least
	// one enabled policy active at time t. The hourly sweep iterates this.
	SubjectsWithAlerts(ctx context.Context, t time.Time) ([]string, error)

	// SetLastAlert records when an alert was last successfully sent.
	SetLastAlert(ctx context.Context, id string, t time.Time) error

	// Close releases resources held by the store.
	Close() error
}
