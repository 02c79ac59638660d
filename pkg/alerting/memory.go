package alerting

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements the alert ledger in memory. The mutex makes the
// claim check-and-insert atomic, matching the SQLite store's transaction.
// For testing.
type MemoryStore struct {
	events map[string]*Event
	config StoreConfig
	mu     sync.Mutex
}

// NewMemoryStore creates a new in-memory alert ledger.
func NewMemoryStore(config StoreConfig) *MemoryStore {
	return &MemoryStore{
		events: make(map[string]*Event),
		config: config.withDefaults(),
	}
}

// Claim atomically checks the cooldown and records the event when clear.
func (s *MemoryStore) Claim(ctx context.Context, event *Event) (bool, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Status == "" {
		event.Status = StatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sentCutoff := event.CreatedAt.Add(-s.config.Cooldown)
	pendingCutoff := event.CreatedAt.Add(-s.config.ClaimTTL)

	for _, existing := range s.events {
		if existing.SubjectID != event.SubjectID ||
			existing.PolicyID != event.PolicyID ||
			existing.Kind != event.Kind {
			continue
		}
		if existing.Status == StatusSent && existing.CreatedAt.After(sentCutoff) {
			return false, nil
		}
		if existing.Status == StatusPending && existing.CreatedAt.After(pendingCutoff) {
			return false, nil
		}
	}

	stored := *event
	s.events[event.ID] = &stored
	return true, nil
}

// Resolve records the delivery outcome of a claimed event.
func (s *MemoryStore) Resolve(ctx context.Context, id string, succeeded bool, deliveredAt time.Time, failureReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return nil
	}
	if succeeded {
		event.Status = StatusSent
		t := deliveredAt.UTC()
		event.DeliveredAt = &t
	} else {
		event.Status = StatusFailed
		event.FailureReason = failureReason
	}
	return nil
}

// HistoryBySubject returns the subject's events, newest first.
func (s *MemoryStore) HistoryBySubject(ctx context.Context, subjectID string, limit int) ([]*Event, error) {
	return s.history(func(e *Event) bool { return e.SubjectID == subjectID }, limit)
}

// HistoryByPolicy returns the policy's events, newest first.
func (s *MemoryStore) HistoryByPolicy(ctx context.Context, policyID string, limit int) ([]*Event, error) {
	return s.history(func(e *Event) bool { return e.PolicyID == policyID }, limit)
}

func (s *MemoryStore) history(match func(*Event) bool, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events := []*Event{}
	for _, event := range s.events {
		if match(event) {
			eventCopy := *event
			events = append(events, &eventCopy)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// PurgeOlderThan deletes events created strictly before the cutoff.
func (s *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, event := range s.events {
		if event.CreatedAt.Before(cutoff) {
			delete(s.events, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
