package policy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store using an in-memory map. For testing.
type MemoryStore struct {
	policies map[string]*Policy
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]*Policy),
	}
}

// Create validates and persists a new policy.
func (s *MemoryStore) Create(ctx context.Context, p *Policy) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.AlertThreshold == 0 {
		p.AlertThreshold = DefaultAlertThreshold
	}
	if err := p.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *p
	s.policies[p.ID] = &stored
	return nil
}

// Update applies a partial update and returns the updated policy.
func (s *MemoryStore) Update(ctx context.Context, id string, patch *Patch) (*Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.policies[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	updated := *existing
	patch.apply(&updated)
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()

	s.policies[id] = &updated
	result := updated
	return &result, nil
}

// Delete removes a policy by id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[id]; !ok {
		return &NotFoundError{ID: id}
	}
	delete(s.policies, id)
	return nil
}

// Get returns a policy by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	result := *p
	return &result, nil
}

// Active returns the most recently created policy covering t, or (nil, nil).
func (s *MemoryStore) Active(ctx context.Context, subjectID string, t time.Time) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active *Policy
	for _, p := range s.policies {
		if p.SubjectID != subjectID || !p.ActiveAt(t) {
			continue
		}
		if active == nil || p.CreatedAt.After(active.CreatedAt) {
			active = p
		}
	}
	if active == nil {
		return nil, nil
	}
	result := *active
	return &result, nil
}

// List returns all of the subject's policies, newest first.
func (s *MemoryStore) List(ctx context.Context, subjectID string) ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policies := []*Policy{}
	for _, p := range s.policies {
		if p.SubjectID == subjectID {
			result := *p
			policies = append(policies, &result)
		}
	}
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].CreatedAt.After(policies[j].CreatedAt)
	})
	return policies, nil
}

// SubjectsWithAlerts returns subjects with an enabled policy active at t.
func (s *MemoryStore) SubjectsWithAlerts(ctx context.Context, t time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var subjects []string
	for _, p := range s.policies {
		if p.AlertsEnabled && p.ActiveAt(t) && !seen[p.SubjectID] {
			seen[p.SubjectID] = true
			subjects = append(subjects, p.SubjectID)
		}
	}
	sort.Strings(subjects)
	return subjects, nil
}

// SetLastAlert records when an alert was last successfully sent.
func (s *MemoryStore) SetLastAlert(ctx context.Context, id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	stamp := t.UTC()
	p.LastAlertAt = &stamp
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
