package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/callisto/pkg/ledger"
)

// MemoryBackend implements the Backend interface using an in-memory map.
// It is intended for tests and ephemeral demo runs.
type MemoryBackend struct {
	records map[string]*ledger.CostRecord
	mu      sync.RWMutex
}

// NewMemoryBackend creates a new in-memory ledger backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[string]*ledger.CostRecord),
	}
}

// Merge upserts a single cost record by its unique key.
func (s *MemoryBackend) Merge(ctx context.Context, record *ledger.CostRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.merge(record, time.Now().UTC())
	return nil
}

// merge stores a validated record. Caller must hold the write lock.
func (s *MemoryBackend) merge(record *ledger.CostRecord, now time.Time) {
	stored := *record
	stored.UsageDate = ledger.TruncateDay(record.UsageDate)
	stored.UpdatedAt = now

	key := stored.Key()
	if existing, ok := s.records[key]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	s.records[key] = &stored
}

// MergeBatch applies many merges. Duplicate keys within the batch collapse
// to the last value; malformed records are rejected per-record.
func (s *MemoryBackend) MergeBatch(ctx context.Context, records []*ledger.CostRecord) (*ledger.BatchResult, error) {
	result := &ledger.BatchResult{}

	collapsed := make(map[string]*ledger.CostRecord, len(records))
	var order []string
	for i, record := range records {
		if err := record.Validate(); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, ledger.RecordError{Index: i, Err: err})
			continue
		}
		key := record.Key()
		if _, seen := collapsed[key]; !seen {
			order = append(order, key)
		}
		collapsed[key] = record
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, key := range order {
		s.merge(collapsed[key], now)
		result.Written++
	}

	return result, nil
}

// QueryRange returns the subject's records with from <= usage date < to.
func (s *MemoryBackend) QueryRange(ctx context.Context, subjectID string, from, to time.Time) ([]*ledger.CostRecord, error) {
	from = ledger.TruncateDay(from)
	to = ledger.TruncateDay(to)

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*ledger.CostRecord{}
	for _, record := range s.records {
		if record.SubjectID != subjectID {
			continue
		}
		if record.UsageDate.Before(from) || !record.UsageDate.Before(to) {
			continue
		}
		recordCopy := *record
		results = append(results, &recordCopy)
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].UsageDate.Equal(results[j].UsageDate) {
			return results[i].UsageDate.Before(results[j].UsageDate)
		}
		if results[i].Service != results[j].Service {
			return results[i].Service < results[j].Service
		}
		return results[i].ResourceID < results[j].ResourceID
	})

	return results, nil
}

// Subjects returns the distinct subject ids present in the ledger.
func (s *MemoryBackend) Subjects(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var subjects []string
	for _, record := range s.records {
		if !seen[record.SubjectID] {
			seen[record.SubjectID] = true
			subjects = append(subjects, record.SubjectID)
		}
	}
	sort.Strings(subjects)

	return subjects, nil
}

// PurgeOlderThan deletes records with a usage date strictly before cutoff.
func (s *MemoryBackend) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = ledger.TruncateDay(cutoff)

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, record := range s.records {
		if record.UsageDate.Before(cutoff) {
			delete(s.records, key)
			deleted++
		}
	}

	return deleted, nil
}

// Close is a no-op for the memory backend.
func (s *MemoryBackend) Close() error {
	return nil
}
