package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func claimEvent(subjectID, policyID string, kind Kind, createdAt time.Time) *Event {
	return &Event{
		SubjectID:   subjectID,
		PolicyID:    policyID,
		Kind:        kind,
		Severity:    SeverityInfo,
		PercentUsed: 0.85,
		AmountSpent: decimal.RequireFromString("850"),
		LimitAmount: decimal.RequireFromString("1000"),
		Message:     "test",
		CreatedAt:   createdAt,
	}
}

// TestMemoryStore_ClaimCooldown tests that only sent events within the
// cooldown block a claim.
func TestMemoryStore_ClaimCooldown(t *testing.T) {
	store := NewMemoryStore(StoreConfig{Cooldown: 24 * time.Hour, ClaimTTL: 5 * time.Minute})
	ctx := context.Background()
	base := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	first := claimEvent("user-1", "pol-1", KindThreshold, base)
	claimed, err := store.Claim(ctx, first)
	if err != nil || !claimed {
		t.Fatalf("First claim: got (%v, %v)", claimed, err)
	}
	if err := store.Resolve(ctx, first.ID, true, base, ""); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	// Same slot an hour later: blocked.
	claimed, err = store.Claim(ctx, claimEvent("user-1", "pol-1", KindThreshold, base.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Claim() failed: %v", err)
	}
	if claimed {
		t.Error("Expected the cooldown to block the claim")
	}

	// A different kind for the same policy is a separate slot.
	claimed, err = store.Claim(ctx, claimEvent("user-1", "pol-1", KindOverBudget, base.Add(time.Hour)))
	if err != nil || !claimed {
		t.Errorf("Expected a different kind to claim freely, got (%v, %v)", claimed, err)
	}

	// Past the cooldown the slot frees up.
	claimed, err = store.Claim(ctx, claimEvent("user-1", "pol-1", KindThreshold, base.Add(25*time.Hour)))
	if err != nil || !claimed {
		t.Errorf("Expected the claim to succeed after the cooldown, got (%v, %v)", claimed, err)
	}
}

// TestMemoryStore_ClaimPendingTTL tests that a pending event blocks only
// within the claim TTL and a failed one not at all.
func TestMemoryStore_ClaimPendingTTL(t *testing.T) {
	store := NewMemoryStore(StoreConfig{Cooldown: 24 * time.Hour, ClaimTTL: 5 * time.Minute})
	ctx := context.Background()
	base := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	pending := claimEvent("user-1", "pol-1", KindThreshold, base)
	if claimed, err := store.Claim(ctx, pending); err != nil || !claimed {
		t.Fatalf("Claim() failed: (%v, %v)", claimed, err)
	}

	// Within the TTL the unresolved claim holds the slot.
	if claimed, _ := store.Claim(ctx, claimEvent("user-1", "pol-1", KindThreshold, base.Add(time.Minute))); claimed {
		t.Error("Expected the pending event to block within the TTL")
	}

	// A stale pending claim no longer blocks.
	if claimed, _ := store.Claim(ctx, claimEvent("user-1", "pol-1", KindThreshold, base.Add(10*time.Minute))); !claimed {
		t.Error("Expected a stale pending event to release the slot")
	}

	// Resolve the original as failed: failed events never block.
	if err := store.Resolve(ctx, pending.ID, false, time.Time{}, "boom"); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if claimed, _ := store.Claim(ctx, claimEvent("user-2", "pol-2", KindThreshold, base.Add(time.Minute))); !claimed {
		t.Error("Expected an unrelated slot to claim freely")
	}
}

// TestMemoryStore_ClaimRace tests that concurrent claims for the same
// slot admit exactly one winner.
func TestMemoryStore_ClaimRace(t *testing.T) {
	store := NewMemoryStore(StoreConfig{Cooldown: 24 * time.Hour, ClaimTTL: 5 * time.Minute})
	ctx := context.Background()
	base := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.Claim(ctx, claimEvent("user-1", "pol-1", KindThreshold, base))
			if err != nil {
				t.Errorf("Claim() failed: %v", err)
				return
			}
			if claimed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly one winning claim, got %d", wins)
	}
}

// TestMemoryStore_History tests ordering and the limit.
func TestMemoryStore_History(t *testing.T) {
	store := NewMemoryStore(StoreConfig{Cooldown: time.Minute, ClaimTTL: time.Second})
	ctx := context.Background()
	base := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		event := claimEvent("user-1", "pol-1", KindThreshold, base.Add(time.Duration(i)*2*time.Minute))
		if claimed, err := store.Claim(ctx, event); err != nil || !claimed {
			t.Fatalf("Claim %d failed: (%v, %v)", i, claimed, err)
		}
	}

	history, err := store.HistoryBySubject(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("HistoryBySubject() failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected the limit to cap at 2, got %d", len(history))
	}
	if !history[0].CreatedAt.After(history[1].CreatedAt) {
		t.Error("Expected newest-first ordering")
	}

	byPolicy, err := store.HistoryByPolicy(ctx, "pol-1", 0)
	if err != nil {
		t.Fatalf("HistoryByPolicy() failed: %v", err)
	}
	if len(byPolicy) != 3 {
		t.Errorf("Expected 3 events for the policy, got %d", len(byPolicy))
	}
}

// TestMemoryStore_PurgeOlderThan tests the strictly-before cutoff.
func TestMemoryStore_PurgeOlderThan(t *testing.T) {
	store := NewMemoryStore(StoreConfig{Cooldown: time.Minute, ClaimTTL: time.Second})
	ctx := context.Background()
	base := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	old := claimEvent("user-1", "pol-1", KindThreshold, base.Add(-48*time.Hour))
	recent := claimEvent("user-1", "pol-1", KindOverBudget, base)
	for _, e := range []*Event{old, recent} {
		if claimed, err := store.Claim(ctx, e); err != nil || !claimed {
			t.Fatalf("Claim() failed: (%v, %v)", claimed, err)
		}
	}

	deleted, err := store.PurgeOlderThan(ctx, base)
	if err != nil {
		t.Fatalf("PurgeOlderThan() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted)
	}

	history, _ := store.HistoryBySubject(ctx, "user-1", 0)
	if len(history) != 1 || history[0].Kind != KindOverBudget {
		t.Errorf("Expected only the recent event to survive, got %+v", history)
	}
}
