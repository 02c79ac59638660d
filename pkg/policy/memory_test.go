package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testPolicy(subjectID string, limit string) *Policy {
	start, _ := time.Parse("2006-01-02", "2026-01-01")
	return &Policy{
		SubjectID:     subjectID,
		MonthlyLimit:  decimal.RequireFromString(limit),
		Currency:      "USD",
		AlertsEnabled: true,
		StartDate:     start,
		CreatedBy:     "test",
	}
}

// TestMemoryStore_CreateDefaults tests id and threshold defaulting.
func TestMemoryStore_CreateDefaults(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := testPolicy("user-1", "1000")
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if p.ID == "" {
		t.Error("Expected a generated id")
	}
	if p.AlertThreshold != DefaultAlertThreshold {
		t.Errorf("Expected default threshold %v, got %v", DefaultAlertThreshold, p.AlertThreshold)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.SubjectID != "user-1" {
		t.Errorf("Expected subject user-1, got %s", got.SubjectID)
	}
}

// TestMemoryStore_CreateRejectsInvalid tests validation on create.
func TestMemoryStore_CreateRejectsInvalid(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Policy)
		field  string
	}{
		{"empty subject", func(p *Policy) { p.SubjectID = "" }, "subject_id"},
		{"zero limit", func(p *Policy) { p.MonthlyLimit = decimal.Zero }, "monthly_limit"},
		{"negative limit", func(p *Policy) { p.MonthlyLimit = decimal.RequireFromString("-10") }, "monthly_limit"},
		{"empty currency", func(p *Policy) { p.Currency = "" }, "currency"},
		{"threshold above one", func(p *Policy) { p.AlertThreshold = 1.5 }, "alert_threshold"},
		{"zero start", func(p *Policy) { p.StartDate = time.Time{} }, "start_date"},
		{"end before start", func(p *Policy) {
			end := p.StartDate.AddDate(0, 0, -1)
			p.EndDate = &end
		}, "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPolicy("user-1", "1000")
			tt.mutate(p)

			err := store.Create(ctx, p)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

// TestMemoryStore_ActiveResolution tests that the most recently created
// covering policy wins and that retired policies drop out.
func TestMemoryStore_ActiveResolution(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	old := testPolicy("user-1", "500")
	if err := store.Create(ctx, old); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	newer := testPolicy("user-1", "1000")
	if err := store.Create(ctx, newer); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	at, _ := time.Parse("2006-01-02", "2026-03-15")
	active, err := store.Active(ctx, "user-1", at)
	if err != nil {
		t.Fatalf("Active() failed: %v", err)
	}
	if active == nil || active.ID != newer.ID {
		t.Fatalf("Expected the newer policy to be active, got %+v", active)
	}

	// Retire the newer policy; the older one takes over.
	end, _ := time.Parse("2006-01-02", "2026-02-28")
	if _, err := store.Update(ctx, newer.ID, &Patch{EndDate: &end}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	active, err = store.Active(ctx, "user-1", at)
	if err != nil {
		t.Fatalf("Active() failed: %v", err)
	}
	if active == nil || active.ID != old.ID {
		t.Fatalf("Expected the older policy after retirement, got %+v", active)
	}

	// Before anything started, no policy is active. Not an error.
	before, _ := time.Parse("2006-01-02", "2025-12-31")
	active, err = store.Active(ctx, "user-1", before)
	if err != nil {
		t.Fatalf("Active() failed: %v", err)
	}
	if active != nil {
		t.Errorf("Expected no active policy before the window, got %+v", active)
	}
}

// TestMemoryStore_ActiveEndDateInclusive tests the inclusive end date.
func TestMemoryStore_ActiveEndDateInclusive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := testPolicy("user-1", "1000")
	end, _ := time.Parse("2006-01-02", "2026-03-31")
	p.EndDate = &end
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	active, err := store.Active(ctx, "user-1", end)
	if err != nil {
		t.Fatalf("Active() failed: %v", err)
	}
	if active == nil {
		t.Error("Expected the policy to be active on its end date")
	}

	after := end.AddDate(0, 0, 1)
	active, err = store.Active(ctx, "user-1", after)
	if err != nil {
		t.Fatalf("Active() failed: %v", err)
	}
	if active != nil {
		t.Error("Expected no active policy after the end date")
	}
}

// TestMemoryStore_Update tests patch semantics.
func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := testPolicy("user-1", "1000")
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	limit := decimal.RequireFromString("2000")
	threshold := 0.9
	disabled := false
	updated, err := store.Update(ctx, p.ID, &Patch{
		MonthlyLimit:   &limit,
		AlertThreshold: &threshold,
		AlertsEnabled:  &disabled,
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	if !updated.MonthlyLimit.Equal(limit) {
		t.Errorf("Expected limit 2000, got %s", updated.MonthlyLimit)
	}
	if updated.AlertThreshold != 0.9 || updated.AlertsEnabled {
		t.Errorf("Patch not applied: %+v", updated)
	}
	if updated.Currency != "USD" {
		t.Errorf("Unpatched field changed: %s", updated.Currency)
	}

	// ClearEndDate wins over EndDate.
	end, _ := time.Parse("2006-01-02", "2026-06-30")
	updated, err = store.Update(ctx, p.ID, &Patch{EndDate: &end, ClearEndDate: true})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.EndDate != nil {
		t.Errorf("Expected end date cleared, got %v", updated.EndDate)
	}

	// Invalid patch is rejected and does not partially apply.
	bad := decimal.Zero
	if _, err := store.Update(ctx, p.ID, &Patch{MonthlyLimit: &bad}); err == nil {
		t.Error("Expected validation error for zero limit")
	}
	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !got.MonthlyLimit.Equal(decimal.RequireFromString("2000")) {
		t.Errorf("Rejected patch leaked: %s", got.MonthlyLimit)
	}

	if _, err := store.Update(ctx, "no-such-id", &Patch{}); err == nil {
		t.Error("Expected NotFoundError for unknown id")
	}
}

// TestMemoryStore_Delete tests removal.
func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := testPolicy("user-1", "1000")
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := store.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	var nferr *NotFoundError
	if _, err := store.Get(ctx, p.ID); !errors.As(err, &nferr) {
		t.Errorf("Expected *NotFoundError after delete, got %v", err)
	}
	if err := store.Delete(ctx, p.ID); !errors.As(err, &nferr) {
		t.Errorf("Expected *NotFoundError on double delete, got %v", err)
	}
}

// TestMemoryStore_SubjectsWithAlerts tests sweep candidate listing.
func TestMemoryStore_SubjectsWithAlerts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	enabled := testPolicy("user-a", "1000")
	if err := store.Create(ctx, enabled); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	muted := testPolicy("user-b", "1000")
	muted.AlertsEnabled = false
	if err := store.Create(ctx, muted); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	retired := testPolicy("user-c", "1000")
	end, _ := time.Parse("2006-01-02", "2026-01-31")
	retired.EndDate = &end
	if err := store.Create(ctx, retired); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	at, _ := time.Parse("2006-01-02", "2026-03-15")
	subjects, err := store.SubjectsWithAlerts(ctx, at)
	if err != nil {
		t.Fatalf("SubjectsWithAlerts() failed: %v", err)
	}
	if len(subjects) != 1 || subjects[0] != "user-a" {
		t.Errorf("Expected only user-a, got %v", subjects)
	}
}

// TestMemoryStore_SetLastAlert tests the dispatcher's cooldown stamp.
func TestMemoryStore_SetLastAlert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := testPolicy("user-1", "1000")
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	stamp, _ := time.Parse(time.RFC3339, "2026-03-15T10:00:00Z")
	if err := store.SetLastAlert(ctx, p.ID, stamp); err != nil {
		t.Fatalf("SetLastAlert() failed: %v", err)
	}

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.LastAlertAt == nil || !got.LastAlertAt.Equal(stamp) {
		t.Errorf("Expected last alert %v, got %v", stamp, got.LastAlertAt)
	}
}
