package alerting

import (
	"testing"

	"github.com/shopspring/decimal"
)

// TestUnmarshalDetail_RejectsUnknownType tests that the detail codec only
// accepts the tags a live code path can produce. Stored rows with any other
// tag are corrupt and must surface as errors rather than silent nils.
func TestUnmarshalDetail_RejectsUnknownType(t *testing.T) {
	for _, d := range []Detail{
		ThresholdDetail{Threshold: 0.8, PercentUsed: 0.85},
		OverBudgetDetail{Overage: decimal.RequireFromString("120")},
	} {
		tag, payload, err := marshalDetail(d)
		if err != nil {
			t.Fatalf("marshalDetail(%T) failed: %v", d, err)
		}
		if _, err := unmarshalDetail(tag, payload); err != nil {
			t.Errorf("unmarshalDetail(%q) failed: %v", tag, err)
		}
	}

	if _, err := unmarshalDetail("daily_summary", []byte(`{}`)); err == nil {
		t.Error("Expected an error for an unproduced detail tag, got nil")
	}
}
