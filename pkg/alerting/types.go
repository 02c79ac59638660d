package alerting

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind names the condition an alert reports.
type Kind string

const (
	// KindThreshold fires when spend crosses the policy's alert threshold.
	KindThreshold Kind = "threshold"

	// KindOverBudget fires when spend reaches or exceeds the limit.
	KindOverBudget Kind = "over_budget"

	// KindDailySummary is a periodic digest rather than a condition.
	KindDailySummary Kind = "daily_summary"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// DeliveryStatus tracks an alert event through the dispatch state machine:
// a claimed event is pending, then either sent or failed.
type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
)

// Event is one alert evaluation outcome, kept whether or not delivery
// succeeded. Failed deliveries stay on record so the next sweep can retry
// without double-sending.
type Event struct {
	// ID is the event's unique id.
	ID string `json:"id"`

	SubjectID string `json:"subject_id"`
	PolicyID  string `json:"policy_id"`

	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`

	// PercentUsed is spend/limit at evaluation time, as a fraction.
	PercentUsed float64 `json:"percent_used"`

	// AmountSpent and LimitAmount snapshot the numbers the alert reported.
	AmountSpent decimal.Decimal `json:"amount_spent"`
	LimitAmount decimal.Decimal `json:"limit_amount"`

	// Message is the rendered notification body.
	Message string `json:"message"`

	// Status is the delivery state. Only sent events start the cooldown.
	Status DeliveryStatus `json:"status"`

	// DeliveredAt is set when delivery succeeded.
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	// FailureReason is set when delivery failed.
	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Detail carries the structured variant for this event.
	Detail Detail `json:"detail,omitempty"`
}

// DeliverySucceeded reports whether the notification went out.
func (e *Event) DeliverySucceeded() bool {
	return e.Status == StatusSent
}

// Detail is the closed set of structured alert payloads. Consumers can
// switch over the concrete types exhaustively; there is no open-ended
// map variant.
type Detail interface {
	// DetailType returns the tag stored alongside the payload.
	DetailType() string
}

// ThresholdDetail reports a threshold crossing.
type ThresholdDetail struct {
	Threshold   float64 `json:"threshold"`
	PercentUsed float64 `json:"percent_used"`
}

// DetailType implements Detail.
func (ThresholdDetail) DetailType() string { return "threshold_crossed" }

// OverBudgetDetail reports spend past the limit.
type OverBudgetDetail struct {
	Overage decimal.Decimal `json:"overage"`
}

// DetailType implements Detail.
func (OverBudgetDetail) DetailType() string { return "over_budget" }

// marshalDetail encodes a detail variant with its type tag for storage.
func marshalDetail(d Detail) (detailType string, payload []byte, err error) {
	if d == nil {
		return "", nil, nil
	}
	payload, err = json.Marshal(d)
	if err != nil {
		return "", nil, fmt.Errorf("marshal alert detail: %w", err)
	}
	return d.DetailType(), payload, nil
}

// unmarshalDetail decodes a stored detail payload by its type tag.
func unmarshalDetail(detailType string, payload []byte) (Detail, error) {
	if detailType == "" || len(payload) == 0 {
		return nil, nil
	}

	var d Detail
	switch detailType {
	case ThresholdDetail{}.DetailType():
		var v ThresholdDetail
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
		d = v
	case OverBudgetDetail{}.DetailType():
		var v OverBudgetDetail
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
		d = v
	default:
		return nil, fmt.Errorf("unknown alert detail type %q", detailType)
	}
	return d, nil
}
