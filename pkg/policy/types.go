package policy

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAlertThreshold is applied when a policy is created without an
// explicit threshold.
const DefaultAlertThreshold = 0.80

// Policy is one subject's spending rule.
type Policy struct {
	// ID is the policy's unique id.
	ID string `json:"id"`

	// SubjectID is the subject the policy applies to.
	SubjectID string `json:"subject_id"`

	// MonthlyLimit is the spending limit per calendar month. Always > 0.
	MonthlyLimit decimal.Decimal `json:"monthly_limit"`

	// Currency is the ISO currency code of the limit.
	Currency string `json:"currency"`

	// AlertThreshold is the fraction of the limit at which threshold
	// alerts fire, in [0, 1]. Default: 0.80
	AlertThreshold float64 `json:"alert_threshold"`

	// AlertsEnabled gates the alerting pipeline for this policy.
	AlertsEnabled bool `json:"alerts_enabled"`

	// StartDate opens the validity window.
	StartDate time.Time `json:"start_date"`

	// EndDate closes the validity window, inclusive. Nil means open-ended.
	// Soft retirement sets an end date rather than deleting the row.
	EndDate *time.Time `json:"end_date,omitempty"`

	// LastAlertAt is when an alert was last successfully sent for this
	// policy. Mutable; maintained by the dispatcher.
	LastAlertAt *time.Time `json:"last_alert_at,omitempty"`

	// CreatedBy identifies who created the policy.
	CreatedBy string `json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveAt reports whether the policy's validity window covers t.
func (p *Policy) ActiveAt(t time.Time) bool {
	if t.Before(p.StartDate) {
		return false
	}
	if p.EndDate != nil && t.After(*p.EndDate) {
		return false
	}
	return true
}

// Validate checks the policy's value constraints, returning a
// *ValidationError naming the first offending field.
func (p *Policy) Validate() error {
	if p.SubjectID == "" {
		return NewValidationError("subject_id", "must not be empty")
	}
	if !p.MonthlyLimit.IsPositive() {
		return NewValidationError("monthly_limit", "must be greater than zero")
	}
	if p.Currency == "" {
		return NewValidationError("currency", "must not be empty")
	}
	if p.AlertThreshold < 0 || p.AlertThreshold > 1 {
		return NewValidationError("alert_threshold", "must be between 0 and 1")
	}
	if p.StartDate.IsZero() {
		return NewValidationError("start_date", "must be set")
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return NewValidationError("end_date", "must not precede start_date")
	}
	return nil
}

// Patch describes a partial policy update. Nil fields are left unchanged.
type Patch struct {
	MonthlyLimit   *decimal.Decimal
	Currency       *string
	AlertThreshold *float64
	AlertsEnabled  *bool
	StartDate      *time.Time
	EndDate        *time.Time

	// ClearEndDate removes the end date, re-opening the validity window.
	// Takes precedence over EndDate.
	ClearEndDate bool
}

// apply copies the patch's set fields onto the policy.
func (patch *Patch) apply(p *Policy) {
	if patch.MonthlyLimit != nil {
		p.MonthlyLimit = *patch.MonthlyLimit
	}
	if patch.Currency != nil {
		p.Currency = *patch.Currency
	}
	if patch.AlertThreshold != nil {
		p.AlertThreshold = *patch.AlertThreshold
	}
	if patch.AlertsEnabled != nil {
		p.AlertsEnabled = *patch.AlertsEnabled
	}
	if patch.StartDate != nil {
		p.StartDate = *patch.StartDate
	}
	if patch.ClearEndDate {
		p.EndDate = nil
	} else if patch.EndDate != nil {
		end := *patch.EndDate
		p.EndDate = &end
	}
}
