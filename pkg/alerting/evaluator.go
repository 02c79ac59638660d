package alerting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/callisto/pkg/aggregate"
	"mercator-hq/callisto/pkg/policy"
)

// BudgetStatus combines a subject's active policy with the current
// period's spend. Percentage fields are floating point; they exist at the
// presentation and classification boundary only, the underlying sums stay
// decimal.
type BudgetStatus struct {
	SubjectID string           `json:"subject_id"`
	Policy    *policy.Policy   `json:"policy"`
	Period    aggregate.Period `json:"period"`

	Spent     decimal.Decimal `json:"spent"`
	Limit     decimal.Decimal `json:"limit"`
	Remaining decimal.Decimal `json:"remaining"`

	// PercentUsed is spent/limit as a fraction (1.0 == at the limit).
	PercentUsed float64 `json:"percent_used"`

	OverBudget bool `json:"over_budget"`

	// DaysLeft counts whole days remaining in the period, including today.
	DaysLeft int `json:"days_left"`
}

// Overage returns how far past the limit the spend is, zero when within.
func (s *BudgetStatus) Overage() decimal.Decimal {
	if !s.OverBudget {
		return decimal.Zero
	}
	return s.Spent.Sub(s.Limit)
}

// Evaluator computes budget status for subjects.
type Evaluator struct {
	policies policy.Store
	agg      *aggregate.Engine
	now      func() time.Time
}

// NewEvaluator creates a threshold evaluator.
func NewEvaluator(policies policy.Store, agg *aggregate.Engine) *Evaluator {
	return &Evaluator{
		policies: policies,
		agg:      agg,
		now:      time.Now,
	}
}

// WithClock overrides the evaluator's clock. For tests.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Evaluate combines the subject's active policy with the current period's
// spend. Returns (nil, nil) when the subject has no active policy or its
// alerts are disabled; the alerting path simply skips such subjects.
func (e *Evaluator) Evaluate(ctx context.Context, subjectID string) (*BudgetStatus, error) {
	now := e.now().UTC()

	active, err := e.policies.Active(ctx, subjectID, now)
	if err != nil {
		return nil, err
	}
	if active == nil || !active.AlertsEnabled {
		return nil, nil
	}

	period := aggregate.PeriodOf(now)
	spent, err := e.agg.PeriodTotal(ctx, subjectID, period)
	if err != nil {
		return nil, err
	}

	percent, _ := spent.Div(active.MonthlyLimit).Float64()

	return &BudgetStatus{
		SubjectID:   subjectID,
		Policy:      active,
		Period:      period,
		Spent:       spent,
		Limit:       active.MonthlyLimit,
		Remaining:   active.MonthlyLimit.Sub(spent),
		PercentUsed: percent,
		OverBudget:  percent >= 1.0,
		DaysLeft:    period.DaysLeft(now),
	}, nil
}
