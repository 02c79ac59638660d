package aggregate

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/callisto/pkg/ledger"
	"mercator-hq/callisto/pkg/ledger/storage"
)

// Engine computes aggregates over the cost ledger. It holds no state of its
// own; every query reads the ledger on demand.
type Engine struct {
	store storage.Backend

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewEngine creates an aggregation engine over the given ledger backend.
func NewEngine(store storage.Backend) *Engine {
	return &Engine{
		store: store,
		now:   time.Now,
	}
}

// WithClock overrides the engine's clock. For tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// PeriodTotal returns the subject's total spend for the period.
// A subject with no records yields zero, not an error.
func (e *Engine) PeriodTotal(ctx context.Context, subjectID string, period Period) (decimal.Decimal, error) {
	records, err := e.store.QueryRange(ctx, subjectID, period.Start(), period.End())
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, record := range records {
		total = total.Add(record.Amount)
	}
	return total, nil
}

// BreakdownByService returns per-service totals and distinct-resource
// counts for the period, ordered by total descending. Ties are broken by
// service name ascending so the order is deterministic.
func (e *Engine) BreakdownByService(ctx context.Context, subjectID string, period Period) ([]ServiceCost, error) {
	records, err := e.store.QueryRange(ctx, subjectID, period.Start(), period.End())
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	resources := make(map[string]map[string]bool)
	for _, record := range records {
		totals[record.Service] = totals[record.Service].Add(record.Amount)
		if resources[record.Service] == nil {
			resources[record.Service] = make(map[string]bool)
		}
		resources[record.Service][record.ResourceID] = true
	}

	breakdown := make([]ServiceCost, 0, len(totals))
	for service, total := range totals {
		breakdown = append(breakdown, ServiceCost{
			Service:       service,
			Total:         total,
			ResourceCount: len(resources[service]),
		})
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if !breakdown[i].Total.Equal(breakdown[j].Total) {
			return breakdown[i].Total.GreaterThan(breakdown[j].Total)
		}
		return breakdown[i].Service < breakdown[j].Service
	})

	return breakdown, nil
}

// DailyTrend returns one (date, total) entry per day that has at least one
// record in [from, to), ordered by date. Gap days are not zero-filled.
func (e *Engine) DailyTrend(ctx context.Context, subjectID string, from, to time.Time) ([]DailyCost, error) {
	records, err := e.store.QueryRange(ctx, subjectID, from, to)
	if err != nil {
		return nil, err
	}

	totals := make(map[time.Time]decimal.Decimal)
	for _, record := range records {
		day := ledger.TruncateDay(record.UsageDate)
		totals[day] = totals[day].Add(record.Amount)
	}

	trend := make([]DailyCost, 0, len(totals))
	for day, total := range totals {
		trend = append(trend, DailyCost{Date: day, Total: total})
	}
	sort.Slice(trend, func(i, j int) bool {
		return trend[i].Date.Before(trend[j].Date)
	})

	return trend, nil
}

// TopDrivers returns the limit highest-cost (resource, service, total)
// tuples for the period. Ties are broken by resource id ascending.
func (e *Engine) TopDrivers(ctx context.Context, subjectID string, period Period, limit int) ([]Driver, error) {
	records, err := e.store.QueryRange(ctx, subjectID, period.Start(), period.End())
	if err != nil {
		return nil, err
	}

	type key struct{ resource, service string }
	totals := make(map[key]decimal.Decimal)
	for _, record := range records {
		k := key{record.ResourceID, record.Service}
		totals[k] = totals[k].Add(record.Amount)
	}

	drivers := make([]Driver, 0, len(totals))
	for k, total := range totals {
		drivers = append(drivers, Driver{ResourceID: k.resource, Service: k.service, Total: total})
	}
	sort.Slice(drivers, func(i, j int) bool {
		if !drivers[i].Total.Equal(drivers[j].Total) {
			return drivers[i].Total.GreaterThan(drivers[j].Total)
		}
		return drivers[i].ResourceID < drivers[j].ResourceID
	})

	if limit > 0 && len(drivers) > limit {
		drivers = drivers[:limit]
	}
	return drivers, nil
}

// MonthlyTrend returns period totals for the trailing monthsBack periods
// including the current one, oldest first.
func (e *Engine) MonthlyTrend(ctx context.Context, subjectID string, monthsBack int) ([]PeriodCost, error) {
	if monthsBack < 1 {
		monthsBack = 1
	}

	current := PeriodOf(e.now())
	periods := make([]Period, monthsBack)
	p := current
	for i := monthsBack - 1; i >= 0; i-- {
		periods[i] = p
		p = p.Prev()
	}

	trend := make([]PeriodCost, 0, monthsBack)
	for _, period := range periods {
		total, err := e.PeriodTotal(ctx, subjectID, period)
		if err != nil {
			return nil, err
		}
		trend = append(trend, PeriodCost{Period: period, Total: total})
	}
	return trend, nil
}

// Summary bundles total, breakdown, and top drivers for one period.
func (e *Engine) Summary(ctx context.Context, subjectID string, period Period, driverLimit int) (*Summary, error) {
	total, err := e.PeriodTotal(ctx, subjectID, period)
	if err != nil {
		return nil, err
	}
	breakdown, err := e.BreakdownByService(ctx, subjectID, period)
	if err != nil {
		return nil, err
	}
	drivers, err := e.TopDrivers(ctx, subjectID, period, driverLimit)
	if err != nil {
		return nil, err
	}

	return &Summary{
		SubjectID: subjectID,
		Period:    period,
		Total:     total,
		Breakdown: breakdown,
		Drivers:   drivers,
	}, nil
}
