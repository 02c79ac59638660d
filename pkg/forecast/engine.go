package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/callisto/pkg/aggregate"
)

const (
	// smoothingAlpha is the exponential smoothing factor.
	smoothingAlpha = 0.3

	// movingAverageWindow is the number of trailing observed days averaged.
	movingAverageWindow = 7

	// smoothingMinPoints is the minimum series length for exponential
	// smoothing before falling back to linear extrapolation.
	smoothingMinPoints = 5

	// historicalMonths is how many trailing monthly totals the historical
	// trend method consumes.
	historicalMonths = 6

	// historicalMinMonths is the minimum usable monthly totals before the
	// historical trend method falls back to linear extrapolation.
	historicalMinMonths = 3
)

var (
	alpha         = decimal.NewFromFloat(smoothingAlpha)
	oneMinusAlpha = decimal.NewFromInt(1).Sub(alpha)
)

// Engine produces next-period forecasts from aggregation queries.
// It is stateless and side-effect free.
type Engine struct {
	agg *aggregate.Engine
	now func() time.Time
}

// NewEngine creates a forecasting engine over the given aggregation engine.
func NewEngine(agg *aggregate.Engine) *Engine {
	return &Engine{
		agg: agg,
		now: time.Now,
	}
}

// WithClock overrides the engine's clock. For tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Forecast runs a single method for the subject. The target period is the
// one following the current, in-progress period.
func (e *Engine) Forecast(ctx context.Context, subjectID string, method Method) (*Result, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("unknown forecast method %q", method)
	}

	series, current, err := e.dailySeries(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	target := current.Next()

	switch method {
	case MethodLinear:
		return e.linear(series, target), nil
	case MethodMovingAverage:
		return e.movingAverage(series, target), nil
	case MethodExponentialSmoothing:
		return e.exponentialSmoothing(series, target), nil
	case MethodHistoricalTrend:
		return e.historicalTrend(ctx, subjectID, series, target)
	}
	return nil, fmt.Errorf("unknown forecast method %q", method)
}

// Comprehensive runs all four methods and derives the consensus and the
// recommended pick.
func (e *Engine) Comprehensive(ctx context.Context, subjectID string) (*Comprehensive, error) {
	series, current, err := e.dailySeries(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	target := current.Next()

	historical, err := e.historicalTrend(ctx, subjectID, series, target)
	if err != nil {
		return nil, err
	}

	results := []*Result{
		e.linear(series, target),
		e.movingAverage(series, target),
		e.exponentialSmoothing(series, target),
		historical,
	}

	sum := decimal.Zero
	for _, r := range results {
		sum = sum.Add(r.Predicted)
	}
	consensus := sum.Div(decimal.NewFromInt(int64(len(results))))

	// Highest confidence-weight × data-point score wins; on a tie the
	// earlier-computed method keeps the recommendation.
	recommended := results[0]
	bestScore := score(results[0])
	for _, r := range results[1:] {
		if s := score(r); s > bestScore {
			recommended = r
			bestScore = s
		}
	}

	return &Comprehensive{
		SubjectID:   subjectID,
		Period:      target,
		Results:     results,
		Consensus:   consensus,
		Recommended: recommended.Method,
	}, nil
}

func score(r *Result) int {
	return r.Confidence.weight() * r.DataPoints
}

// dailySeries loads the daily totals observed so far in the current period.
func (e *Engine) dailySeries(ctx context.Context, subjectID string) ([]decimal.Decimal, aggregate.Period, error) {
	now := e.now().UTC()
	current := aggregate.PeriodOf(now)

	trend, err := e.agg.DailyTrend(ctx, subjectID, current.Start(), current.End())
	if err != nil {
		return nil, current, err
	}

	series := make([]decimal.Decimal, len(trend))
	for i, day := range trend {
		series[i] = day.Total
	}
	return series, current, nil
}

// linear extrapolates the daily average of all observed days across the
// target period. Zero observations predict zero with low confidence.
func (e *Engine) linear(series []decimal.Decimal, target aggregate.Period) *Result {
	result := &Result{
		Method:     MethodLinear,
		Period:     target,
		Predicted:  decimal.Zero,
		Confidence: ConfidenceLow,
		Trend:      TrendStable,
		DataPoints: len(series),
	}
	if len(series) == 0 {
		return result
	}

	sum := decimal.Zero
	for _, v := range series {
		sum = sum.Add(v)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(series))))

	result.DailyAverage = avg
	result.Predicted = avg.Mul(decimal.NewFromInt(int64(target.Days())))
	result.Confidence = confidenceFor(len(series))
	result.Trend = classifyTrend(series)
	return result
}

// movingAverage projects the trailing 7-day average. With fewer than 7
// observed days it degrades to linear extrapolation over the full series.
func (e *Engine) movingAverage(series []decimal.Decimal, target aggregate.Period) *Result {
	if len(series) < movingAverageWindow {
		result := e.linear(series, target)
		result.Method = MethodMovingAverage
		return result
	}

	window := series[len(series)-movingAverageWindow:]
	sum := decimal.Zero
	for _, v := range window {
		sum = sum.Add(v)
	}
	avg := sum.Div(decimal.NewFromInt(movingAverageWindow))

	return &Result{
		Method:       MethodMovingAverage,
		Period:       target,
		Predicted:    avg.Mul(decimal.NewFromInt(int64(target.Days()))),
		Confidence:   confidenceFor(len(series)),
		Trend:        classifyTrend(series),
		DailyAverage: avg,
		DataPoints:   len(series),
	}
}

// exponentialSmoothing applies α = 0.3 recursively over the ordered series,
// seeded with the first day's value. Fewer than 5 points degrades to linear
// extrapolation.
func (e *Engine) exponentialSmoothing(series []decimal.Decimal, target aggregate.Period) *Result {
	if len(series) < smoothingMinPoints {
		result := e.linear(series, target)
		result.Method = MethodExponentialSmoothing
		return result
	}

	smoothed := series[0]
	for _, v := range series[1:] {
		smoothed = v.Mul(alpha).Add(smoothed.Mul(oneMinusAlpha))
	}

	return &Result{
		Method:       MethodExponentialSmoothing,
		Period:       target,
		Predicted:    smoothed.Mul(decimal.NewFromInt(int64(target.Days()))),
		Confidence:   confidenceFor(len(series)),
		Trend:        classifyTrend(series),
		DailyAverage: smoothed,
		DataPoints:   len(series),
	}
}

// historicalTrend projects the growth rate over the trailing monthly
// totals. Months with no spend are ignored; fewer than 3 usable months
// degrades to linear extrapolation over the daily series.
func (e *Engine) historicalTrend(ctx context.Context, subjectID string, series []decimal.Decimal, target aggregate.Period) (*Result, error) {
	trend, err := e.agg.MonthlyTrend(ctx, subjectID, historicalMonths)
	if err != nil {
		return nil, err
	}

	totals := make([]decimal.Decimal, 0, len(trend))
	for _, month := range trend {
		if month.Total.IsPositive() {
			totals = append(totals, month.Total)
		}
	}

	if len(totals) < historicalMinMonths {
		result := e.linear(series, target)
		result.Method = MethodHistoricalTrend
		return result, nil
	}

	earliest := totals[0]
	latest := totals[len(totals)-1]
	months := decimal.NewFromInt(int64(len(totals)))

	growth := latest.Sub(earliest).Div(earliest)
	predicted := latest.Mul(decimal.NewFromInt(1).Add(growth.Div(months)))

	return &Result{
		Method:       MethodHistoricalTrend,
		Period:       target,
		Predicted:    predicted,
		Confidence:   confidenceFor(len(totals)),
		Trend:        classifyTrend(totals),
		DailyAverage: predicted.Div(decimal.NewFromInt(int64(target.Days()))),
		DataPoints:   len(totals),
	}, nil
}

// confidenceFor maps a sample size to a confidence tier.
func confidenceFor(points int) Confidence {
	switch {
	case points >= 20:
		return ConfidenceHigh
	case points >= 10:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// classifyTrend splits the series into halves and compares half-averages:
// more than +10% change is increasing, less than −10% decreasing, anything
// between is stable.
func classifyTrend(series []decimal.Decimal) Trend {
	if len(series) < 2 {
		return TrendStable
	}

	mid := len(series) / 2
	first := average(series[:mid])
	second := average(series[mid:])

	if first.IsZero() {
		if second.IsZero() {
			return TrendStable
		}
		return TrendIncreasing
	}

	change := second.Sub(first).Div(first)
	threshold := decimal.NewFromFloat(0.10)
	switch {
	case change.GreaterThan(threshold):
		return TrendIncreasing
	case change.LessThan(threshold.Neg()):
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func average(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}
