package forecast

import (
	"github.com/shopspring/decimal"

	"mercator-hq/callisto/pkg/aggregate"
)

// Method names a forecasting algorithm.
type Method string

const (
	// MethodLinear extrapolates the current period's daily average.
	MethodLinear Method = "linear"

	// MethodMovingAverage projects the trailing 7-day average.
	MethodMovingAverage Method = "moving_average"

	// MethodExponentialSmoothing applies exponential smoothing (α = 0.3)
	// over the daily series.
	MethodExponentialSmoothing Method = "exponential_smoothing"

	// MethodHistoricalTrend projects the growth rate of trailing monthly
	// totals.
	MethodHistoricalTrend Method = "historical_trend"
)

// Methods lists all algorithms in computation order. The order doubles as
// the tie-break for the recommended pick.
var Methods = []Method{
	MethodLinear,
	MethodMovingAverage,
	MethodExponentialSmoothing,
	MethodHistoricalTrend,
}

// Valid reports whether m names a known method.
func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// Confidence is the forecast confidence tier, derived from sample size.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// weight is the confidence weight used to score the recommended pick.
func (c Confidence) weight() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	default:
		return 1
	}
}

// Trend classifies the direction of the consumed series.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Result is one method's prediction for the target period. Results are
// never persisted; they are recomputed on every request.
type Result struct {
	// Method is the algorithm that produced the prediction.
	Method Method `json:"method"`

	// Period is the target (next) period.
	Period aggregate.Period `json:"period"`

	// Predicted is the forecast spend for the target period.
	Predicted decimal.Decimal `json:"predicted"`

	// Confidence reflects the sample size the method consumed.
	Confidence Confidence `json:"confidence"`

	// Trend classifies the direction of the consumed series.
	Trend Trend `json:"trend"`

	// DailyAverage is the per-day estimate the prediction was scaled from.
	DailyAverage decimal.Decimal `json:"daily_average"`

	// DataPoints is the number of observations consumed.
	DataPoints int `json:"data_points"`
}

// Comprehensive bundles all four methods with the consensus and the
// recommended pick.
type Comprehensive struct {
	SubjectID string           `json:"subject_id"`
	Period    aggregate.Period `json:"period"`

	// Results holds one entry per method, in computation order.
	Results []*Result `json:"results"`

	// Consensus is the arithmetic mean of the four predictions.
	Consensus decimal.Decimal `json:"consensus"`

	// Recommended names the method with the highest
	// confidence-weight × data-point score.
	Recommended Method `json:"recommended"`
}
