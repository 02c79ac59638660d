package aggregate

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceCost is one row of a per-service breakdown.
type ServiceCost struct {
	// Service is the provider service name.
	Service string `json:"service"`

	// Total is the summed spend for the service over the period.
	Total decimal.Decimal `json:"total"`

	// ResourceCount is the number of distinct resources billed under the
	// service in the period.
	ResourceCount int `json:"resource_count"`
}

// DailyCost is one point of a daily trend: the summed spend for one day.
// Days without any records are absent; callers handle gaps explicitly.
type DailyCost struct {
	Date  time.Time       `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// Driver is one of the top cost-driving resources in a period.
type Driver struct {
	ResourceID string          `json:"resource_id"`
	Service    string          `json:"service"`
	Total      decimal.Decimal `json:"total"`
}

// PeriodCost is the total spend for one calendar period.
type PeriodCost struct {
	Period Period          `json:"period"`
	Total  decimal.Decimal `json:"total"`
}

// Summary bundles the aggregates for one subject and period. Report
// renderers and the API consume this as a single unit.
type Summary struct {
	SubjectID string          `json:"subject_id"`
	Period    Period          `json:"period"`
	Total     decimal.Decimal `json:"total"`
	Breakdown []ServiceCost   `json:"breakdown"`
	Drivers   []Driver        `json:"top_drivers"`
}
