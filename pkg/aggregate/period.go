package aggregate

import (
	"encoding/json"
	"fmt"
	"time"
)

// Period identifies a calendar month, the billing period unit.
// Its string form is "YYYY-MM".
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses a "YYYY-MM" period string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q (want YYYY-MM): %w", s, err)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodOf returns the period containing the given time, in UTC.
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// String returns the canonical "YYYY-MM" form.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MarshalJSON encodes the period in its "YYYY-MM" form.
func (p Period) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", p.String())), nil
}

// UnmarshalJSON decodes a "YYYY-MM" period string.
func (p *Period) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Start returns the first instant of the period (UTC midnight, day 1).
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following period. The period covers
// [Start, End).
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	return int(p.End().Sub(p.Start()).Hours() / 24)
}

// Next returns the following period.
func (p Period) Next() Period {
	return PeriodOf(p.End())
}

// Prev returns the preceding period.
func (p Period) Prev() Period {
	return PeriodOf(p.Start().AddDate(0, 0, -1))
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start()) && t.Before(p.End())
}

// DaysLeft returns the number of whole days remaining in the period as of
// now, counting today. Returns 0 when now is outside the period.
func (p Period) DaysLeft(now time.Time) int {
	now = now.UTC()
	if !p.Contains(now) {
		return 0
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(p.End().Sub(today).Hours() / 24)
}
