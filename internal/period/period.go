// Package period decides which records count toward a month.
//
// A Period is a calendar month in a fixed location. Records are tested
// against it with a rule chosen by record kind: calendar-dated kinds use the
// month itself, card charges use their card's statement cycle, and
// subscriptions use the recurring-or-cancelled-after-start rule.
package period

import (
	"fmt"
	"time"

	"lovemoney/internal/core"
)

// LaunchYear is the earliest year a period can be selected for.
const LaunchYear = 2024

const maxYear = 9999

// Period is one calendar month. Start and End are both inclusive.
type Period struct {
	Year  int
	Month time.Month
	Start time.Time
	End   time.Time
}

// Month builds the period for year/month (1-12) in loc.
func Month(year int, month time.Month, loc *time.Location) (Period, error) {
	if month < time.January || month > time.December {
		return Period{}, fmt.Errorf("month %d: %w", month, core.ErrInvalidMonth)
	}
	if year < LaunchYear || year > maxYear {
		return Period{}, fmt.Errorf("year %d must be between %d and %d: %w", year, LaunchYear, maxYear, core.ErrInvalidYear)
	}
	return monthOf(year, month, loc), nil
}

func monthOf(year int, month time.Month, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Period{
		Year:  start.Year(),
		Month: start.Month(),
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}
}

// FromIndex builds a period from a zero-based month index (0 = January).
func FromIndex(year, monthIndex int, loc *time.Location) (Period, error) {
	if monthIndex < 0 || monthIndex > 11 {
		return Period{}, fmt.Errorf("month index %d: %w", monthIndex, core.ErrInvalidMonth)
	}
	return Month(year, time.Month(monthIndex+1), loc)
}

// Current returns the period containing now.
func Current(now time.Time) Period {
	return monthOf(now.Year(), now.Month(), now.Location())
}

// Contains reports whether t is within [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Index is the zero-based month index.
func (p Period) Index() int {
	return int(p.Month) - 1
}

// Location of the period boundaries.
func (p Period) Location() *time.Location {
	return p.Start.Location()
}

// Next returns the following month.
func (p Period) Next() Period {
	return monthOf(p.Year, p.Month+1, p.Location())
}

// Prev returns the preceding month.
func (p Period) Prev() Period {
	return monthOf(p.Year, p.Month-1, p.Location())
}

// String formats the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
