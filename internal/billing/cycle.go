// Package billing computes credit-card statement cycles.
//
// A card charge belongs to the statement that is due in a given month. The
// statement covers the half-open window between two consecutive closing
// dates, which rarely lines up with a calendar month.
package billing

import (
	"fmt"
	"time"

	"lovemoney/internal/core"
)

// Cycle is the statement window [Start, End).
type Cycle struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in [Start, End).
func (c Cycle) Contains(t time.Time) bool {
	return !t.Before(c.Start) && t.Before(c.End)
}

// LastDay is the inclusive last day of the cycle, for display.
func (c Cycle) LastDay() time.Time {
	return c.End.AddDate(0, 0, -1)
}

// Days is the number of calendar days in the cycle.
func (c Cycle) Days() int {
	s := time.Date(c.Start.Year(), c.Start.Month(), c.Start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(c.End.Year(), c.End.Month(), c.End.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}

// CycleFor returns the statement window whose bill is due in month/year.
//
// When closingDay >= dueDay the statement closed in the month before the due
// month, otherwise it closed in the due month itself. End is that closing
// date and Start is the closing date one month earlier, both at midnight in
// loc. Days past the end of a month clamp to its last day.
func CycleFor(year int, month time.Month, closingDay, dueDay int, loc *time.Location) (Cycle, error) {
	if closingDay < 1 || closingDay > 31 {
		return Cycle{}, fmt.Errorf("closing day %d: %w", closingDay, core.ErrInvalidDay)
	}
	if dueDay < 1 || dueDay > 31 {
		return Cycle{}, fmt.Errorf("due day %d: %w", dueDay, core.ErrInvalidDay)
	}
	if month < time.January || month > time.December {
		return Cycle{}, fmt.Errorf("month %d: %w", month, core.ErrInvalidMonth)
	}
	if loc == nil {
		loc = time.UTC
	}

	closingMonth := month
	if closingDay >= dueDay {
		closingMonth--
	}

	end := core.ClampedDate(year, closingMonth, closingDay, loc)
	start := core.ClampedDate(end.Year(), end.Month()-1, closingDay, loc)
	return Cycle{Start: start, End: end}, nil
}

// CardCycle is CycleFor with the card's own days.
func CardCycle(card core.Card, year int, month time.Month, loc *time.Location) (Cycle, error) {
	if !card.HasCycle() {
		return Cycle{}, fmt.Errorf("card %s has no closing or due day: %w", card.ID, core.ErrInvalidDay)
	}
	return CycleFor(year, month, card.ClosingDay, card.DueDay, loc)
}
