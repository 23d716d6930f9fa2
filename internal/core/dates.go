package core

import "time"

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// ClampedDate builds midnight of (year, month, day) in loc. Month overflow
// rolls the year; a day past the end of the month clamps to its last day.
func ClampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	y, m := first.Year(), first.Month()
	if last := DaysIn(y, m, loc); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddMonths moves t by n calendar months, keeping the time of day and
// clamping the day to the end of the target month (Jan 31 + 1 = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	c := ClampedDate(y, m+time.Month(n), d, t.Location())
	return time.Date(c.Year(), c.Month(), c.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
