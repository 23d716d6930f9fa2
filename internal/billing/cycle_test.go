package billing

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"lovemoney/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCycleFor_June2024Closing10Due20(t *testing.T) {
	c, err := CycleFor(2024, time.June, 10, 20, time.UTC)
	if err != nil {
		t.Fatalf("CycleFor() error = %v", err)
	}
	if want := date(2024, time.May, 10); !c.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", c.Start, want)
	}
	if want := date(2024, time.June, 10); !c.End.Equal(want) {
		t.Errorf("End = %v, want %v", c.End, want)
	}
	if want := date(2024, time.June, 9); !c.LastDay().Equal(want) {
		t.Errorf("LastDay = %v, want %v", c.LastDay(), want)
	}
}

func TestCycleFor(t *testing.T) {
	tests := []struct {
		name    string
		year    int
		month   time.Month
		closing int
		due     int
		start   time.Time
		end     time.Time
	}{
		{"closing before due stays in month", 2024, time.March, 3, 10, date(2024, time.February, 3), date(2024, time.March, 3)},
		{"closing after due moves back", 2024, time.March, 25, 5, date(2024, time.January, 25), date(2024, time.February, 25)},
		{"closing equal due moves back", 2024, time.March, 10, 10, date(2024, time.January, 10), date(2024, time.February, 10)},
		{"january rolls to previous year", 2024, time.January, 28, 7, date(2023, time.November, 28), date(2023, time.December, 28)},
		{"january same month", 2024, time.January, 2, 9, date(2023, time.December, 2), date(2024, time.January, 2)},
		{"day 31 clamps in april", 2024, time.April, 31, 31, date(2024, time.February, 29), date(2024, time.March, 31)},
		{"day 31 clamps in february", 2023, time.March, 31, 31, date(2023, time.January, 31), date(2023, time.February, 28)},
		{"day 30 clamps start in february", 2023, time.March, 30, 31, date(2023, time.February, 28), date(2023, time.March, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := CycleFor(tt.year, tt.month, tt.closing, tt.due, time.UTC)
			if err != nil {
				t.Fatalf("CycleFor() error = %v", err)
			}
			if !c.Start.Equal(tt.start) || !c.End.Equal(tt.end) {
				t.Errorf("CycleFor() = [%v, %v), want [%v, %v)", c.Start, c.End, tt.start, tt.end)
			}
		})
	}
}

func TestCycleFor_MonthPairingAndLength(t *testing.T) {
	for _, year := range []int{2023, 2024} {
		for month := time.January; month <= time.December; month++ {
			for closing := 1; closing <= 31; closing++ {
				for due := 1; due <= 31; due++ {
					c, err := CycleFor(year, month, closing, due, time.UTC)
					if err != nil {
						t.Fatalf("CycleFor(%d,%d,%d,%d) error = %v", year, month, closing, due, err)
					}

					expected := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
					if closing >= due {
						expected = expected.AddDate(0, -1, 0)
					}
					if c.End.Year() != expected.Year() || c.End.Month() != expected.Month() {
						t.Fatalf("CycleFor(%d,%d,%d,%d) end %v not in %v", year, month, closing, due, c.End, expected)
					}

					if days := c.Days(); days < 28 || days > 31 {
						t.Fatalf("CycleFor(%d,%d,%d,%d) spans %d days", year, month, closing, due, days)
					}
					if !c.Contains(c.Start) || c.Contains(c.End) {
						t.Fatalf("cycle must be start-inclusive and end-exclusive")
					}
				}
			}
		}
	}
}

func TestCycleFor_InvalidInput(t *testing.T) {
	tests := []struct {
		closing, due int
		month        time.Month
		err          error
	}{
		{0, 10, time.June, core.ErrInvalidDay},
		{10, 0, time.June, core.ErrInvalidDay},
		{32, 10, time.June, core.ErrInvalidDay},
		{10, 20, 13, core.ErrInvalidMonth},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.closing, tt.due, tt.month), func(t *testing.T) {
			if _, err := CycleFor(2024, tt.month, tt.closing, tt.due, time.UTC); !errors.Is(err, tt.err) {
				t.Errorf("CycleFor() error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestCycleFor_Location(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	c, err := CycleFor(2024, time.June, 10, 20, loc)
	if err != nil {
		t.Fatal(err)
	}
	if c.End.Location() != loc || c.End.Hour() != 0 {
		t.Fatalf("End = %v, want midnight in BRT", c.End)
	}

	// 2024-06-10 01:00 BRT is after the close; 2024-06-09 23:59 BRT is inside.
	if c.Contains(time.Date(2024, time.June, 10, 1, 0, 0, 0, loc)) {
		t.Error("charge on closing day should fall in the next cycle")
	}
	if !c.Contains(time.Date(2024, time.June, 9, 23, 59, 0, 0, loc)) {
		t.Error("charge the day before closing should be in the cycle")
	}
}

func TestCardCycle(t *testing.T) {
	if _, err := CardCycle(core.Card{ID: "c", DueDay: 10}, 2024, time.June, time.UTC); !errors.Is(err, core.ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay for card without closing day, got %v", err)
	}
	c, err := CardCycle(core.Card{ID: "c", ClosingDay: 10, DueDay: 20}, 2024, time.June, time.UTC)
	if err != nil || !c.End.Equal(date(2024, time.June, 10)) {
		t.Fatalf("CardCycle() = %v, %v", c, err)
	}
}
