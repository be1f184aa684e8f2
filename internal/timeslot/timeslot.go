// Package timeslot holds the time-of-day and calendar arithmetic shared by
// the conflict checker, the price calculator and the occupancy aggregator.
// Times of day are integer minutes since midnight.
package timeslot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MinutesPerHour = 60
	MinutesPerDay  = 24 * MinutesPerHour

	// DateLayout is the wire and storage format of calendar dates.
	DateLayout = "2006-01-02"

	// MaxRangeDays bounds the number of dates any single range expansion yields.
	MaxRangeDays = 365
)

// Overlaps reports whether [start1, end1) and [start2, end2) share any
// minute. Touching endpoints do not overlap.
func Overlaps(start1, end1, start2, end2 int) bool {
	return start1 < end2 && end1 > start2
}

// ParseClock converts "HH:MM" (or "HH:MM:SS") into minutes since midnight.
// "24:00" is accepted as the end of the day.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return h*MinutesPerHour + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/MinutesPerHour, minutes%MinutesPerHour)
}

// Range is a half-open time-of-day interval in minutes.
type Range struct {
	Start int
	End   int
}

// ParseRange parses a start/end pair and checks that end is after start.
func ParseRange(start, end string) (Range, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Range{}, err
	}
	if e <= s {
		return Range{}, fmt.Errorf("end time %s must be after start time %s", end, start)
	}
	return Range{Start: s, End: e}, nil
}

func (r Range) Minutes() int { return r.End - r.Start }

func (r Range) Overlaps(o Range) bool { return Overlaps(r.Start, r.End, o.Start, o.End) }

func (r Range) String() string {
	return FormatClock(r.Start) + "-" + FormatClock(r.End)
}

// FullDay covers a whole calendar date.
var FullDay = Range{Start: 0, End: MinutesPerDay}

// ParseDate parses a YYYY-MM-DD date into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// DaysInclusive counts calendar dates from start to end, both included.
// It returns 0 when end precedes start.
func DaysInclusive(start, end time.Time) int {
	s, e := Day(start), Day(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// ExpandDates lists every date from start to end inclusive, stopping after
// limit dates. A non-positive limit means MaxRangeDays.
func ExpandDates(start, end time.Time, limit int) []time.Time {
	if limit <= 0 {
		limit = MaxRangeDays
	}
	var out []time.Time
	for d := Day(start); !d.After(Day(end)) && len(out) < limit; d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// AddMonthsClamped adds n calendar months, clamping the day to the last day
// of the target month instead of rolling over (Jan 31 + 1 month = Feb 28/29).
func AddMonthsClamped(t time.Time, n int) time.Time {
	t = Day(t)
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := LastDayOfMonth(first).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// SlidingMonthEnd is the last date of a one-month rental starting at start.
func SlidingMonthEnd(start time.Time) time.Time {
	return AddMonthsClamped(start, 1).AddDate(0, 0, -1)
}

func LastDayOfMonth(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1)
}

// MonthsSpanned counts the calendar months touched by [start, end].
func MonthsSpanned(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
}
