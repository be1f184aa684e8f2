package timeslot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name           string
		s1, e1, s2, e2 int
		want           bool
	}{
		{"disjoint before", 600, 660, 700, 760, false},
		{"disjoint after", 700, 760, 600, 660, false},
		{"touching end to start", 600, 780, 780, 840, false},
		{"touching start to end", 780, 840, 600, 780, false},
		{"partial overlap", 600, 780, 720, 840, true},
		{"contained", 600, 900, 660, 720, true},
		{"containing", 660, 720, 600, 900, true},
		{"identical", 600, 660, 600, 660, true},
		{"one minute shared", 600, 661, 660, 720, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.s1, tt.e1, tt.s2, tt.e2))
			assert.Equal(t, tt.want, Overlaps(tt.s2, tt.e2, tt.s1, tt.e1), "overlap must be symmetric")
		})
	}
}

func TestOverlapsExhaustiveSmallGrid(t *testing.T) {
	for s1 := 0; s1 < 8; s1++ {
		for e1 := s1 + 1; e1 <= 8; e1++ {
			for s2 := 0; s2 < 8; s2++ {
				for e2 := s2 + 1; e2 <= 8; e2++ {
					shared := false
					for m := 0; m < 8; m++ {
						if m >= s1 && m < e1 && m >= s2 && m < e2 {
							shared = true
							break
						}
					}
					require.Equal(t, shared, Overlaps(s1, e1, s2, e2), "[%d,%d) vs [%d,%d)", s1, e1, s2, e2)
				}
			}
		}
	}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("10:30")
	require.NoError(t, err)
	assert.Equal(t, 630, m)

	m, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, MinutesPerDay, m)

	m, err = ParseClock("09:15:00")
	require.NoError(t, err)
	assert.Equal(t, 555, m)

	for _, bad := range []string{"", "10", "25:00", "10:60", "ab:cd", "24:30"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "07:05", FormatClock(425))
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("10:00", "13:00")
	require.NoError(t, err)
	assert.Equal(t, 180, r.Minutes())
	assert.Equal(t, "10:00-13:00", r.String())

	_, err = ParseRange("13:00", "13:00")
	assert.Error(t, err)
}

func TestCalendarHelpers(t *testing.T) {
	d := func(s string) time.Time {
		v, err := ParseDate(s)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, 1, DaysInclusive(d("2025-03-01"), d("2025-03-01")))
	assert.Equal(t, 31, DaysInclusive(d("2025-03-01"), d("2025-03-31")))
	assert.Equal(t, 0, DaysInclusive(d("2025-03-02"), d("2025-03-01")))

	assert.Equal(t, d("2025-02-28"), AddMonthsClamped(d("2025-01-31"), 1))
	assert.Equal(t, d("2025-02-14"), SlidingMonthEnd(d("2025-01-15")))
	assert.Equal(t, d("2025-02-28"), LastDayOfMonth(d("2025-02-10")))

	assert.Equal(t, 1, MonthsSpanned(d("2025-03-01"), d("2025-03-31")))
	assert.Equal(t, 3, MonthsSpanned(d("2025-11-20"), d("2026-01-05")))

	dates := ExpandDates(d("2025-01-01"), d("2027-01-01"), 0)
	assert.Len(t, dates, MaxRangeDays)
	assert.Len(t, ExpandDates(d("2025-01-01"), d("2025-01-03"), 0), 3)
}
