// Package derive computes presentation values from journal data.
// Everything here is pure: no state, no I/O.
package derive

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/fitsync/internal/model"
)

// DateLayout is the calendar date format used by the store and the CLI.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// civilDay returns the number of days since 1970-01-01 for the calendar
// date of t, read in t's own location. Hours never enter the arithmetic,
// so DST transitions cannot shift the result.
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// ComputeStreak returns the length of the run of consecutive calendar days
// that ends at today or yesterday. A run whose most recent day is older
// than yesterday is broken and counts as 0.
func ComputeStreak(dates []time.Time, today time.Time) int {
	if len(dates) == 0 {
		return 0
	}

	seen := make(map[int64]struct{}, len(dates))
	days := make([]int64, 0, len(dates))
	for _, d := range dates {
		n := civilDay(d)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		days = append(days, n)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })

	t := civilDay(today)
	if days[0] != t && days[0] != t-1 {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i-1]-days[i] != 1 {
			break
		}
		streak++
	}
	return streak
}

// StreakFromSessions computes the streak over the sessions' dates.
func StreakFromSessions(sessions []model.Session, today time.Time) int {
	dates := make([]time.Time, len(sessions))
	for i, s := range sessions {
		dates[i] = s.Date
	}
	return ComputeStreak(dates, today)
}
