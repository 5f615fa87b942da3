package reminder

import "time"

// civilDate returns midnight UTC of t's calendar date as seen in loc.
// Comparing civil dates in UTC keeps day differences exact across DST changes.
func civilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the number of calendar days from now to target in loc.
// It is negative when target lies in the past.
func DaysUntil(target, now time.Time, loc *time.Location) int {
	return int(civilDate(target, loc).Sub(civilDate(now, loc)).Hours() / 24)
}

// AddDays adds n calendar days to t.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}
