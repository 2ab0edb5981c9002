// Package interval holds the half-open [start, end) time arithmetic shared by
// slot validation and conflict detection.
package interval

import "time"

// Overlaps reports whether [s1, e1) and [s2, e2) share any instant.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// DurationMinutes is the whole number of minutes between start and end,
// truncated toward zero.
func DurationMinutes(start, end time.Time) int64 {
	return int64(end.Sub(start) / time.Minute)
}

// Within reports whether [start, end) lies fully inside [from, to].
func Within(start, end, from, to time.Time) bool {
	return !start.Before(from) && !end.After(to)
}

// EndFromDuration resolves the end instant for a start plus a minute count.
func EndFromDuration(start time.Time, minutes int) time.Time {
	return start.Add(time.Duration(minutes) * time.Minute)
}
