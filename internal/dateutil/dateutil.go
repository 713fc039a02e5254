// Package dateutil provides date-level helpers shared by the recurrence
// and free/busy packages.
package dateutil

import "time"

const (
	// KeyDateLayout is the layout for date-only occurrence keys.
	KeyDateLayout = "20060102"
	// KeyDateTimeLayout is the layout for timed occurrence keys.
	KeyDateTimeLayout = "20060102T150405"
)

// Key returns the deterministic identifier for an occurrence starting at t.
// All-day occurrences are keyed by date only; timed ones by local date-time.
func Key(t time.Time, allday bool) string {
	if allday {
		return t.Format(KeyDateLayout)
	}
	return t.Format(KeyDateTimeLayout)
}

// ParseKey parses an occurrence key produced by Key in the given location.
func ParseKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if len(key) == len(KeyDateLayout) {
		return time.ParseInLocation(KeyDateLayout, key, loc)
	}
	return time.ParseInLocation(KeyDateTimeLayout, key, loc)
}

// SameDate reports whether a and b fall on the same calendar date,
// ignoring time of day. Both are compared in a's location.
func SameDate(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay returns midnight of t's date in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsAllDaySpan reports whether the interval [start, end] spans exactly one
// or more whole UTC days, i.e. runs from 00:00:00 to 23:59:59.
func IsAllDaySpan(start, end time.Time) bool {
	s := start.UTC()
	e := end.UTC()
	if s.Hour() != 0 || s.Minute() != 0 || s.Second() != 0 {
		return false
	}
	return e.Hour() == 23 && e.Minute() == 59 && e.Second() == 59
}
