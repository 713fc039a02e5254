package recurrence

import (
	"time"
)

// Occurrence is one candidate (start, end) pair produced by the iterator,
// before exceptions and exclusions are applied.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// ResolveOptions controls instance resolution.
type ResolveOptions struct {
	// WantedInstanceID, when set, makes Resolve return as soon as the
	// matching instance is found instead of exhausting the window.
	WantedInstanceID string

	// Limit stops resolution once that many instances have been produced.
	// Zero means no limit.
	Limit int
}

// Overlaps reports whether the occurrence intersects [start, end).
func (o Occurrence) Overlaps(start, end time.Time) bool {
	return o.Start.Before(end) && o.End.After(start)
}
