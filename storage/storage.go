// Package storage defines the event persistence interface the scheduling
// engine depends on, together with the query shape shared by its backends.
package storage

import (
	"context"
	"time"

	"github.com/pverga/libitip/calendar"
)

// Query filters a window scan over stored events.
type Query struct {
	// Start and End bound the window. Zero values leave that side open.
	// Recurring masters anchored before the window are still returned, as
	// their occurrences may fall inside it.
	Start time.Time
	End   time.Time

	// Attendee, when set, restricts results to events listing this email.
	Attendee string

	// IncludeCancelled keeps CANCELLED events in the result.
	IncludeCancelled bool
}

// EventStore is the persistence collaborator. Writes are guarded by an
// optimistic compare-and-swap on the stored sequence number.
type EventStore interface {
	// Get returns the event with the given UID, or a NotFound error.
	Get(ctx context.Context, uid string) (*calendar.Event, error)

	// PutIfSequence stores the event if the currently stored sequence
	// equals expectedSequence. expectedSequence zero requires the UID to be
	// absent. A losing writer receives a StaleWrite error and the store is
	// left unchanged.
	PutIfSequence(ctx context.Context, ev *calendar.Event, expectedSequence int) error

	// Delete removes the event. Missing UIDs yield a NotFound error.
	Delete(ctx context.Context, uid string) error

	// Query returns the events matching q, ordered by start time.
	Query(ctx context.Context, q Query) ([]*calendar.Event, error)
}

// Matches reports whether the event satisfies the query filters. Backends
// without native filtering use it for post-filtering.
func (q Query) Matches(ev *calendar.Event) bool {
	if !q.IncludeCancelled && ev.Status == calendar.StatusCancelled {
		return false
	}
	if q.Attendee != "" {
		found := ev.FindAttendee(q.Attendee) >= 0
		if !found && ev.Organizer != nil && calendar.EmailEqual(ev.Organizer.Email, q.Attendee) {
			found = true
		}
		if !found {
			return false
		}
	}
	if !q.End.IsZero() && !ev.Start.Before(q.End) {
		return false
	}
	if !q.Start.IsZero() && !ev.End.After(q.Start) && !ev.IsRecurring() {
		return false
	}
	return true
}
