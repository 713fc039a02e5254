package itip

import (
	"github.com/pverga/libitip/calendar"
	"github.com/pverga/libitip/internal/dateutil"
)

// IsReschedule reports whether the change from old to new touches the
// scheduling-relevant property set {start, end, location, recurrence}.
// For all-day events only the calendar dates are compared. The recurrence
// comparison ignores the exception subtree, and a rule that is merely
// shortened does not count as a reschedule.
func IsReschedule(old, new *calendar.Event) bool {
	if old == nil || new == nil {
		return false
	}
	if !sameWhen(old, new) {
		return true
	}
	if old.Location != new.Location {
		return true
	}
	return recurrenceRescheduled(old.Recurrence, new.Recurrence)
}

func sameWhen(old, new *calendar.Event) bool {
	if old.AllDay != new.AllDay {
		return false
	}
	if old.AllDay && new.AllDay {
		return dateutil.SameDate(old.Start, new.Start) && dateutil.SameDate(old.End, new.End)
	}
	return old.Start.Equal(new.Start) && old.End.Equal(new.End)
}

func recurrenceRescheduled(old, new *calendar.RecurrenceRule) bool {
	switch {
	case old == nil && new == nil:
		return false
	case old == nil, new == nil:
		return true
	}
	return !old.Shortens(new)
}

// ResetParticipation puts every replying attendee back to NEEDS-ACTION with
// an open RSVP. Organizer, non-participants and delegating attendees keep
// their state.
func ResetParticipation(ev *calendar.Event) {
	for i := range ev.Attendees {
		a := &ev.Attendees[i]
		if a.Role == calendar.RoleOrganizer || a.Role == calendar.RoleNonParticipant {
			continue
		}
		if a.Status == calendar.PartStatDelegated {
			continue
		}
		a.Status = calendar.PartStatNeedsAction
		a.RSVP = true
	}
}
