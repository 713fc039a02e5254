package itip

import (
	"github.com/pverga/libitip/calendar"
)

// newerOrEqual implements the (sequence, changed) ordering guard used to
// reject stale inbound messages.
func newerOrEqual(in, stored *calendar.Event) bool {
	if in.Sequence != stored.Sequence {
		return in.Sequence > stored.Sequence
	}
	return !in.Changed.Before(stored.Changed)
}

// ApplyReply applies an inbound REPLY to the organizer's stored copy. The
// reply snapshot carries the replying attendee (and, for delegation, the
// delegatee entry). The stored event is modified in place on success.
func ApplyReply(stored *calendar.Event, reply *calendar.SchedulingMessage) error {
	if reply == nil || reply.Event == nil {
		return calendar.NewError(calendar.KindValidation, "reply has no event snapshot")
	}
	in := reply.Event
	if !newerOrEqual(in, stored) {
		return calendar.NewError(calendar.KindStaleWrite,
			"reply for %s carries sequence %d/%s older than stored %d/%s",
			stored.UID, in.Sequence, in.Changed, stored.Sequence, stored.Changed)
	}

	applied := false
	for _, ra := range in.Attendees {
		if ra.Role == calendar.RoleOrganizer {
			continue
		}
		i := stored.FindAttendee(ra.Email)
		if i < 0 {
			// Delegatee entries arrive attached to the delegator's reply.
			if ra.DelegatedFrom != "" {
				stored.Attendees = append(stored.Attendees, ra)
				applied = true
			}
			continue
		}
		a := &stored.Attendees[i]
		a.Status = ra.Status
		a.RSVP = ra.RSVP
		if ra.Status == calendar.PartStatDelegated {
			a.DelegatedTo = ra.DelegatedTo
		}
		// A delegatee declining re-opens the loop with the delegator.
		if ra.Status == calendar.PartStatDeclined && a.DelegatedFrom != "" {
			if j := stored.FindAttendee(a.DelegatedFrom); j >= 0 {
				stored.Attendees[j].RSVP = true
			}
		}
		applied = true
	}
	if !applied {
		return calendar.NewError(calendar.KindValidation,
			"reply for %s matches no stored attendee", stored.UID)
	}
	return nil
}

// ImportOptions tunes inbound REQUEST/CANCEL processing.
type ImportOptions struct {
	// DefaultStatus is the participation status given to the acting user
	// when a REQUEST creates a fresh local copy. Defaults to NEEDS-ACTION.
	DefaultStatus calendar.PartStat
}

// ImportInbound applies an inbound REQUEST or CANCEL to the attendee's
// local copy. A nil local copy creates one. An existing copy is updated
// only when the inbound message passes the (sequence, changed) guard, and
// the acting user's own recorded participation is never overwritten by the
// organizer's snapshot.
func ImportInbound(local *calendar.Event, msg *calendar.SchedulingMessage, acting Identity, opts ImportOptions) (*calendar.Event, error) {
	if msg == nil || msg.Event == nil {
		return nil, calendar.NewError(calendar.KindValidation, "inbound message has no event snapshot")
	}
	if msg.Method != calendar.MethodRequest && msg.Method != calendar.MethodCancel {
		return nil, calendar.NewError(calendar.KindValidation,
			"method %s cannot be imported", msg.Method)
	}
	in := msg.Event

	if local == nil {
		out := in.Clone()
		status := opts.DefaultStatus
		if status == "" {
			status = calendar.PartStatNeedsAction
		}
		for i := range out.Attendees {
			a := &out.Attendees[i]
			if acting.Is(a.Email) && a.Role != calendar.RoleOrganizer {
				if a.Status == "" || a.Status == calendar.PartStatNeedsAction {
					a.Status = status
				}
			}
		}
		if msg.Method == calendar.MethodCancel {
			out.Status = calendar.StatusCancelled
			out.FreeBusy = calendar.FreeBusyFree
		}
		return out, nil
	}

	if !newerOrEqual(in, local) {
		return nil, calendar.NewError(calendar.KindStaleWrite,
			"inbound %s for %s carries sequence %d/%s older than stored %d/%s",
			msg.Method, local.UID, in.Sequence, in.Changed, local.Sequence, local.Changed)
	}

	out := in.Clone()
	// Preserve the local identity's own reply: an update from the
	// organizer must not silently reset what we already answered.
	for i := range out.Attendees {
		a := &out.Attendees[i]
		if !acting.Is(a.Email) || a.Role == calendar.RoleOrganizer {
			continue
		}
		if j := local.FindAttendee(a.Email); j >= 0 {
			prev := local.Attendees[j]
			if prev.Status != "" && prev.Status != calendar.PartStatNeedsAction {
				a.Status = prev.Status
				a.RSVP = prev.RSVP
			}
		}
	}
	out.DedupAttendees()

	if msg.Method == calendar.MethodCancel {
		out.Status = calendar.StatusCancelled
		out.FreeBusy = calendar.FreeBusyFree
	}
	return out, nil
}
