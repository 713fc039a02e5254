package itip

import (
	"time"

	"github.com/google/uuid"

	"github.com/pverga/libitip/calendar"
	"github.com/pverga/libitip/internal/dateutil"
)

// CreateOptions tunes event creation.
type CreateOptions struct {
	// SuppressRSVP leaves attendees' RSVP flags off instead of requesting
	// replies.
	SuppressRSVP bool
}

// PrepareCreate initializes a freshly created event: assigns a UID when
// missing, implies the organizer from the acting identity when the attendee
// list has none, and puts every other attendee into NEEDS-ACTION.
func PrepareCreate(ev *calendar.Event, acting Identity, opts CreateOptions) error {
	if ev.UID == "" {
		ev.UID = uuid.NewString()
	}
	ev.DedupAttendees()

	if len(ev.Attendees) > 0 && ev.Organizer == nil {
		hasOrganizerRole := false
		for i := range ev.Attendees {
			if ev.Attendees[i].Role == calendar.RoleOrganizer {
				org := ev.Attendees[i]
				ev.Organizer = &org
				hasOrganizerRole = true
				break
			}
		}
		if !hasOrganizerRole {
			org := calendar.Attendee{
				Email:  acting.Email,
				Name:   acting.Name,
				Role:   calendar.RoleOrganizer,
				CUType: calendar.CUTypeIndividual,
				Status: calendar.PartStatAccepted,
			}
			ev.Organizer = &org
			ev.Attendees = append([]calendar.Attendee{org}, ev.Attendees...)
		}
	}

	for i := range ev.Attendees {
		a := &ev.Attendees[i]
		if a.Role == calendar.RoleOrganizer {
			continue
		}
		if a.Status == "" {
			a.Status = calendar.PartStatNeedsAction
		}
		if a.Status == calendar.PartStatNeedsAction {
			a.RSVP = !opts.SuppressRSVP
		}
		if a.CUType == "" {
			a.CUType = calendar.CUTypeIndividual
		}
		if a.Role == "" {
			a.Role = calendar.RoleRequired
		}
	}

	if ev.Status == "" {
		ev.Status = calendar.StatusConfirmed
	}
	if ev.Sequence == 0 {
		ev.Sequence = 1
	}
	ev.Changed = time.Now().UTC()
	return ev.Validate()
}

// BumpSequence marks an organizer-initiated change.
func BumpSequence(ev *calendar.Event, now time.Time) {
	ev.Sequence++
	ev.Changed = now.UTC()
}

// BuildMessages computes the scheduling messages a mutation produces: a
// CANCEL to every attendee dropped from the list (or all of them on
// remove), and a REQUEST to every attendee still on it. The acting
// identity never receives a message, and under NotifyAttendeeOptOut
// attendees flagged NoReply are skipped too.
func BuildMessages(action Action, old, new *calendar.Event, acting Identity, policy NotifyPolicy, comment string) []calendar.SchedulingMessage {
	if policy&NotifyOrganizerChanges == 0 {
		return nil
	}

	var messages []calendar.SchedulingMessage

	canceled := removedAttendees(old, new, action)
	canceled = filterRecipients(canceled, acting, policy)
	if len(canceled) > 0 {
		snapshot := old
		if snapshot == nil {
			snapshot = new
		}
		cancelEv := snapshot.Clone()
		cancelEv.Status = calendar.StatusCancelled
		messages = append(messages, calendar.SchedulingMessage{
			Method:     calendar.MethodCancel,
			Event:      cancelEv,
			Comment:    comment,
			Recipients: canceled,
		})
	}

	if action != ActionRemove && new != nil {
		requested := filterRecipients(nonOrganizerAttendees(new), acting, policy)
		if len(requested) > 0 {
			messages = append(messages, calendar.SchedulingMessage{
				Method:     calendar.MethodRequest,
				Event:      new.Clone(),
				Comment:    comment,
				Recipients: requested,
			})
		}
	}
	return messages
}

func nonOrganizerAttendees(ev *calendar.Event) []calendar.Attendee {
	var out []calendar.Attendee
	for _, a := range ev.Attendees {
		if a.Role == calendar.RoleOrganizer {
			continue
		}
		out = append(out, a)
	}
	return out
}

// removedAttendees returns the attendees entitled to a CANCEL: everyone on
// remove, otherwise those present in old but gone from new.
func removedAttendees(old, new *calendar.Event, action Action) []calendar.Attendee {
	if old == nil {
		return nil
	}
	if action == ActionRemove {
		return nonOrganizerAttendees(old)
	}
	var out []calendar.Attendee
	for _, a := range old.Attendees {
		if a.Role == calendar.RoleOrganizer {
			continue
		}
		if new == nil || new.FindAttendee(a.Email) < 0 {
			out = append(out, a)
		}
	}
	return out
}

func filterRecipients(attendees []calendar.Attendee, acting Identity, policy NotifyPolicy) []calendar.Attendee {
	var out []calendar.Attendee
	for _, a := range attendees {
		if acting.Is(a.Email) {
			continue
		}
		if a.NoReply && policy&NotifyAttendeeOptOut != 0 {
			continue
		}
		out = append(out, a)
	}
	return out
}

// MaterializeOverride records a change to a single occurrence (or, with
// thisAndFuture, to an occurrence and everything after it) as an exception
// on the master. The exception key is the occurrence's original date key
// and survives any later move of the occurrence.
func MaterializeOverride(master *calendar.Event, instanceID string, override *calendar.Event, thisAndFuture bool) error {
	if !master.IsRecurring() {
		return calendar.NewError(calendar.KindValidation,
			"event %s is not recurring, instance %s cannot be overridden", master.UID, instanceID)
	}
	if instanceID == "" {
		return calendar.NewError(calendar.KindValidation, "missing instance identifier")
	}
	if _, err := dateutil.ParseKey(instanceID, master.Start.Location()); err != nil {
		return calendar.WrapError(calendar.KindValidation, err,
			"bad instance identifier %q", instanceID)
	}
	if master.Exceptions == nil {
		master.Exceptions = make(map[string]calendar.Exception)
	}
	master.Exceptions[instanceID] = calendar.Exception{
		Override:      override.Clone(),
		ThisAndFuture: thisAndFuture,
	}
	return nil
}
