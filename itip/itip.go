// Package itip implements the scheduling state machine: participation
// status transitions, reschedule detection, notification recipient
// computation and processing of inbound REQUEST/REPLY/CANCEL messages.
package itip

import (
	"github.com/pverga/libitip/calendar"
)

// Action describes the mutation being applied to an event.
type Action string

const (
	ActionNew    Action = "new"
	ActionEdit   Action = "edit"
	ActionMove   Action = "move"
	ActionResize Action = "resize"
	ActionRemove Action = "remove"
)

// NotifyPolicy is the site policy bitmask for scheduling notifications.
type NotifyPolicy int

const (
	// NotifyNone suppresses all scheduling messages.
	NotifyNone NotifyPolicy = 0
	// NotifyOrganizerChanges enables messages for organizer-initiated changes.
	NotifyOrganizerChanges NotifyPolicy = 1 << iota
	// NotifyAttendeeOptOut honors a per-attendee opt-out flag.
	NotifyAttendeeOptOut
)

// Identity is the set of email addresses belonging to the acting user.
type Identity struct {
	Email  string // primary address, used when implying an organizer
	Name   string
	Emails []string // all known aliases, primary included
}

// Is reports whether the address belongs to the acting user.
func (id Identity) Is(email string) bool {
	if calendar.EmailEqual(id.Email, email) {
		return true
	}
	for _, e := range id.Emails {
		if calendar.EmailEqual(e, email) {
			return true
		}
	}
	return false
}

// IsOrganizer reports whether the acting user organizes the event. An event
// without an organizer is owned by whoever acts on it.
func (id Identity) IsOrganizer(ev *calendar.Event) bool {
	if ev.Organizer == nil {
		return true
	}
	return id.Is(ev.Organizer.Email)
}
