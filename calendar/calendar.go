// Package calendar defines the event data model shared by the recurrence,
// itip, freebusy and storage packages, together with the engine-wide error
// taxonomy.
package calendar

import (
	"time"

	"github.com/samber/mo"
)

// EventStatus is the event-level status (STATUS property).
type EventStatus string

const (
	StatusConfirmed EventStatus = "CONFIRMED"
	StatusTentative EventStatus = "TENTATIVE"
	StatusCancelled EventStatus = "CANCELLED"
)

// FreeBusyStatus classifies an interval for availability purposes.
type FreeBusyStatus string

const (
	FreeBusyUnknown     FreeBusyStatus = "UNKNOWN"
	FreeBusyFree        FreeBusyStatus = "FREE"
	FreeBusyBusy        FreeBusyStatus = "BUSY"
	FreeBusyTentative   FreeBusyStatus = "TENTATIVE"
	FreeBusyOutOfOffice FreeBusyStatus = "OUT-OF-OFFICE"
)

// Weight returns the aggregation precedence of the status. Higher weights
// dominate when intervals overlap: BUSY > TENTATIVE > OUT-OF-OFFICE > FREE.
func (s FreeBusyStatus) Weight() int {
	switch s {
	case FreeBusyBusy:
		return 4
	case FreeBusyTentative:
		return 3
	case FreeBusyOutOfOffice:
		return 2
	case FreeBusyFree:
		return 1
	default:
		return 0
	}
}

// NonFree reports whether the status blocks a slot. UNKNOWN does not: a
// failed availability lookup must not veto every candidate slot.
func (s FreeBusyStatus) NonFree() bool {
	switch s {
	case FreeBusyBusy, FreeBusyTentative, FreeBusyOutOfOffice:
		return true
	default:
		return false
	}
}

// Role is an attendee's participation role.
type Role string

const (
	RoleOrganizer      Role = "ORGANIZER"
	RoleChair          Role = "CHAIR"
	RoleRequired       Role = "REQ-PARTICIPANT"
	RoleOptional       Role = "OPT-PARTICIPANT"
	RoleNonParticipant Role = "NON-PARTICIPANT"
)

// CUType is an attendee's calendar user type.
type CUType string

const (
	CUTypeIndividual CUType = "INDIVIDUAL"
	CUTypeGroup      CUType = "GROUP"
	CUTypeResource   CUType = "RESOURCE"
)

// PartStat is an attendee's participation status.
type PartStat string

const (
	PartStatNeedsAction PartStat = "NEEDS-ACTION"
	PartStatAccepted    PartStat = "ACCEPTED"
	PartStatDeclined    PartStat = "DECLINED"
	PartStatTentative   PartStat = "TENTATIVE"
	PartStatDelegated   PartStat = "DELEGATED"
)

// Method is an iTIP scheduling method.
type Method string

const (
	MethodRequest Method = "REQUEST"
	MethodReply   Method = "REPLY"
	MethodCancel  Method = "CANCEL"
)

// Frequency is a recurrence frequency.
type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
	FreqHourly  Frequency = "HOURLY"
)

// Attendee is one participant of an event, identified by email.
type Attendee struct {
	Email         string
	Name          string
	Role          Role
	CUType        CUType
	Status        PartStat
	RSVP          bool
	NoReply       bool // suppress scheduling messages to this attendee
	DelegatedTo   string
	DelegatedFrom string
}

// RecurrenceRule is a structured recurrence definition. Count and Until are
// mutually exclusive.
type RecurrenceRule struct {
	Freq       Frequency
	Interval   int
	Count      mo.Option[int]
	Until      mo.Option[time.Time]
	ByDay      []string // weekday codes, optionally prefixed: "MO", "2TU", "-1FR"
	ByMonth    []int
	ByMonthDay []int
	BySetPos   []int
	WeekStart  string
}

// Exception overrides one occurrence of a recurring event, keyed in the
// master's Exceptions map by the occurrence's original date key. When
// ThisAndFuture is set the override also applies to all later occurrences
// until a more recent this-and-future override supersedes it.
type Exception struct {
	Override      *Event
	ThisAndFuture bool
}

// Event is the master calendar record.
type Event struct {
	UID         string
	Sequence    int
	Changed     time.Time
	Start       time.Time
	End         time.Time
	AllDay      bool
	Status      EventStatus
	FreeBusy    FreeBusyStatus
	Summary     string
	Location    string
	Description string
	Categories  []string
	Organizer   *Attendee
	Attendees   []Attendee
	Recurrence  *RecurrenceRule
	Exceptions  map[string]Exception
	ExDates     []time.Time
}

// Instance is one materialized occurrence of an event. RecurrenceID is the
// master's UID; InstanceID is the occurrence's original date key and never
// changes when the occurrence is moved by an override.
type Instance struct {
	Event
	RecurrenceID string
	InstanceID   string
	IsException  bool
}

// SchedulingMessage is an outbound or inbound iTIP message. It is built per
// mutation and never persisted.
type SchedulingMessage struct {
	Method     Method
	Event      *Event
	InstanceID string // set when the message targets a single occurrence
	Comment    string
	Recipients []Attendee
}

// FreeBusyInterval is one availability interval reported for an attendee.
type FreeBusyInterval struct {
	Start  time.Time
	End    time.Time
	Status FreeBusyStatus
}

// Overlaps reports whether the interval intersects [start, end).
func (i FreeBusyInterval) Overlaps(start, end time.Time) bool {
	return i.Start.Before(end) && i.End.After(start)
}
