package itip

import (
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pverga/libitip/calendar"
)

func TestEncodeDecode_Request(t *testing.T) {
	msg := &calendar.SchedulingMessage{
		Method:  calendar.MethodRequest,
		Comment: "please confirm",
		Event: &calendar.Event{
			UID:      "planning",
			Sequence: 3,
			Changed:  time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC),
			Start:    time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC),
			End:      time.Date(2024, 2, 5, 11, 0, 0, 0, time.UTC),
			Summary:  "Planning",
			Location: "Room A",
			Status:   calendar.StatusConfirmed,
			FreeBusy: calendar.FreeBusyBusy,
			Organizer: &calendar.Attendee{
				Email: "boss@example.com", Name: "Boss", Role: calendar.RoleOrganizer,
			},
			Attendees: []calendar.Attendee{
				{
					Email:  "a@example.com",
					Name:   "Alice",
					Role:   calendar.RoleRequired,
					CUType: calendar.CUTypeIndividual,
					Status: calendar.PartStatNeedsAction,
					RSVP:   true,
				},
				{
					Email:  "room-1@example.com",
					Role:   calendar.RoleRequired,
					CUType: calendar.CUTypeResource,
					Status: calendar.PartStatAccepted,
				},
			},
			Recurrence: &calendar.RecurrenceRule{
				Freq:     calendar.FreqWeekly,
				Interval: 1,
				Count:    mo.Some(8),
				ByDay:    []string{"MO"},
			},
			ExDates: []time.Time{time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)},
		},
	}

	cal, err := Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, "REQUEST", cal.Props.Get("METHOD").Value)

	decoded, err := Decode(cal)
	require.NoError(t, err)
	assert.Equal(t, calendar.MethodRequest, decoded.Method)
	assert.Equal(t, "please confirm", decoded.Comment)

	ev := decoded.Event
	assert.Equal(t, "planning", ev.UID)
	assert.Equal(t, 3, ev.Sequence)
	assert.True(t, ev.Start.Equal(msg.Event.Start))
	assert.True(t, ev.End.Equal(msg.Event.End))
	assert.Equal(t, "Planning", ev.Summary)
	assert.Equal(t, "Room A", ev.Location)
	assert.Equal(t, calendar.StatusConfirmed, ev.Status)
	assert.Equal(t, calendar.FreeBusyBusy, ev.FreeBusy)

	require.NotNil(t, ev.Organizer)
	assert.Equal(t, "boss@example.com", ev.Organizer.Email)
	assert.Equal(t, "Boss", ev.Organizer.Name)

	require.Len(t, ev.Attendees, 2)
	alice := ev.Attendees[0]
	assert.Equal(t, "a@example.com", alice.Email)
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, calendar.PartStatNeedsAction, alice.Status)
	assert.True(t, alice.RSVP)
	assert.Equal(t, calendar.CUTypeResource, ev.Attendees[1].CUType)

	require.NotNil(t, ev.Recurrence)
	assert.Equal(t, calendar.FreqWeekly, ev.Recurrence.Freq)
	assert.Equal(t, mo.Some(8), ev.Recurrence.Count)
	assert.Equal(t, []string{"MO"}, ev.Recurrence.ByDay)

	require.Len(t, ev.ExDates, 1)
	assert.True(t, ev.ExDates[0].Equal(msg.Event.ExDates[0]))
}

func TestEncode_RecurrenceRuleKeepsRawSeparators(t *testing.T) {
	msg := &calendar.SchedulingMessage{
		Method: calendar.MethodRequest,
		Event: &calendar.Event{
			UID:      "weekly",
			Sequence: 1,
			Changed:  time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC),
			Start:    time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC),
			End:      time.Date(2024, 2, 5, 11, 0, 0, 0, time.UTC),
			Recurrence: &calendar.RecurrenceRule{
				Freq:     calendar.FreqWeekly,
				Interval: 1,
				Count:    mo.Some(8),
				ByDay:    []string{"MO"},
			},
		},
	}

	cal, err := Encode(msg)
	require.NoError(t, err)

	// RRULE is RECUR-valued: its ";" separators must survive encoding
	// without TEXT escaping, or no parser will read it back.
	var rr *ical.Prop
	for _, child := range cal.Children {
		if child.Name == ical.CompEvent {
			rr = child.Props.Get(ical.PropRecurrenceRule)
		}
	}
	require.NotNil(t, rr)
	assert.Equal(t, "FREQ=WEEKLY;COUNT=8;BYDAY=MO", rr.Value)

	decoded, err := Decode(cal)
	require.NoError(t, err)
	require.NotNil(t, decoded.Event.Recurrence)
	assert.Equal(t, calendar.FreqWeekly, decoded.Event.Recurrence.Freq)
	assert.Equal(t, mo.Some(8), decoded.Event.Recurrence.Count)
}

func TestEncodeDecode_EscapedText(t *testing.T) {
	msg := &calendar.SchedulingMessage{
		Method:  calendar.MethodRequest,
		Comment: "bring slides; agenda attached",
		Event: &calendar.Event{
			UID:        "offsite",
			Sequence:   1,
			Changed:    time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC),
			Start:      time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC),
			End:        time.Date(2024, 2, 5, 11, 0, 0, 0, time.UTC),
			Summary:    "Offsite: planning, budget; Q2",
			Location:   "Berlin, DE",
			Categories: []string{"planning", "rooms;av"},
		},
	}

	cal, err := Encode(msg)
	require.NoError(t, err)
	decoded, err := Decode(cal)
	require.NoError(t, err)

	assert.Equal(t, msg.Comment, decoded.Comment)
	assert.Equal(t, msg.Event.Summary, decoded.Event.Summary)
	assert.Equal(t, msg.Event.Location, decoded.Event.Location)
	assert.Equal(t, msg.Event.Categories, decoded.Event.Categories)
}

func TestEncodeDecode_InstanceCancel(t *testing.T) {
	msg := &calendar.SchedulingMessage{
		Method:     calendar.MethodCancel,
		InstanceID: "20240212T100000",
		Event: &calendar.Event{
			UID:      "planning",
			Sequence: 4,
			Changed:  time.Date(2024, 2, 6, 8, 0, 0, 0, time.UTC),
			Start:    time.Date(2024, 2, 12, 10, 0, 0, 0, time.UTC),
			End:      time.Date(2024, 2, 12, 11, 0, 0, 0, time.UTC),
			Status:   calendar.StatusCancelled,
			FreeBusy: calendar.FreeBusyFree,
		},
	}

	cal, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(cal)
	require.NoError(t, err)
	assert.Equal(t, calendar.MethodCancel, decoded.Method)
	assert.Equal(t, "20240212T100000", decoded.InstanceID)
	assert.Equal(t, calendar.StatusCancelled, decoded.Event.Status)
	assert.Equal(t, calendar.FreeBusyFree, decoded.Event.FreeBusy, "TRANSPARENT round-trips to free")
}

func TestEncode_RejectsEmptyMessage(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)
	_, err = Encode(&calendar.SchedulingMessage{Method: calendar.MethodRequest})
	require.Error(t, err)
}

func TestDecode_RejectsBadCalendars(t *testing.T) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	_, err := Decode(cal)
	require.Error(t, err, "no METHOD")

	cal.Props.SetText("METHOD", "PUBLISH")
	_, err = Decode(cal)
	require.Error(t, err, "unsupported method")

	cal.Props.SetText("METHOD", "REQUEST")
	_, err = Decode(cal)
	require.Error(t, err, "no VEVENT")
}
