package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pverga/libitip/calendar"
	"github.com/pverga/libitip/storage/memory"
)

func TestStoreSource_Lookup(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	source, err := NewStoreSource(store, nil)
	require.NoError(t, err)

	attendee := []calendar.Attendee{
		{Email: "boss@example.com", Role: calendar.RoleOrganizer},
		{Email: "a@example.com", Status: calendar.PartStatAccepted},
	}
	organizer := &calendar.Attendee{Email: "boss@example.com", Role: calendar.RoleOrganizer}

	meeting := &calendar.Event{
		UID:       "meeting",
		Sequence:  1,
		Start:     time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 5, 6, 11, 0, 0, 0, time.UTC),
		Organizer: organizer,
		Attendees: attendee,
	}
	tentative := &calendar.Event{
		UID:       "tentative",
		Sequence:  1,
		Start:     time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 5, 6, 15, 0, 0, 0, time.UTC),
		FreeBusy:  calendar.FreeBusyTentative,
		Organizer: organizer,
		Attendees: attendee,
	}
	transparent := &calendar.Event{
		UID:       "lunch-block",
		Sequence:  1,
		Start:     time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 5, 6, 13, 0, 0, 0, time.UTC),
		FreeBusy:  calendar.FreeBusyFree,
		Organizer: organizer,
		Attendees: attendee,
	}
	cancelled := &calendar.Event{
		UID:       "cancelled",
		Sequence:  1,
		Start:     time.Date(2024, 5, 6, 16, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 5, 6, 17, 0, 0, 0, time.UTC),
		Status:    calendar.StatusCancelled,
		Organizer: organizer,
		Attendees: attendee,
	}
	for _, ev := range []*calendar.Event{meeting, tentative, transparent, cancelled} {
		require.NoError(t, store.PutIfSequence(ctx, ev, 0))
	}

	intervals, err := source.Lookup(ctx, "a@example.com",
		time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// The transparent and the cancelled event contribute nothing.
	require.Len(t, intervals, 2)
	byStart := map[time.Time]calendar.FreeBusyStatus{}
	for _, iv := range intervals {
		byStart[iv.Start] = iv.Status
	}
	assert.Equal(t, calendar.FreeBusyBusy, byStart[meeting.Start])
	assert.Equal(t, calendar.FreeBusyTentative, byStart[tentative.Start])
}

func TestStoreSource_DeclinedAttendeeIsFree(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	source, err := NewStoreSource(store, nil)
	require.NoError(t, err)

	ev := &calendar.Event{
		UID:      "declined",
		Sequence: 1,
		Start:    time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 5, 6, 11, 0, 0, 0, time.UTC),
		Organizer: &calendar.Attendee{
			Email: "boss@example.com", Role: calendar.RoleOrganizer,
		},
		Attendees: []calendar.Attendee{
			{Email: "boss@example.com", Role: calendar.RoleOrganizer},
			{Email: "a@example.com", Status: calendar.PartStatDeclined},
		},
	}
	require.NoError(t, store.PutIfSequence(ctx, ev, 0))

	intervals, err := source.Lookup(ctx, "a@example.com",
		time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, intervals)

	// The organizer still reads as busy.
	intervals, err = source.Lookup(ctx, "boss@example.com",
		time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, intervals, 1)
}

func TestStoreSource_ExpandsRecurringSeries(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	source, err := NewStoreSource(store, nil)
	require.NoError(t, err)

	series := &calendar.Event{
		UID:      "series",
		Sequence: 1,
		Start:    time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC),
		Recurrence: &calendar.RecurrenceRule{
			Freq:     calendar.FreqDaily,
			Interval: 1,
			Count:    mo.Some(30),
		},
		Organizer: &calendar.Attendee{
			Email: "boss@example.com", Role: calendar.RoleOrganizer,
		},
		Attendees: []calendar.Attendee{
			{Email: "boss@example.com", Role: calendar.RoleOrganizer},
		},
	}
	require.NoError(t, store.PutIfSequence(ctx, series, 0))

	intervals, err := source.Lookup(ctx, "boss@example.com",
		time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, intervals, 3, "one interval per occurrence in the window")
	assert.True(t, intervals[0].Start.Equal(time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC)))
}
