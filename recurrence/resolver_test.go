package recurrence

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pverga/libitip/calendar"
)

func dailyEvent(count int) *calendar.Event {
	return &calendar.Event{
		UID:     "daily-standup",
		Start:   time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Summary: "Standup",
		Recurrence: &calendar.RecurrenceRule{
			Freq:     calendar.FreqDaily,
			Interval: 1,
			Count:    mo.Some(count),
		},
	}
}

func TestResolve_ExdateAndOverride(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)

	// Daily 09:00-10:00, Jan 1-5, Jan 3 excluded, Jan 4 moved to the
	// afternoon.
	ev := dailyEvent(5)
	ev.ExDates = []time.Time{time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)}
	ev.Exceptions = map[string]calendar.Exception{
		"20240104T090000": {
			Override: &calendar.Event{
				Start: time.Date(2024, 1, 4, 14, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 1, 4, 15, 0, 0, 0, time.UTC),
			},
		},
	}

	instances, err := engine.Resolve(ev,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		nil)
	require.NoError(t, err)
	require.Len(t, instances, 4)

	assert.Equal(t, "20240101T090000", instances[0].InstanceID)
	assert.Equal(t, "20240102T090000", instances[1].InstanceID)

	// The moved occurrence keeps the identifier of its original date and
	// carries the override's literal times.
	moved := instances[2]
	assert.Equal(t, "20240104T090000", moved.InstanceID)
	assert.True(t, moved.IsException)
	assert.Equal(t, time.Date(2024, 1, 4, 14, 0, 0, 0, time.UTC), moved.Start)
	assert.Equal(t, time.Date(2024, 1, 4, 15, 0, 0, 0, time.UTC), moved.End)

	assert.Equal(t, "20240105T090000", instances[3].InstanceID)
	assert.False(t, instances[3].IsException)

	for _, inst := range instances {
		assert.Equal(t, "daily-standup", inst.RecurrenceID)
		assert.NotEqual(t, "20240103T090000", inst.InstanceID, "excluded date must not appear")
	}
}

func TestResolve_Deterministic(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	ev := dailyEvent(10)
	wStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wEnd := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)

	first, err := engine.Resolve(ev, wStart, wEnd, nil)
	require.NoError(t, err)
	second, err := engine.Resolve(ev, wStart, wEnd, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolve_WantedInstance(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	ev := dailyEvent(10)

	instances, err := engine.Resolve(ev,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		&ResolveOptions{WantedInstanceID: "20240107T090000"})
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "20240107T090000", instances[0].InstanceID)
	assert.Equal(t, time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC), instances[0].Start)
}

func TestResolve_Limit(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	ev := dailyEvent(10)

	instances, err := engine.Resolve(ev,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		&ResolveOptions{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, instances, 3)
}

func TestResolve_ThisAndFutureOverride(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)

	// From Jan 3 on, the series moves to 11:00 and a new room.
	ev := dailyEvent(5)
	ev.Exceptions = map[string]calendar.Exception{
		"20240103T090000": {
			Override: &calendar.Event{
				Start:    time.Date(2024, 1, 3, 11, 0, 0, 0, time.UTC),
				End:      time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC),
				Location: "Room B",
			},
			ThisAndFuture: true,
		},
	}

	instances, err := engine.Resolve(ev,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		nil)
	require.NoError(t, err)
	require.Len(t, instances, 5)

	for _, inst := range instances[:2] {
		assert.Equal(t, 9, inst.Start.Hour())
		assert.Empty(t, inst.Location)
		assert.False(t, inst.IsException)
	}
	for _, inst := range instances[2:] {
		assert.Equal(t, 11, inst.Start.Hour(), "instance %s", inst.InstanceID)
		assert.Equal(t, "Room B", inst.Location)
		assert.True(t, inst.IsException)
	}
	// Identifiers still come from the unmodified candidate dates.
	assert.Equal(t, "20240104T090000", instances[3].InstanceID)
}

func TestResolve_ExactOverrideBeatsRolling(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)

	ev := dailyEvent(5)
	ev.Exceptions = map[string]calendar.Exception{
		"20240102T090000": {
			Override: &calendar.Event{
				Start: time.Date(2024, 1, 2, 11, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
			},
			ThisAndFuture: true,
		},
		"20240104T090000": {
			Override: &calendar.Event{
				Start: time.Date(2024, 1, 4, 16, 0, 0, 0, time.UTC),
				End:   time.Date(2024, 1, 4, 17, 0, 0, 0, time.UTC),
			},
		},
	}

	instances, err := engine.Resolve(ev,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		nil)
	require.NoError(t, err)
	require.Len(t, instances, 5)

	// Jan 3 and 5 follow the rolling override, Jan 4 its own.
	assert.Equal(t, 11, instances[2].Start.Hour())
	assert.Equal(t, 16, instances[3].Start.Hour())
	assert.Equal(t, 11, instances[4].Start.Hour())
}

func TestResolve_NonRecurring(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	ev := &calendar.Event{
		UID:   "one-off",
		Start: time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC),
	}

	instances, err := engine.Resolve(ev,
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		nil)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "20240310T130000", instances[0].InstanceID)

	instances, err = engine.Resolve(ev,
		time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		nil)
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestResolve_AllDayKeys(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	ev := &calendar.Event{
		UID:    "conference",
		Start:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 6, 1, 23, 59, 59, 0, time.UTC),
		AllDay: true,
		Recurrence: &calendar.RecurrenceRule{
			Freq:     calendar.FreqWeekly,
			Interval: 1,
			Count:    mo.Some(3),
		},
	}

	instances, err := engine.Resolve(ev,
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		nil)
	require.NoError(t, err)
	require.Len(t, instances, 3)
	assert.Equal(t, "20240601", instances[0].InstanceID)
	assert.Equal(t, "20240608", instances[1].InstanceID)
	assert.Equal(t, "20240615", instances[2].InstanceID)
}

func TestResolve_IterationCapReportsPartial(t *testing.T) {
	engine := NewEngineWithConfig(EngineConfig{MaxIterations: 10})

	// Unbounded daily rule against a window far wider than the cap.
	ev := dailyEvent(5)
	ev.Recurrence.Count = mo.None[int]()

	instances, err := engine.Resolve(ev,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		nil)
	require.Error(t, err)
	assert.True(t, calendar.IsKind(err, calendar.KindRecurrenceLimit))
	assert.Len(t, instances, 10, "partial results survive the cap")
}

func TestResolve_CacheServesRepeatQueries(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	ev := dailyEvent(5)
	wStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wEnd := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

	first, err := engine.Resolve(ev, wStart, wEnd, nil)
	require.NoError(t, err)
	second, err := engine.Resolve(ev, wStart, wEnd, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Bumping the sequence invalidates the cached identity.
	ev.Sequence++
	ev.Exceptions = map[string]calendar.Exception{
		"20240102T090000": {Override: &calendar.Event{Summary: "Moved"}},
	}
	third, err := engine.Resolve(ev, wStart, wEnd, nil)
	require.NoError(t, err)
	assert.Equal(t, "Moved", third[1].Summary)
}

func TestResolve_MutatedResultDoesNotPoisonCache(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	ev := dailyEvent(3)
	ev.Attendees = []calendar.Attendee{
		{Email: "a@example.com", Status: calendar.PartStatNeedsAction},
	}
	ev.Categories = []string{"standup"}
	wStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wEnd := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	first, err := engine.Resolve(ev, wStart, wEnd, nil)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	first[0].Attendees[0].Status = calendar.PartStatDeclined
	first[0].Categories[0] = "hijacked"

	second, err := engine.Resolve(ev, wStart, wEnd, nil)
	require.NoError(t, err)
	assert.Equal(t, calendar.PartStatNeedsAction, second[0].Attendees[0].Status)
	assert.Equal(t, "standup", second[0].Categories[0])
}
