package freebusy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pverga/libitip/calendar"
)

func gridOf(windowStart time.Time, slotMinutes int, statuses ...calendar.FreeBusyStatus) *AggregatedGrid {
	return &AggregatedGrid{
		WindowStart: windowStart,
		WindowEnd:   windowStart.Add(time.Duration(len(statuses)*slotMinutes) * time.Minute),
		SlotMinutes: slotMinutes,
		Required:    statuses,
		All:         statuses,
		AllBusy:     make([]bool, len(statuses)),
	}
}

func TestFindSlot_Forward(t *testing.T) {
	free := calendar.FreeBusyFree
	busy := calendar.FreeBusyBusy
	windowStart := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		statuses []calendar.FreeBusyStatus
		duration int
		anchor   int
		want     int
		found    bool
	}{
		{
			name:     "first free run",
			statuses: []calendar.FreeBusyStatus{busy, free, free, busy, free},
			duration: 2,
			anchor:   0,
			want:     1,
			found:    true,
		},
		{
			name:     "run must be consecutive",
			statuses: []calendar.FreeBusyStatus{free, busy, free, busy, free},
			duration: 2,
			anchor:   0,
			found:    false,
		},
		{
			name:     "anchor skips earlier runs",
			statuses: []calendar.FreeBusyStatus{free, free, busy, free, free},
			duration: 2,
			anchor:   2,
			want:     3,
			found:    true,
		},
		{
			name:     "tentative blocks the run",
			statuses: []calendar.FreeBusyStatus{free, calendar.FreeBusyTentative, free},
			duration: 2,
			anchor:   0,
			found:    false,
		},
		{
			name:     "single slot",
			statuses: []calendar.FreeBusyStatus{busy, busy, free},
			duration: 1,
			anchor:   0,
			want:     2,
			found:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := gridOf(windowStart, 30, tt.statuses...)
			got, ok := FindSlot(grid, tt.duration, tt.anchor, Forward, nil)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFindSlot_Backward(t *testing.T) {
	free := calendar.FreeBusyFree
	busy := calendar.FreeBusyBusy
	windowStart := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	grid := gridOf(windowStart, 30, free, free, busy, free, free)
	got, ok := FindSlot(grid, 2, 4, Backward, nil)
	assert.True(t, ok)
	assert.Equal(t, 3, got, "backward search returns the run's first slot")

	got, ok = FindSlot(grid, 2, 1, Backward, nil)
	assert.True(t, ok)
	assert.Equal(t, 0, got)

	_, ok = FindSlot(grid, 3, 4, Backward, nil)
	assert.False(t, ok)
}

func TestFindSlot_OffHoursPolicy(t *testing.T) {
	free := calendar.FreeBusyFree
	// Hourly slots from 16:00; business hours end at 18:00, so only 16:00
	// and 17:00 qualify.
	windowStart := time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC) // a Monday
	grid := gridOf(windowStart, 60, free, free, free, free)

	policy := &SlotPolicy{
		ExcludeOffHours:   true,
		BusinessStartHour: 9,
		BusinessEndHour:   18,
	}

	got, ok := FindSlot(grid, 2, 0, Forward, policy)
	assert.True(t, ok)
	assert.Equal(t, 0, got)

	_, ok = FindSlot(grid, 3, 0, Forward, policy)
	assert.False(t, ok, "a run may not straddle off-hours slots")
}

func TestFindSlot_WorkdayPolicy(t *testing.T) {
	free := calendar.FreeBusyFree
	saturday := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	grid := gridOf(saturday, 60, free, free)

	policy := &SlotPolicy{ExcludeOffHours: true, BusinessStartHour: 9, BusinessEndHour: 18}
	_, ok := FindSlot(grid, 1, 0, Forward, policy)
	assert.False(t, ok, "default workdays exclude the weekend")

	policy.Workdays = []time.Weekday{time.Saturday}
	got, ok := FindSlot(grid, 1, 0, Forward, policy)
	assert.True(t, ok)
	assert.Equal(t, 0, got)
}

func TestFindSlot_Degenerate(t *testing.T) {
	windowStart := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	grid := gridOf(windowStart, 30, calendar.FreeBusyFree)

	_, ok := FindSlot(nil, 1, 0, Forward, nil)
	assert.False(t, ok)
	_, ok = FindSlot(grid, 0, 0, Forward, nil)
	assert.False(t, ok)
	_, ok = FindSlot(grid, 1, 99, Forward, nil)
	assert.True(t, ok, "anchor is clamped into the grid")
}
