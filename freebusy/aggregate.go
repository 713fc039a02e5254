// Package freebusy aggregates availability intervals into point-in-time
// statuses and discretized grids, and searches those grids for free slots.
package freebusy

import (
	"time"

	"github.com/pverga/libitip/calendar"
	"github.com/pverga/libitip/internal/dateutil"
)

// PointStatus returns the dominant status over [queryStart, queryEnd).
// FREE when nothing overlaps; otherwise the highest-precedence overlapping
// status (BUSY > TENTATIVE > OUT-OF-OFFICE > FREE), short-circuiting on
// BUSY.
func PointStatus(intervals []calendar.FreeBusyInterval, queryStart, queryEnd time.Time) calendar.FreeBusyStatus {
	status := calendar.FreeBusyFree
	weight := 0
	for _, iv := range intervals {
		if !iv.Overlaps(queryStart, queryEnd) {
			continue
		}
		if iv.Status == calendar.FreeBusyBusy {
			return calendar.FreeBusyBusy
		}
		if w := iv.Status.Weight(); w > weight {
			weight = w
			status = iv.Status
		}
	}
	return status
}

// Grid partitions [windowStart, windowEnd) into slots of slotMinutes and
// computes the dominant status per slot. All-day intervals, stored as whole
// UTC days, are shifted by the viewer's UTC offset so they cover the
// viewer's local day instead.
func Grid(intervals []calendar.FreeBusyInterval, windowStart, windowEnd time.Time, slotMinutes int, viewer *time.Location) []calendar.FreeBusyStatus {
	slots := slotCount(windowStart, windowEnd, slotMinutes)
	if slots <= 0 {
		return nil
	}
	shifted := shiftAllDay(intervals, windowStart, viewer)
	out := make([]calendar.FreeBusyStatus, slots)
	slotDur := time.Duration(slotMinutes) * time.Minute
	for i := 0; i < slots; i++ {
		slotStart := windowStart.Add(time.Duration(i) * slotDur)
		out[i] = PointStatus(shifted, slotStart, slotStart.Add(slotDur))
	}
	return out
}

func slotCount(windowStart, windowEnd time.Time, slotMinutes int) int {
	if slotMinutes <= 0 || !windowEnd.After(windowStart) {
		return 0
	}
	window := windowEnd.Sub(windowStart)
	slotDur := time.Duration(slotMinutes) * time.Minute
	return int((window + slotDur - 1) / slotDur)
}

// shiftAllDay realigns whole-UTC-day intervals with the viewer's local day
// boundaries. Timed intervals pass through unchanged.
func shiftAllDay(intervals []calendar.FreeBusyInterval, at time.Time, viewer *time.Location) []calendar.FreeBusyInterval {
	if viewer == nil {
		return intervals
	}
	_, offset := at.In(viewer).Zone()
	if offset == 0 {
		return intervals
	}
	out := make([]calendar.FreeBusyInterval, len(intervals))
	for i, iv := range intervals {
		if dateutil.IsAllDaySpan(iv.Start, iv.End) {
			iv.Start = iv.Start.Add(-time.Duration(offset) * time.Second)
			iv.End = iv.End.Add(-time.Duration(offset) * time.Second)
		}
		out[i] = iv
	}
	return out
}

// Availability is one attendee's contribution to an aggregation.
type Availability struct {
	Attendee  calendar.Attendee
	Intervals []calendar.FreeBusyInterval
}

// AggregatedGrid is the multi-attendee view of a window. Required holds the
// dominant status per slot among attendees whose role is not
// OPT-PARTICIPANT; All covers everyone. AllBusy marks slots where every
// attendee, required or not, is non-free.
type AggregatedGrid struct {
	WindowStart time.Time
	WindowEnd   time.Time
	SlotMinutes int
	Required    []calendar.FreeBusyStatus
	All         []calendar.FreeBusyStatus
	AllBusy     []bool
}

// Slots returns the number of slots in the grid.
func (g *AggregatedGrid) Slots() int {
	return len(g.All)
}

// SlotStart returns the start instant of slot i.
func (g *AggregatedGrid) SlotStart(i int) time.Time {
	return g.WindowStart.Add(time.Duration(i) * time.Duration(g.SlotMinutes) * time.Minute)
}

// Aggregate combines per-attendee availability into a single grid.
func Aggregate(contributions []Availability, windowStart, windowEnd time.Time, slotMinutes int, viewer *time.Location) *AggregatedGrid {
	slots := slotCount(windowStart, windowEnd, slotMinutes)
	grid := &AggregatedGrid{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		SlotMinutes: slotMinutes,
		Required:    make([]calendar.FreeBusyStatus, slots),
		All:         make([]calendar.FreeBusyStatus, slots),
		AllBusy:     make([]bool, slots),
	}
	for i := 0; i < slots; i++ {
		grid.Required[i] = calendar.FreeBusyFree
		grid.All[i] = calendar.FreeBusyFree
		grid.AllBusy[i] = len(contributions) > 0
	}
	for _, c := range contributions {
		per := Grid(c.Intervals, windowStart, windowEnd, slotMinutes, viewer)
		required := c.Attendee.Role != calendar.RoleOptional
		for i, status := range per {
			if status.Weight() > grid.All[i].Weight() {
				grid.All[i] = status
			}
			if required && status.Weight() > grid.Required[i].Weight() {
				grid.Required[i] = status
			}
			if !status.NonFree() {
				grid.AllBusy[i] = false
			}
		}
	}
	return grid
}
