package freebusy

import (
	"time"
)

// Direction selects the slot search direction.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// SlotPolicy constrains which slots may participate in a candidate run.
type SlotPolicy struct {
	// ExcludeOffHours rejects slots outside business hours or on non-work
	// days. An excluded slot resets the running count: a candidate run may
	// not straddle it.
	ExcludeOffHours bool
	// BusinessStartHour and BusinessEndHour bound the working day,
	// half-open [start, end) in the grid's local time.
	BusinessStartHour int
	BusinessEndHour   int
	// Workdays lists the working weekdays. Empty means Monday through
	// Friday.
	Workdays []time.Weekday
}

func (p *SlotPolicy) workday(d time.Weekday) bool {
	if len(p.Workdays) == 0 {
		return d != time.Saturday && d != time.Sunday
	}
	for _, w := range p.Workdays {
		if w == d {
			return true
		}
	}
	return false
}

func (p *SlotPolicy) excluded(slotStart time.Time) bool {
	if !p.ExcludeOffHours {
		return false
	}
	if !p.workday(slotStart.Weekday()) {
		return true
	}
	h := slotStart.Hour()
	return h < p.BusinessStartHour || h >= p.BusinessEndHour
}

// FindSlot scans the aggregated grid from anchorSlot in the given direction
// for a run of durationSlots consecutive slots where no required attendee
// is non-free. It returns the index of the run's first slot, or -1 and
// false when no such run exists.
func FindSlot(grid *AggregatedGrid, durationSlots, anchorSlot int, dir Direction, policy *SlotPolicy) (int, bool) {
	if grid == nil || durationSlots <= 0 || grid.Slots() == 0 {
		return -1, false
	}
	if policy == nil {
		policy = &SlotPolicy{}
	}
	step := 1
	if dir == Backward {
		step = -1
	}
	run := 0
	for i := clamp(anchorSlot, 0, grid.Slots()-1); i >= 0 && i < grid.Slots(); i += step {
		if grid.Required[i].NonFree() || policy.excluded(grid.SlotStart(i)) {
			run = 0
			continue
		}
		run++
		if run >= durationSlots {
			if dir == Backward {
				return i, true
			}
			return i - durationSlots + 1, true
		}
	}
	return -1, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
