package recurrence

import (
	"sort"
	"time"

	"github.com/pverga/libitip/calendar"
	"github.com/pverga/libitip/internal/dateutil"
)

// Resolve materializes the event's instances overlapping [windowStart,
// windowEnd), honoring EXDATEs, single-instance overrides and rolling
// this-and-future overrides. Partial results are returned alongside a
// RecurrenceLimit error when the iteration cap is hit.
func (e *Engine) Resolve(event *calendar.Event, windowStart, windowEnd time.Time, opts *ResolveOptions) ([]calendar.Instance, error) {
	if event == nil {
		return nil, calendar.NewError(calendar.KindValidation, "resolve: nil event")
	}
	if !windowEnd.After(windowStart) {
		return nil, calendar.NewError(calendar.KindValidation,
			"resolve: window end %s is not after start %s", windowEnd, windowStart)
	}
	if opts == nil {
		opts = &ResolveOptions{}
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(event, windowStart, windowEnd, opts); ok {
			return cached, nil
		}
	}
	instances, err := e.resolve(event, windowStart, windowEnd, opts)
	if err == nil && e.cache != nil {
		e.cache.Set(event, windowStart, windowEnd, opts, instances)
	}
	return instances, err
}

func (e *Engine) resolve(ev *calendar.Event, wStart, wEnd time.Time, opts *ResolveOptions) ([]calendar.Instance, error) {
	if !ev.IsRecurring() {
		return e.resolveSingle(ev, wStart, wEnd, opts), nil
	}

	var out []calendar.Instance

	// The first occurrence may itself have moved: when the master's own
	// start would not appear in-window, its override still might.
	masterKey := dateutil.Key(ev.Start, ev.AllDay)
	preEmitted := ""
	if ex, ok := ev.Exceptions[masterKey]; ok && ex.Override != nil {
		orig := Occurrence{Start: ev.Start, End: ev.End}
		if !orig.Overlaps(wStart, wEnd) {
			inst := materialize(ev, orig, masterKey)
			applyExact(&inst, ex.Override)
			if inst.Start.Before(wEnd) && inst.End.After(wStart) {
				if opts.WantedInstanceID == inst.InstanceID {
					return []calendar.Instance{inst}, nil
				}
				out = append(out, inst)
				preEmitted = masterKey
			}
		}
	}

	it, err := NewIterator(ev.Recurrence, ev.Start, ev.End, e.config.MaxIterations)
	if err != nil {
		return nil, err
	}

	var limitErr error
	var rolling *calendar.Event
	for {
		occ, ok, nextErr := it.Next()
		if nextErr != nil {
			e.logger.Warn("instance resolution hit iteration cap",
				"uid", ev.UID, "cap", e.config.MaxIterations, "produced", len(out))
			limitErr = nextErr
			break
		}
		if !ok || !occ.Start.Before(wEnd) {
			break
		}

		key := dateutil.Key(occ.Start, ev.AllDay)
		ex, exact := ev.Exceptions[key]
		if exact && ex.ThisAndFuture {
			rolling = ex.Override
		}
		if isExcluded(occ.Start, ev.ExDates) {
			continue
		}
		if key == preEmitted {
			continue
		}

		inst := materialize(ev, occ, key)
		switch {
		case exact:
			// A single-instance override on the same date beats an earlier
			// this-and-future one: most specific wins.
			applyExact(&inst, ex.Override)
		case rolling != nil:
			applyRolling(&inst, rolling, occ)
		}

		if opts.WantedInstanceID != "" {
			if inst.InstanceID == opts.WantedInstanceID {
				return []calendar.Instance{inst}, nil
			}
			continue
		}
		if !inst.Start.Before(wEnd) || !inst.End.After(wStart) {
			continue
		}
		out = append(out, inst)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}

	if opts.WantedInstanceID != "" {
		return nil, limitErr
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, limitErr
}

func (e *Engine) resolveSingle(ev *calendar.Event, wStart, wEnd time.Time, opts *ResolveOptions) []calendar.Instance {
	key := dateutil.Key(ev.Start, ev.AllDay)
	inst := materialize(ev, Occurrence{Start: ev.Start, End: ev.End}, key)
	if opts.WantedInstanceID != "" {
		if inst.InstanceID == opts.WantedInstanceID {
			return []calendar.Instance{inst}
		}
		return nil
	}
	if inst.Start.Before(wEnd) && inst.End.After(wStart) {
		return []calendar.Instance{inst}
	}
	return nil
}

// materialize derives an instance from a candidate occurrence. The instance
// ID is computed from the unmodified candidate date, so moving the
// occurrence later never changes its identifier.
func materialize(ev *calendar.Event, occ Occurrence, key string) calendar.Instance {
	inst := calendar.Instance{
		Event:        *ev.Clone(),
		RecurrenceID: ev.UID,
		InstanceID:   key,
	}
	inst.Start = occ.Start
	inst.End = occ.End
	inst.Recurrence = nil
	inst.Exceptions = nil
	inst.ExDates = nil
	return inst
}

// applyExact merges a single-instance override's fields onto the instance.
// Start and end are taken literally from the override.
func applyExact(inst *calendar.Instance, ov *calendar.Event) {
	if ov == nil {
		return
	}
	if !ov.Start.IsZero() {
		inst.Start = ov.Start
	}
	if !ov.End.IsZero() {
		inst.End = ov.End
	}
	mergeFields(inst, ov)
	inst.IsException = true
}

// applyRolling merges a this-and-future override onto a later occurrence.
// The override's time of day is re-applied on the occurrence's own date.
func applyRolling(inst *calendar.Instance, ov *calendar.Event, occ Occurrence) {
	if ov == nil {
		return
	}
	if !ov.Start.IsZero() {
		h, m, s := ov.Start.Clock()
		start := time.Date(occ.Start.Year(), occ.Start.Month(), occ.Start.Day(),
			h, m, s, 0, ov.Start.Location())
		inst.Start = start
		if !ov.End.IsZero() {
			inst.End = start.Add(ov.End.Sub(ov.Start))
		}
	}
	mergeFields(inst, ov)
	inst.IsException = true
}

func mergeFields(inst *calendar.Instance, ov *calendar.Event) {
	if ov.Summary != "" {
		inst.Summary = ov.Summary
	}
	if ov.Location != "" {
		inst.Location = ov.Location
	}
	if ov.Description != "" {
		inst.Description = ov.Description
	}
	if ov.Status != "" {
		inst.Status = ov.Status
	}
	if ov.FreeBusy != "" {
		inst.FreeBusy = ov.FreeBusy
	}
	if ov.Organizer != nil {
		org := *ov.Organizer
		inst.Organizer = &org
	}
	if ov.Attendees != nil {
		inst.Attendees = append([]calendar.Attendee(nil), ov.Attendees...)
	}
	if ov.Categories != nil {
		inst.Categories = append([]string(nil), ov.Categories...)
	}
	if ov.Sequence > inst.Sequence {
		inst.Sequence = ov.Sequence
	}
}

// isExcluded reports whether the occurrence date appears in the EXDATE
// list. Matching is by calendar date, not time of day.
func isExcluded(t time.Time, exdates []time.Time) bool {
	for _, ex := range exdates {
		if dateutil.SameDate(t, ex) {
			return true
		}
	}
	return false
}
