package calendar

import (
	"strings"
	"time"
)

// EmailEqual compares attendee emails case-insensitively.
func EmailEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Duration returns the event's anchor duration.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// IsRecurring reports whether the event carries a recurrence rule.
func (e *Event) IsRecurring() bool {
	return e.Recurrence != nil
}

// FindAttendee returns the index of the attendee with the given email, or
// -1. Matching is case-insensitive.
func (e *Event) FindAttendee(email string) int {
	for i := range e.Attendees {
		if EmailEqual(e.Attendees[i].Email, email) {
			return i
		}
	}
	return -1
}

// DedupAttendees removes duplicate attendees, keeping the first entry for
// each lower-cased email.
func (e *Event) DedupAttendees() {
	seen := make(map[string]struct{}, len(e.Attendees))
	out := e.Attendees[:0]
	for _, a := range e.Attendees {
		key := strings.ToLower(strings.TrimSpace(a.Email))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	e.Attendees = out
}

// Validate checks the event's structural invariants: a recurrence rule in
// good order, at most one ORGANIZER-role attendee, and an Organizer entry
// consistent with it when both are present.
func (e *Event) Validate() error {
	if e.UID == "" {
		return NewError(KindValidation, "event has no UID")
	}
	if !e.AllDay && e.End.Before(e.Start) {
		return NewError(KindValidation, "event %s ends before it starts", e.UID)
	}
	if e.Recurrence != nil {
		if err := e.Recurrence.Validate(); err != nil {
			return err
		}
	}
	organizers := 0
	for i := range e.Attendees {
		a := &e.Attendees[i]
		if a.Role == RoleOrganizer {
			organizers++
			if e.Organizer != nil && !EmailEqual(e.Organizer.Email, a.Email) {
				return NewError(KindValidation,
					"event %s: organizer %s does not match ORGANIZER attendee %s",
					e.UID, e.Organizer.Email, a.Email)
			}
		}
		if a.Status == PartStatDelegated && a.DelegatedTo == "" && a.DelegatedFrom == "" {
			return NewError(KindValidation,
				"event %s: delegated attendee %s has no delegation link", e.UID, a.Email)
		}
	}
	if organizers > 1 {
		return NewError(KindValidation, "event %s has %d ORGANIZER attendees", e.UID, organizers)
	}
	if len(e.Attendees) > organizers && e.Organizer == nil && organizers == 0 {
		return NewError(KindValidation, "event %s has attendees but no organizer", e.UID)
	}
	return nil
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	if e.Organizer != nil {
		org := *e.Organizer
		out.Organizer = &org
	}
	if e.Attendees != nil {
		out.Attendees = append([]Attendee(nil), e.Attendees...)
	}
	if e.Categories != nil {
		out.Categories = append([]string(nil), e.Categories...)
	}
	if e.ExDates != nil {
		out.ExDates = append([]time.Time(nil), e.ExDates...)
	}
	if e.Recurrence != nil {
		rule := *e.Recurrence
		rule.ByDay = append([]string(nil), e.Recurrence.ByDay...)
		rule.ByMonth = append([]int(nil), e.Recurrence.ByMonth...)
		rule.ByMonthDay = append([]int(nil), e.Recurrence.ByMonthDay...)
		rule.BySetPos = append([]int(nil), e.Recurrence.BySetPos...)
		out.Recurrence = &rule
	}
	if e.Exceptions != nil {
		out.Exceptions = make(map[string]Exception, len(e.Exceptions))
		for key, ex := range e.Exceptions {
			out.Exceptions[key] = Exception{
				Override:      ex.Override.Clone(),
				ThisAndFuture: ex.ThisAndFuture,
			}
		}
	}
	return &out
}

// Validate checks the rule's invariants.
func (r *RecurrenceRule) Validate() error {
	switch r.Freq {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly, FreqHourly:
	case "":
		return NewError(KindValidation, "recurrence rule has no frequency")
	default:
		return NewError(KindValidation, "unsupported recurrence frequency %q", r.Freq)
	}
	if r.Interval < 1 {
		return NewError(KindValidation, "recurrence interval must be at least 1, got %d", r.Interval)
	}
	if r.Count.IsPresent() && r.Until.IsPresent() {
		return NewError(KindValidation, "recurrence rule sets both COUNT and UNTIL")
	}
	if count, ok := r.Count.Get(); ok && count < 1 {
		return NewError(KindValidation, "recurrence COUNT must be positive, got %d", count)
	}
	return nil
}

// Shortens reports whether other is the same rule merely bounded earlier:
// COUNT decreased, UNTIL moved back, or a bound introduced, with everything
// else equal. Shortening a series is not a reschedule of the remaining
// occurrences.
func (r *RecurrenceRule) Shortens(other *RecurrenceRule) bool {
	if other == nil {
		return false
	}
	if !rulesEqualUnbounded(r, other) {
		return false
	}
	if bc, ok := other.Count.Get(); ok {
		ac, bounded := r.Count.Get()
		return !bounded || bc <= ac
	}
	if bu, ok := other.Until.Get(); ok {
		au, bounded := r.Until.Get()
		return !bounded || !bu.After(au)
	}
	// other is unbounded: only a no-op if r was unbounded too.
	return r.Count.IsAbsent() && r.Until.IsAbsent()
}

func rulesEqualUnbounded(a, b *RecurrenceRule) bool {
	return a.Freq == b.Freq &&
		a.Interval == b.Interval &&
		a.WeekStart == b.WeekStart &&
		intsEqual(a.ByMonth, b.ByMonth) &&
		intsEqual(a.ByMonthDay, b.ByMonthDay) &&
		intsEqual(a.BySetPos, b.BySetPos) &&
		stringsEqual(a.ByDay, b.ByDay)
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
