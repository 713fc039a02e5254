package itip

import (
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/pverga/libitip/calendar"
	"github.com/pverga/libitip/recurrence"
)

const prodID = "-//libitip//Scheduling Engine//EN"

// Encode renders a scheduling message as an iCalendar object carrying the
// iTIP METHOD, ready for the mail collaborator to serialize and send.
func Encode(msg *calendar.SchedulingMessage) (*ical.Calendar, error) {
	if msg == nil || msg.Event == nil {
		return nil, calendar.NewError(calendar.KindValidation, "encode: message has no event")
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText("METHOD", string(msg.Method))

	comp, err := eventToComponent(msg.Event)
	if err != nil {
		return nil, err
	}
	if msg.InstanceID != "" {
		comp.Props.SetText("RECURRENCE-ID", msg.InstanceID)
	}
	if msg.Comment != "" {
		comp.Props.SetText("COMMENT", msg.Comment)
	}
	cal.Children = append(cal.Children, comp)
	return cal, nil
}

// Decode parses an iCalendar object into a scheduling message. Only
// REQUEST, REPLY and CANCEL methods are accepted.
func Decode(cal *ical.Calendar) (*calendar.SchedulingMessage, error) {
	methodProp := cal.Props.Get("METHOD")
	if methodProp == nil {
		return nil, calendar.NewError(calendar.KindValidation, "decode: calendar has no METHOD")
	}
	method := calendar.Method(strings.ToUpper(methodProp.Value))
	switch method {
	case calendar.MethodRequest, calendar.MethodReply, calendar.MethodCancel:
	default:
		return nil, calendar.NewError(calendar.KindValidation, "decode: unsupported method %q", methodProp.Value)
	}

	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		ev, err := componentToEvent(child)
		if err != nil {
			return nil, err
		}
		msg := &calendar.SchedulingMessage{Method: method, Event: ev}
		if rid := child.Props.Get("RECURRENCE-ID"); rid != nil {
			msg.InstanceID = rid.Value
		}
		if comment, err := child.Props.Text("COMMENT"); err == nil {
			msg.Comment = comment
		}
		return msg, nil
	}
	return nil, calendar.NewError(calendar.KindValidation, "decode: calendar has no VEVENT")
}

func eventToComponent(e *calendar.Event) (*ical.Component, error) {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, e.UID)
	ev.Props.SetText("SEQUENCE", strconv.Itoa(e.Sequence))
	ev.Props.SetDateTime(ical.PropDateTimeStamp, e.Changed)
	ev.Props.SetDateTime(ical.PropDateTimeStart, e.Start)
	ev.Props.SetDateTime(ical.PropDateTimeEnd, e.End)
	if e.Summary != "" {
		ev.Props.SetText(ical.PropSummary, e.Summary)
	}
	if e.Location != "" {
		ev.Props.SetText(ical.PropLocation, e.Location)
	}
	if e.Description != "" {
		ev.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Status != "" {
		ev.Props.SetText(ical.PropStatus, string(e.Status))
	}
	if len(e.Categories) > 0 {
		cats := ical.NewProp(ical.PropCategories)
		cats.SetTextList(e.Categories)
		ev.Props.Set(cats)
	}
	if e.FreeBusy == calendar.FreeBusyFree {
		ev.Props.SetText("TRANSP", "TRANSPARENT")
	} else if e.FreeBusy != "" {
		ev.Props.SetText("TRANSP", "OPAQUE")
	}
	if e.Organizer != nil {
		org := ical.NewProp("ORGANIZER")
		org.Value = "mailto:" + e.Organizer.Email
		if e.Organizer.Name != "" {
			org.Params.Set("CN", e.Organizer.Name)
		}
		ev.Props.Add(org)
	}
	for _, a := range e.Attendees {
		ev.Props.Add(attendeeToProp(a))
	}
	if e.Recurrence != nil {
		s, err := recurrence.RuleToString(e.Recurrence)
		if err != nil {
			return nil, err
		}
		// RRULE is RECUR-valued; the TEXT escaping SetText applies would
		// corrupt its ";" separators.
		rr := ical.NewProp(ical.PropRecurrenceRule)
		rr.Value = s
		ev.Props.Set(rr)
	}
	for _, ex := range e.ExDates {
		prop := ical.NewProp(ical.PropExceptionDates)
		prop.Value = ex.Format("20060102")
		prop.Params.Set("VALUE", "DATE")
		ev.Props.Add(prop)
	}
	return ev.Component, nil
}

func attendeeToProp(a calendar.Attendee) *ical.Prop {
	prop := ical.NewProp(ical.PropAttendee)
	prop.Value = "mailto:" + a.Email
	if a.Name != "" {
		prop.Params.Set("CN", a.Name)
	}
	if a.Role != "" {
		prop.Params.Set("ROLE", string(a.Role))
	}
	if a.CUType != "" {
		prop.Params.Set("CUTYPE", string(a.CUType))
	}
	if a.Status != "" {
		prop.Params.Set("PARTSTAT", string(a.Status))
	}
	if a.RSVP {
		prop.Params.Set("RSVP", "TRUE")
	}
	if a.DelegatedTo != "" {
		prop.Params.Set("DELEGATED-TO", "mailto:"+a.DelegatedTo)
	}
	if a.DelegatedFrom != "" {
		prop.Params.Set("DELEGATED-FROM", "mailto:"+a.DelegatedFrom)
	}
	return prop
}

func componentToEvent(comp *ical.Component) (*calendar.Event, error) {
	e := &calendar.Event{}
	if uid := comp.Props.Get(ical.PropUID); uid != nil {
		e.UID = uid.Value
	}
	if seq := comp.Props.Get("SEQUENCE"); seq != nil {
		n, err := strconv.Atoi(seq.Value)
		if err != nil {
			return nil, calendar.WrapError(calendar.KindValidation, err, "bad SEQUENCE %q", seq.Value)
		}
		e.Sequence = n
	}
	if stamp, err := comp.Props.DateTime(ical.PropDateTimeStamp, nil); err == nil {
		e.Changed = stamp
	}
	if start, err := comp.Props.DateTime(ical.PropDateTimeStart, nil); err == nil {
		e.Start = start
	}
	if end, err := comp.Props.DateTime(ical.PropDateTimeEnd, nil); err == nil {
		e.End = end
	}
	if summary, err := comp.Props.Text(ical.PropSummary); err == nil {
		e.Summary = summary
	}
	if loc, err := comp.Props.Text(ical.PropLocation); err == nil {
		e.Location = loc
	}
	if desc, err := comp.Props.Text(ical.PropDescription); err == nil {
		e.Description = desc
	}
	if status := comp.Props.Get(ical.PropStatus); status != nil {
		e.Status = calendar.EventStatus(strings.ToUpper(status.Value))
	}
	if cats := comp.Props.Get(ical.PropCategories); cats != nil && cats.Value != "" {
		list, err := cats.TextList()
		if err != nil {
			return nil, calendar.WrapError(calendar.KindValidation, err, "bad CATEGORIES %q", cats.Value)
		}
		e.Categories = list
	}
	if transp := comp.Props.Get("TRANSP"); transp != nil {
		if strings.EqualFold(transp.Value, "TRANSPARENT") {
			e.FreeBusy = calendar.FreeBusyFree
		} else {
			e.FreeBusy = calendar.FreeBusyBusy
		}
	}
	if org := comp.Props.Get("ORGANIZER"); org != nil {
		e.Organizer = &calendar.Attendee{
			Email: stripMailto(org.Value),
			Name:  org.Params.Get("CN"),
			Role:  calendar.RoleOrganizer,
		}
	}
	for _, prop := range comp.Props[ical.PropAttendee] {
		e.Attendees = append(e.Attendees, propToAttendee(prop))
	}
	if rr := comp.Props.Get(ical.PropRecurrenceRule); rr != nil && rr.Value != "" {
		rule, err := recurrence.RuleFromString(rr.Value)
		if err != nil {
			return nil, err
		}
		e.Recurrence = rule
	}
	for _, prop := range comp.Props[ical.PropExceptionDates] {
		for _, v := range strings.Split(prop.Value, ",") {
			ex, err := parseICalDate(v)
			if err != nil {
				return nil, calendar.WrapError(calendar.KindValidation, err, "bad EXDATE %q", v)
			}
			e.ExDates = append(e.ExDates, ex)
		}
	}
	return e, nil
}

func propToAttendee(prop ical.Prop) calendar.Attendee {
	return calendar.Attendee{
		Email:         stripMailto(prop.Value),
		Name:          prop.Params.Get("CN"),
		Role:          calendar.Role(strings.ToUpper(prop.Params.Get("ROLE"))),
		CUType:        calendar.CUType(strings.ToUpper(prop.Params.Get("CUTYPE"))),
		Status:        calendar.PartStat(strings.ToUpper(prop.Params.Get("PARTSTAT"))),
		RSVP:          strings.EqualFold(prop.Params.Get("RSVP"), "TRUE"),
		DelegatedTo:   stripMailto(prop.Params.Get("DELEGATED-TO")),
		DelegatedFrom: stripMailto(prop.Params.Get("DELEGATED-FROM")),
	}
}

func stripMailto(v string) string {
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		return v[7:]
	}
	return v
}

func parseICalDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if len(v) == 8 {
		return time.ParseInLocation("20060102", v, time.UTC)
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z0700", v)
	}
	return time.ParseInLocation("20060102T150405", v, time.UTC)
}
