package recurrence

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"

	"github.com/pverga/libitip/calendar"
)

var freqToRRule = map[calendar.Frequency]rrule.Frequency{
	calendar.FreqYearly:  rrule.YEARLY,
	calendar.FreqMonthly: rrule.MONTHLY,
	calendar.FreqWeekly:  rrule.WEEKLY,
	calendar.FreqDaily:   rrule.DAILY,
	calendar.FreqHourly:  rrule.HOURLY,
}

var rruleToFreq = map[rrule.Frequency]calendar.Frequency{
	rrule.YEARLY:  calendar.FreqYearly,
	rrule.MONTHLY: calendar.FreqMonthly,
	rrule.WEEKLY:  calendar.FreqWeekly,
	rrule.DAILY:   calendar.FreqDaily,
	rrule.HOURLY:  calendar.FreqHourly,
}

var weekdayCodes = map[string]rrule.Weekday{
	"MO": rrule.MO, "TU": rrule.TU, "WE": rrule.WE, "TH": rrule.TH,
	"FR": rrule.FR, "SA": rrule.SA, "SU": rrule.SU,
}

// ruleToROption converts the structured rule into an rrule option anchored
// at dtstart. The rule must already be validated.
func ruleToROption(rule *calendar.RecurrenceRule, dtstart time.Time) (*rrule.ROption, error) {
	freq, ok := freqToRRule[rule.Freq]
	if !ok {
		return nil, calendar.NewError(calendar.KindValidation,
			"unsupported recurrence frequency %q", rule.Freq)
	}
	opt := &rrule.ROption{
		Freq:       freq,
		Dtstart:    dtstart,
		Interval:   rule.Interval,
		Bymonth:    rule.ByMonth,
		Bymonthday: rule.ByMonthDay,
		Bysetpos:   rule.BySetPos,
	}
	if count, ok := rule.Count.Get(); ok {
		opt.Count = count
	}
	if until, ok := rule.Until.Get(); ok {
		opt.Until = until
	}
	if rule.WeekStart != "" {
		wd, ok := weekdayCodes[rule.WeekStart]
		if !ok {
			return nil, calendar.NewError(calendar.KindValidation,
				"invalid week start %q", rule.WeekStart)
		}
		opt.Wkst = wd
	}
	for _, code := range rule.ByDay {
		wd, err := parseByDay(code)
		if err != nil {
			return nil, err
		}
		opt.Byweekday = append(opt.Byweekday, wd)
	}
	return opt, nil
}

// parseByDay parses a BYDAY entry such as "MO", "2TU" or "-1FR".
func parseByDay(code string) (rrule.Weekday, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < 2 {
		return rrule.Weekday{}, calendar.NewError(calendar.KindValidation,
			"invalid BYDAY entry %q", code)
	}
	day := code[len(code)-2:]
	wd, ok := weekdayCodes[day]
	if !ok {
		return rrule.Weekday{}, calendar.NewError(calendar.KindValidation,
			"invalid BYDAY weekday %q", code)
	}
	if prefix := code[:len(code)-2]; prefix != "" {
		n, err := strconv.Atoi(prefix)
		if err != nil || n == 0 {
			return rrule.Weekday{}, calendar.NewError(calendar.KindValidation,
				"invalid BYDAY ordinal %q", code)
		}
		return wd.Nth(n), nil
	}
	return wd, nil
}

// RuleToString renders the rule as an RRULE property value.
func RuleToString(rule *calendar.RecurrenceRule) (string, error) {
	if err := rule.Validate(); err != nil {
		return "", err
	}
	parts := []string{"FREQ=" + string(rule.Freq)}
	if rule.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(rule.Interval))
	}
	if count, ok := rule.Count.Get(); ok {
		parts = append(parts, "COUNT="+strconv.Itoa(count))
	}
	if until, ok := rule.Until.Get(); ok {
		parts = append(parts, "UNTIL="+until.UTC().Format("20060102T150405Z"))
	}
	if len(rule.ByDay) > 0 {
		parts = append(parts, "BYDAY="+strings.Join(rule.ByDay, ","))
	}
	if len(rule.ByMonth) > 0 {
		parts = append(parts, "BYMONTH="+joinInts(rule.ByMonth))
	}
	if len(rule.ByMonthDay) > 0 {
		parts = append(parts, "BYMONTHDAY="+joinInts(rule.ByMonthDay))
	}
	if len(rule.BySetPos) > 0 {
		parts = append(parts, "BYSETPOS="+joinInts(rule.BySetPos))
	}
	if rule.WeekStart != "" {
		parts = append(parts, "WKST="+rule.WeekStart)
	}
	return strings.Join(parts, ";"), nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// RuleFromString parses an RRULE property value into a structured rule.
func RuleFromString(s string) (*calendar.RecurrenceRule, error) {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return nil, calendar.WrapError(calendar.KindValidation, err, "parse RRULE %q", s)
	}
	rule := &calendar.RecurrenceRule{
		Freq:       rruleToFreq[opt.Freq],
		Interval:   opt.Interval,
		ByMonth:    opt.Bymonth,
		ByMonthDay: opt.Bymonthday,
		BySetPos:   opt.Bysetpos,
	}
	if rule.Interval == 0 {
		rule.Interval = 1
	}
	if opt.Count > 0 {
		rule.Count = mo.Some(opt.Count)
	}
	if !opt.Until.IsZero() {
		rule.Until = mo.Some(opt.Until)
	}
	for _, wd := range opt.Byweekday {
		code := wd.String()
		if n := wd.N(); n != 0 {
			code = strconv.Itoa(n) + code
		}
		rule.ByDay = append(rule.ByDay, code)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}
