package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/daheeyun/haruplan/internal/apperr"
)

// neverExpandHorizon bounds Expand for never-ending rules. An open-ended rule
// is only ever materialized this far past the window start.
const neverExpandHorizon = 3 // months

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

var rruleFreqs = map[Frequency]rrule.Frequency{
	FreqDaily:   rrule.DAILY,
	FreqWeekly:  rrule.WEEKLY,
	FreqMonthly: rrule.MONTHLY,
	FreqYearly:  rrule.YEARLY,
}

// build compiles a rule anchored at the given start into an rrule iterator.
func build(rule Rule, anchor time.Time) (*rrule.RRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	opt := rrule.ROption{
		Freq:     rruleFreqs[rule.Frequency],
		Interval: rule.Interval,
		Dtstart:  anchor,
		Wkst:     rrule.MO,
	}
	switch rule.Frequency {
	case FreqWeekly:
		for _, wd := range sortedWeekdays(rule.Weekdays) {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[wd])
		}
	case FreqMonthly:
		switch rule.Monthly {
		case MonthlySingleDay:
			// Months missing this day produce no occurrence (RFC 5545
			// semantics); the series never drifts onto a clamped date.
			opt.Bymonthday = []int{rule.MonthDay}
		case MonthlyWeekday:
			opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
		case MonthlyWeekend:
			opt.Byweekday = []rrule.Weekday{rrule.SA, rrule.SU}
		case MonthlyAllDays:
			for d := 1; d <= 31; d++ {
				opt.Bymonthday = append(opt.Bymonthday, d)
			}
		}
	}
	switch rule.End.Kind {
	case EndByDate:
		opt.Until = rule.End.Until
	case EndByCount:
		opt.Count = rule.End.Count
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidRecurrenceRule, "recurrence rule rejected", err)
	}
	return r, nil
}

// NextOccurrence returns the first occurrence strictly after the given time,
// or nil when the series is exhausted. The computation is anchored at the
// rule's declared start, never at a previous occurrence, so repeated calls
// with the same inputs return the same answer.
func NextOccurrence(rule Rule, anchor, after time.Time) (*time.Time, error) {
	if !rule.IsRecurring() {
		if anchor.After(after) {
			t := anchor
			return &t, nil
		}
		return nil, nil
	}
	r, err := build(rule, anchor)
	if err != nil {
		return nil, err
	}
	next := r.After(after, false)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}

// PreviousOccurrence returns the last occurrence at or before the given time,
// or nil when none exists.
func PreviousOccurrence(rule Rule, anchor, before time.Time) (*time.Time, error) {
	if !rule.IsRecurring() {
		if !anchor.After(before) {
			t := anchor
			return &t, nil
		}
		return nil, nil
	}
	r, err := build(rule, anchor)
	if err != nil {
		return nil, err
	}
	prev := r.Before(before, true)
	if prev.IsZero() {
		return nil, nil
	}
	return &prev, nil
}

// Expand returns every occurrence inside [windowStart, windowEnd], ordered and
// finite. Never-ending rules are additionally bounded by the expand horizon.
func Expand(rule Rule, anchor, windowStart, windowEnd time.Time) ([]time.Time, error) {
	if windowEnd.Before(windowStart) {
		return nil, apperr.Validation("expand window end precedes window start")
	}
	if !rule.IsRecurring() {
		if !anchor.Before(windowStart) && !anchor.After(windowEnd) {
			return []time.Time{anchor}, nil
		}
		return nil, nil
	}
	if rule.End.Kind == EndNever {
		if horizon := windowStart.AddDate(0, neverExpandHorizon, 0); windowEnd.After(horizon) {
			windowEnd = horizon
		}
	}
	r, err := build(rule, anchor)
	if err != nil {
		return nil, err
	}
	return r.Between(windowStart, windowEnd, true), nil
}
