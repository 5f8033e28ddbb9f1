// Package recurrence defines the recurrence rule model and the pure engine
// that turns a rule plus a reference time into concrete occurrence times.
package recurrence

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/daheeyun/haruplan/internal/apperr"
)

type Frequency string

const (
	FreqNone    Frequency = "NONE"
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
)

// MonthlyPattern selects which days of a stepped month produce occurrences.
type MonthlyPattern string

const (
	// MonthlySingleDay repeats on one day-of-month. Months where that day
	// does not exist are skipped, not clamped.
	MonthlySingleDay MonthlyPattern = "SINGLE_DAY"
	MonthlyWeekday   MonthlyPattern = "WEEKDAY"
	MonthlyWeekend   MonthlyPattern = "WEEKEND"
	MonthlyAllDays   MonthlyPattern = "ALL_DAYS"
)

type EndKind string

const (
	EndNever  EndKind = "NEVER"
	EndByDate EndKind = "END_BY_DATE"
	EndByCount EndKind = "END_BY_COUNT"
)

// End is the rule's end condition. Exactly one variant is populated: Until
// for EndByDate, Count for EndByCount, neither for EndNever.
type End struct {
	Kind  EndKind
	Until time.Time
	Count int
}

func Never() End                 { return End{Kind: EndNever} }
func UntilDate(t time.Time) End  { return End{Kind: EndByDate, Until: t} }
func AfterCount(n int) End       { return End{Kind: EndByCount, Count: n} }

// Rule is the declarative repeating-schedule definition.
type Rule struct {
	Frequency Frequency `validate:"required,oneof=NONE DAILY WEEKLY MONTHLY YEARLY"`
	Interval  int       `validate:"min=1"`

	// Weekdays is required and non-empty when Frequency is WEEKLY.
	Weekdays []time.Weekday

	// Monthly and MonthDay apply when Frequency is MONTHLY.
	Monthly  MonthlyPattern
	MonthDay int

	End End
}

var validate = validator.New()

// Validate rejects malformed rules before they reach the engine. Nothing is
// silently corrected.
func (r Rule) Validate() error {
	if err := validate.Struct(r); err != nil {
		return apperr.Wrap(apperr.CodeInvalidRecurrenceRule, "recurrence rule rejected", err)
	}
	switch r.Frequency {
	case FreqWeekly:
		if len(r.Weekdays) == 0 {
			return apperr.Validation("weekly rule requires a non-empty weekday set")
		}
		for _, wd := range r.Weekdays {
			if wd < time.Sunday || wd > time.Saturday {
				return apperr.Validation(fmt.Sprintf("invalid weekday %d", wd))
			}
		}
	case FreqMonthly:
		switch r.Monthly {
		case MonthlySingleDay:
			if r.MonthDay < 1 || r.MonthDay > 31 {
				return apperr.Validation(fmt.Sprintf("invalid day-of-month %d", r.MonthDay))
			}
		case MonthlyWeekday, MonthlyWeekend, MonthlyAllDays:
		default:
			return apperr.Validation(fmt.Sprintf("invalid monthly pattern %q", r.Monthly))
		}
	}
	switch r.End.Kind {
	case EndNever:
		if !r.End.Until.IsZero() || r.End.Count != 0 {
			return apperr.Validation("never-ending rule must not carry an end date or count")
		}
	case EndByDate:
		if r.End.Until.IsZero() {
			return apperr.Validation("end-by-date rule requires an end date")
		}
		if r.End.Count != 0 {
			return apperr.Validation("end-by-date rule must not carry a count")
		}
	case EndByCount:
		if r.End.Count < 1 {
			return apperr.Validation("end-by-count rule requires a positive count")
		}
		if !r.End.Until.IsZero() {
			return apperr.Validation("end-by-count rule must not carry an end date")
		}
	default:
		return apperr.Validation(fmt.Sprintf("invalid end condition %q", r.End.Kind))
	}
	return nil
}

// IsRecurring reports whether the rule produces more than a single instance.
func (r Rule) IsRecurring() bool {
	return r.Frequency != "" && r.Frequency != FreqNone
}

// isoWeekday maps Go's Sunday-based weekday onto ISO numbering (Mon=1..Sun=7).
func isoWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// sortedWeekdays returns the weekday set deduplicated and ordered by ISO
// weekday, Monday first.
func sortedWeekdays(in []time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]bool, len(in))
	out := make([]time.Weekday, 0, len(in))
	for _, wd := range in {
		if !seen[wd] {
			seen[wd] = true
			out = append(out, wd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return isoWeekday(out[i]) < isoWeekday(out[j]) })
	return out
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
	time.Sunday:    "SU",
}

// RRuleString renders the rule as an RFC 5545 RRULE value.
func (r Rule) RRuleString() string {
	if !r.IsRecurring() {
		return ""
	}
	parts := []string{fmt.Sprintf("FREQ=%s", r.Frequency)}
	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}
	switch r.Frequency {
	case FreqWeekly:
		days := make([]string, 0, len(r.Weekdays))
		for _, wd := range sortedWeekdays(r.Weekdays) {
			days = append(days, weekdayNames[wd])
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	case FreqMonthly:
		switch r.Monthly {
		case MonthlySingleDay:
			parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", r.MonthDay))
		case MonthlyWeekday:
			parts = append(parts, "BYDAY=MO,TU,WE,TH,FR")
		case MonthlyWeekend:
			parts = append(parts, "BYDAY=SA,SU")
		case MonthlyAllDays:
			// every day of the stepped month
		}
	}
	switch r.End.Kind {
	case EndByCount:
		parts = append(parts, fmt.Sprintf("COUNT=%d", r.End.Count))
	case EndByDate:
		parts = append(parts, "UNTIL="+r.End.Until.UTC().Format("20060102T150405Z"))
	}
	return strings.Join(parts, ";")
}
