// Package suggestion turns observed occurrence history into recurrence
// proposals and retires proposals that no longer apply.
package suggestion

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/daheeyun/haruplan/internal/recurrence"
)

// StableType classifies how consistent the most recent interval deltas are.
type StableType int

const (
	ContaminatedStable StableType = iota
	PartiallyStable
	PerfectlyStable
)

func (s StableType) String() string {
	switch s {
	case PerfectlyStable:
		return "PERFECTLY_STABLE"
	case PartiallyStable:
		return "PARTIALLY_STABLE"
	default:
		return "CONTAMINATED_STABLE"
	}
}

type PatternKind string

const (
	PatternInterval   PatternKind = "INTERVAL"
	PatternWeeklySet  PatternKind = "WEEKLY_SET"
	PatternMonthlySet PatternKind = "MONTHLY_SET"
)

// PatternValue is a candidate recurrence shape derived from observed data.
// Exactly one variant backs a detection result.
type PatternValue interface {
	Kind() PatternKind
	// RRule renders the shape as an RFC 5545 RRULE value.
	RRule() string
	elementCount() int
}

// IntervalValue is a fixed day gap.
type IntervalValue struct {
	Days int
}

func (v IntervalValue) Kind() PatternKind { return PatternInterval }
func (v IntervalValue) elementCount() int { return 1 }
func (v IntervalValue) RRule() string {
	r := recurrence.Rule{Frequency: recurrence.FreqDaily, Interval: v.Days, End: recurrence.Never()}
	return r.RRuleString()
}

// WeeklySetValue is a set of weekdays repeating every WeekDiff weeks.
type WeeklySetValue struct {
	WeekDiff int
	Weekdays []time.Weekday
}

func (v WeeklySetValue) Kind() PatternKind { return PatternWeeklySet }
func (v WeeklySetValue) elementCount() int { return len(v.Weekdays) }
func (v WeeklySetValue) RRule() string {
	r := recurrence.Rule{
		Frequency: recurrence.FreqWeekly,
		Interval:  v.WeekDiff,
		Weekdays:  v.Weekdays,
		End:       recurrence.Never(),
	}
	return r.RRuleString()
}

// MonthlySetValue is a set of days-of-month repeating every MonthDiff months.
type MonthlySetValue struct {
	MonthDiff int
	MonthDays []int
}

func (v MonthlySetValue) Kind() PatternKind { return PatternMonthlySet }
func (v MonthlySetValue) elementCount() int { return len(v.MonthDays) }
func (v MonthlySetValue) RRule() string {
	if len(v.MonthDays) == 1 {
		r := recurrence.Rule{
			Frequency: recurrence.FreqMonthly,
			Interval:  v.MonthDiff,
			Monthly:   recurrence.MonthlySingleDay,
			MonthDay:  v.MonthDays[0],
			End:       recurrence.Never(),
		}
		return r.RRuleString()
	}
	days := make([]string, len(v.MonthDays))
	for i, d := range v.MonthDays {
		days[i] = fmt.Sprintf("%d", d)
	}
	parts := []string{"FREQ=MONTHLY"}
	if v.MonthDiff > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", v.MonthDiff))
	}
	parts = append(parts, "BYMONTHDAY="+strings.Join(days, ","))
	return strings.Join(parts, ";")
}

// DetectionStatus distinguishes a detection from the two recoverable
// non-answers; neither of those is an error.
type DetectionStatus string

const (
	StatusDetected            DetectionStatus = "DETECTED"
	StatusInsufficientHistory DetectionStatus = "INSUFFICIENT_HISTORY"
	StatusNoStablePattern     DetectionStatus = "NO_STABLE_PATTERN"
)

// Detection is the winning pattern and its stability classification.
type Detection struct {
	Pattern   PatternValue
	Stability StableType
}

// Outcome is the full detector answer.
type Outcome struct {
	Status    DetectionStatus
	Detection *Detection
}

// MinimumHistory is the smallest occurrence count a pattern can be read from.
const MinimumHistory = 3

// Candidate pattern weights. A bare fixed interval is the weakest
// explanation; weekly and monthly set shapes rank equally above it.
const (
	weightInterval = 1
	weightWeekly   = 2
	weightMonthly  = 2
)

// Detector inspects the occurrence-interval history of one recurring target.
type Detector struct{}

type candidate struct {
	value     PatternValue
	stability StableType
	weight    int
	elements  int
	order     int // evaluation order, final tie break
}

// Detect consumes prior occurrence timestamps ordered oldest to newest and
// proposes a recurrence shape. It never emits a CONTAMINATED guess: when no
// candidate reaches at least PARTIALLY_STABLE the outcome is NO_STABLE_PATTERN.
func (Detector) Detect(history []time.Time) Outcome {
	dates := normalize(history)
	if len(dates) < MinimumHistory {
		return Outcome{Status: StatusInsufficientHistory}
	}

	var candidates []candidate
	candidates = append(candidates, detectInterval(dates))
	if c, ok := detectWeekly(dates); ok {
		candidates = append(candidates, c)
	}
	if c, ok := detectMonthly(dates); ok {
		candidates = append(candidates, c)
	}

	best := (*candidate)(nil)
	for i := range candidates {
		c := &candidates[i]
		if c.stability < PartiallyStable {
			continue
		}
		if best == nil || better(c, best) {
			best = c
		}
	}
	if best == nil {
		return Outcome{Status: StatusNoStablePattern}
	}
	return Outcome{
		Status:    StatusDetected,
		Detection: &Detection{Pattern: best.value, Stability: best.stability},
	}
}

// better ranks by weight, then by the simpler explanation (fewer distinct set
// elements), then by evaluation order.
func better(a, b *candidate) bool {
	if a.weight != b.weight {
		return a.weight > b.weight
	}
	if a.elements != b.elements {
		return a.elements < b.elements
	}
	return a.order < b.order
}

// normalize truncates to day precision and drops same-day duplicates.
func normalize(history []time.Time) []time.Time {
	out := make([]time.Time, 0, len(history))
	for _, t := range history {
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if len(out) > 0 && !d.After(out[len(out)-1]) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// classify applies the last-two-deltas rule over a per-delta match predicate:
// PERFECTLY_STABLE when the two most recent deltas both match the dominant
// pattern, PARTIALLY_STABLE when the two before the last match but the most
// recent breaks it, CONTAMINATED_STABLE otherwise.
func classify(match func(int) bool, deltas int) StableType {
	if deltas >= 2 && match(deltas-1) && match(deltas-2) {
		return PerfectlyStable
	}
	if deltas >= 3 && match(deltas-2) && match(deltas-3) && !match(deltas-1) {
		return PartiallyStable
	}
	return ContaminatedStable
}

func detectInterval(dates []time.Time) candidate {
	deltas := make([]int, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		deltas[i-1] = daysBetween(dates[i-1], dates[i])
	}
	dom := dominantOf(deltas)
	match := func(j int) bool { return deltas[j] == dom }
	return candidate{
		value:     IntervalValue{Days: dom},
		stability: classify(match, len(deltas)),
		weight:    weightInterval,
		elements:  1,
		order:     0,
	}
}

func detectWeekly(dates []time.Time) (candidate, bool) {
	weeks := make([]int, len(dates))
	days := make([]int, len(dates)) // ISO weekday numbers
	for i, d := range dates {
		weeks[i] = weekIndex(d)
		days[i] = isoDay(d.Weekday())
	}

	set := distinctSorted(days)
	// A single-weekday series is already the fixed-interval explanation.
	if len(set) < 2 {
		return candidate{}, false
	}
	groups := groupBy(weeks, days)
	if len(groups) < 2 || !groupsConsistent(groups, set) {
		return candidate{}, false
	}
	dom, ok := dominantGap(weeks)
	if !ok {
		return candidate{}, false
	}

	member := memberFn(set)
	match := func(j int) bool {
		gap := weeks[j+1] - weeks[j]
		if !member(days[j+1]) {
			return false
		}
		if gap == 0 {
			return days[j+1] > days[j]
		}
		return gap == dom
	}

	weekdays := make([]time.Weekday, len(set))
	for i, iso := range set {
		weekdays[i] = fromISODay(iso)
	}
	return candidate{
		value:     WeeklySetValue{WeekDiff: dom, Weekdays: weekdays},
		stability: classify(match, len(dates)-1),
		weight:    weightWeekly,
		elements:  len(set),
		order:     1,
	}, true
}

func detectMonthly(dates []time.Time) (candidate, bool) {
	months := make([]int, len(dates))
	days := make([]int, len(dates))
	for i, d := range dates {
		months[i] = d.Year()*12 + int(d.Month()) - 1
		days[i] = d.Day()
	}

	set := distinctSorted(days)
	groups := groupBy(months, days)
	if len(groups) < 2 || !groupsConsistent(groups, set) {
		return candidate{}, false
	}
	dom, ok := dominantGap(months)
	if !ok {
		return candidate{}, false
	}

	member := memberFn(set)
	match := func(j int) bool {
		gap := months[j+1] - months[j]
		if !member(days[j+1]) {
			return false
		}
		if gap == 0 {
			return days[j+1] > days[j]
		}
		return gap == dom
	}

	return candidate{
		value:     MonthlySetValue{MonthDiff: dom, MonthDays: set},
		stability: classify(match, len(dates)-1),
		weight:    weightMonthly,
		elements:  len(set),
		order:     2,
	}, true
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// weekIndex numbers ISO weeks monotonically; 1970-01-05 is a Monday.
func weekIndex(t time.Time) int {
	epochMonday := time.Date(1970, 1, 5, 0, 0, 0, 0, time.UTC)
	days := int(t.Sub(epochMonday) / (24 * time.Hour))
	if days < 0 {
		days -= 6
	}
	return days / 7
}

func isoDay(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

func fromISODay(iso int) time.Weekday {
	if iso == 7 {
		return time.Sunday
	}
	return time.Weekday(iso)
}

func distinctSorted(vals []int) []int {
	seen := make(map[int]bool, len(vals))
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func memberFn(set []int) func(int) bool {
	m := make(map[int]bool, len(set))
	for _, v := range set {
		m[v] = true
	}
	return func(v int) bool { return m[v] }
}

// groupBy collects the element values of each distinct cycle index, in cycle
// order.
func groupBy(cycles, vals []int) [][]int {
	var groups [][]int
	lastCycle := 0
	for i := range cycles {
		if i == 0 || cycles[i] != lastCycle {
			groups = append(groups, []int{vals[i]})
		} else {
			groups[len(groups)-1] = append(groups[len(groups)-1], vals[i])
		}
		lastCycle = cycles[i]
	}
	return groups
}

// groupsConsistent checks the set repeats per cycle: interior cycles must
// carry the full set; the first and last may be partial (the history can
// start or end mid-cycle). With only two cycles there is no interior to
// anchor the set, so both must carry it in full.
func groupsConsistent(groups [][]int, set []int) bool {
	for i, g := range groups {
		gs := distinctSorted(g)
		if len(groups) > 2 && (i == 0 || i == len(groups)-1) {
			if !subset(gs, set) {
				return false
			}
			continue
		}
		if len(gs) != len(set) {
			return false
		}
		for j := range gs {
			if gs[j] != set[j] {
				return false
			}
		}
	}
	return true
}

func subset(sub, set []int) bool {
	member := memberFn(set)
	for _, v := range sub {
		if !member(v) {
			return false
		}
	}
	return true
}

// dominantGap is the most frequent nonzero step between consecutive cycle
// indices; frequency ties prefer the smaller step.
func dominantGap(cycles []int) (int, bool) {
	var gaps []int
	for i := 1; i < len(cycles); i++ {
		if g := cycles[i] - cycles[i-1]; g > 0 {
			gaps = append(gaps, g)
		}
	}
	if len(gaps) == 0 {
		return 0, false
	}
	return dominantOf(gaps), true
}

// dominantOf is the mode; frequency ties prefer the smaller value.
func dominantOf(vals []int) int {
	counts := make(map[int]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	best, bestCount := 0, 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}
