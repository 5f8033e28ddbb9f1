package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daheeyun/haruplan/internal/apperr"
)

func TestValidateRejectsMalformedRules(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
	}{
		{"zero interval", Rule{Frequency: FreqDaily, Interval: 0, End: Never()}},
		{"weekly without weekdays", Rule{Frequency: FreqWeekly, Interval: 1, End: Never()}},
		{"monthly day out of range", Rule{Frequency: FreqMonthly, Interval: 1, Monthly: MonthlySingleDay, MonthDay: 32, End: Never()}},
		{"unknown monthly pattern", Rule{Frequency: FreqMonthly, Interval: 1, Monthly: "FULL_MOON", End: Never()}},
		{"end date and count together", Rule{Frequency: FreqDaily, Interval: 1, End: End{Kind: EndByDate, Until: time.Now(), Count: 5}}},
		{"end-by-count without count", Rule{Frequency: FreqDaily, Interval: 1, End: End{Kind: EndByCount}}},
		{"never with leftover count", Rule{Frequency: FreqDaily, Interval: 1, End: End{Kind: EndNever, Count: 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			require.Error(t, err)
			assert.Equal(t, apperr.CodeInvalidRecurrenceRule, apperr.CodeOf(err))
		})
	}
}

func TestValidateAcceptsWellFormedRules(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
	}{
		{"daily", Rule{Frequency: FreqDaily, Interval: 1, End: Never()}},
		{"biweekly mon wed", Rule{Frequency: FreqWeekly, Interval: 2, Weekdays: []time.Weekday{time.Monday, time.Wednesday}, End: Never()}},
		{"monthly 15th with count", Rule{Frequency: FreqMonthly, Interval: 1, Monthly: MonthlySingleDay, MonthDay: 15, End: AfterCount(12)}},
		{"yearly until", Rule{Frequency: FreqYearly, Interval: 1, End: UntilDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, tc.rule.Validate())
		})
	}
}

func TestRRuleString(t *testing.T) {
	weekly := Rule{
		Frequency: FreqWeekly,
		Interval:  2,
		Weekdays:  []time.Weekday{time.Wednesday, time.Monday},
		End:       Never(),
	}
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE", weekly.RRuleString())

	monthly := Rule{
		Frequency: FreqMonthly,
		Interval:  1,
		Monthly:   MonthlySingleDay,
		MonthDay:  15,
		End:       AfterCount(6),
	}
	assert.Equal(t, "FREQ=MONTHLY;BYMONTHDAY=15;COUNT=6", monthly.RRuleString())

	oneOff := Rule{Frequency: FreqNone, Interval: 1, End: Never()}
	assert.Equal(t, "", oneOff.RRuleString())
}
