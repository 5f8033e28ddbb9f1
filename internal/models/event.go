package models

import (
	"time"

	"github.com/daheeyun/haruplan/internal/recurrence"
)

type Event struct {
	EventID       int64            `json:"event_id"`
	MemberID      int64            `json:"member_id"`
	Title         string           `json:"title"`
	Location      string           `json:"location"`
	Description   string           `json:"description"`
	StartTime     time.Time        `json:"start_time"` // anchor for recurrence calculation
	Duration      int              `json:"duration"`   // duration in minutes
	RepeatRule    *recurrence.Rule `json:"repeat_rule"`
	RepeatGroupID *int64           `json:"repeat_group_id"` // shared by events split from one series
	CreatedAt     time.Time        `json:"created_at"`
}

// IsRecurring reports whether this event repeats.
func (e *Event) IsRecurring() bool {
	return e.RepeatRule != nil && e.RepeatRule.IsRecurring()
}

// EndTime calculates the end time from the anchor and duration.
func (e *Event) EndTime() time.Time {
	return e.StartTime.Add(time.Duration(e.Duration) * time.Minute)
}
