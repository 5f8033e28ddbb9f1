package models

import (
	"time"

	"github.com/daheeyun/haruplan/internal/recurrence"
)

type Todo struct {
	TodoID      int64            `json:"todo_id"`
	MemberID    int64            `json:"member_id"`
	Title       string           `json:"title"`
	Priority    int              `json:"priority"`
	Description string           `json:"description"`
	DueTime     *time.Time       `json:"due_time"` // anchor for recurrence calculation
	RepeatRule  *recurrence.Rule `json:"repeat_rule"`
	CompletedAt *time.Time       `json:"completed_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (t *Todo) IsCompleted() bool {
	return t.CompletedAt != nil
}

// IsRecurring reports whether this todo repeats.
func (t *Todo) IsRecurring() bool {
	return t.RepeatRule != nil && t.RepeatRule.IsRecurring()
}
