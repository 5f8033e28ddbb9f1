package models

import "time"

// LifecycleStatus is the reminder's position in its life cycle. TERMINATED is
// absorbing: rows in it only leave by physical deletion.
type LifecycleStatus string

const (
	LifecycleActive     LifecycleStatus = "ACTIVE"
	LifecycleInactive   LifecycleStatus = "INACTIVE"
	LifecycleTerminated LifecycleStatus = "TERMINATED"
)

// CanTransitionTo reports whether moving to the given status is legal.
func (s LifecycleStatus) CanTransitionTo(to LifecycleStatus) bool {
	if s == LifecycleTerminated {
		return false
	}
	switch to {
	case LifecycleActive, LifecycleInactive, LifecycleTerminated:
		return true
	}
	return false
}

// InteractionStatus tracks how the member has responded to the reminder.
type InteractionStatus string

const (
	InteractionPending   InteractionStatus = "PENDING"
	InteractionChecked   InteractionStatus = "CHECKED"
	InteractionDismissed InteractionStatus = "DISMISSED"
)

// Reminder is a persisted notification intent tied to the next unfired
// occurrence of an event or todo. TargetID is a back-reference, not an
// ownership edge.
type Reminder struct {
	ReminderID        int64             `json:"reminder_id"`
	MemberID          int64             `json:"member_id"`
	Title             string            `json:"title"`
	OccurrenceTime    time.Time         `json:"occurrence_time"`
	TargetType        TargetType        `json:"target_type"`
	TargetID          int64             `json:"target_id"`
	InteractionStatus InteractionStatus `json:"interaction_status"`
	LifecycleStatus   LifecycleStatus   `json:"lifecycle_status"`
	CreatedAt         time.Time         `json:"created_at"`
}
