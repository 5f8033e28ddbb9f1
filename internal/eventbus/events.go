// Package eventbus carries change notifications between domain writes and the
// reminder/suggestion side. Publishers enqueue only after their transaction
// has committed, so subscribers never observe rolled-back state.
package eventbus

import (
	"time"

	"github.com/daheeyun/haruplan/internal/models"
)

// Event is implemented by every change-notification payload.
type Event interface {
	EventType() string
}

// PlanChanged is raised after an event or todo is created or edited.
type PlanChanged struct {
	EventID        int64
	MemberID       int64
	Title          string
	OccurrenceTime time.Time
	TargetType     models.TargetType
}

func (PlanChanged) EventType() string { return "plan.changed" }

// RecurrenceExceptionChanged is raised after a single instance of a recurring
// series is moved or removed.
type RecurrenceExceptionChanged struct {
	ExceptionID    int64
	EventID        int64
	TargetType     models.TargetType
	MemberID       int64
	Title          string
	OccurrenceTime time.Time
	IsRecurring    bool
	ChangeType     models.ExceptionChangeType
}

func (RecurrenceExceptionChanged) EventType() string { return "recurrence_exception.changed" }

// ReminderDeleted is raised after the source of a reminder is deleted, either
// a single instance or this-and-following.
type ReminderDeleted struct {
	ExceptionID    int64
	MemberID       int64
	OccurrenceTime time.Time
	TargetID       int64
	TargetType     models.TargetType
	DeletedType    models.DeletionScope
}

func (ReminderDeleted) EventType() string { return "reminder.deleted" }

// SuggestionInvalidate asks the suggestion side to retire every suggestion of
// the member whose stored target hash matches.
type SuggestionInvalidate struct {
	MemberID      int64
	TargetKeyHash string
	Reason        string
}

func (SuggestionInvalidate) EventType() string { return "suggestion.invalidate" }
