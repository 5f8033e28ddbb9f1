package models

import "time"

// ExceptionChangeType says what happened to the affected instance(s).
type ExceptionChangeType string

const (
	ExceptionModified ExceptionChangeType = "MODIFIED"
	ExceptionDeleted  ExceptionChangeType = "DELETED"
)

// DeletionScope bounds which instances an exception applies to.
type DeletionScope string

const (
	ScopeThisOnly         DeletionScope = "THIS_ONLY"
	ScopeThisAndFollowing DeletionScope = "THIS_AND_FOLLOWING"
)

// RecurrenceException records a single-instance edit or delete on a recurring
// event. Excepted instances are removed from engine expansion, and moved
// instances carry their replacement time.
type RecurrenceException struct {
	ExceptionID    int64               `json:"exception_id"`
	EventID        int64               `json:"event_id"`
	MemberID       int64               `json:"member_id"`
	OccurrenceTime time.Time           `json:"occurrence_time"` // the instance affected
	NewTime        *time.Time          `json:"new_time"`        // set when ChangeType is MODIFIED
	ChangeType     ExceptionChangeType `json:"change_type"`
	Scope          DeletionScope       `json:"scope"`
	CreatedAt      time.Time           `json:"created_at"`
}
