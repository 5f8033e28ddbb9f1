package models

import "time"

// SuggestionStatus moves monotonically: PRIMARY→SECONDARY→{ACCEPTED|REJECTED},
// or PRIMARY directly to a final state.
type SuggestionStatus string

const (
	SuggestionPrimary   SuggestionStatus = "PRIMARY"
	SuggestionSecondary SuggestionStatus = "SECONDARY"
	SuggestionAccepted  SuggestionStatus = "ACCEPTED"
	SuggestionRejected  SuggestionStatus = "REJECTED"
)

// CanTransitionTo reports whether moving to the given status is legal.
func (s SuggestionStatus) CanTransitionTo(to SuggestionStatus) bool {
	switch s {
	case SuggestionPrimary:
		return to == SuggestionSecondary || to == SuggestionAccepted || to == SuggestionRejected
	case SuggestionSecondary:
		return to == SuggestionAccepted || to == SuggestionRejected
	}
	return false
}

// Suggestion is an AI-assisted proposal derived from observed behavior, e.g.
// "make this event recurring". TargetHash is the content-addressed key used
// for bulk invalidation; invalidation retires rows without touching Status.
type Suggestion struct {
	SuggestionID  int64            `json:"suggestion_id"`
	MemberID      int64            `json:"member_id"`
	Content       string           `json:"content"`
	Category      string           `json:"category"`
	Status        SuggestionStatus `json:"status"`
	TargetHash    string           `json:"target_hash"`
	RepeatRule    string           `json:"repeat_rule"` // proposed RFC 5545 RRULE
	InvalidatedAt *time.Time       `json:"invalidated_at"`
	CreatedAt     time.Time        `json:"created_at"`
}

// IsActive reports whether the suggestion may still be surfaced.
func (s *Suggestion) IsActive() bool {
	return s.InvalidatedAt == nil
}
