package models

import "time"

// Occurrence is one concrete, dated instance implied by a recurrence rule.
// It is computed on demand and never persisted.
type Occurrence struct {
	TargetID       int64      `json:"target_id"`
	TargetType     TargetType `json:"target_type"`
	OccurrenceTime time.Time  `json:"occurrence_time"`
	Title          string     `json:"title"`
	IsRecurring    bool       `json:"is_recurring"`
}
