package reminder

import (
	"fmt"
	"time"

	"github.com/daheeyun/haruplan/internal/models"
)

// MessageFactory formats human-readable reminder messages from a lead time
// and target type. Events announce a starting 일정, todos a 마감.
type MessageFactory struct{}

// Compose renders the reminder text. Leads under an hour are phrased in
// minutes, longer leads in whole hours (integer division).
func (MessageFactory) Compose(title string, lead time.Duration, targetType models.TargetType) string {
	minutes := int(lead.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	var when string
	if minutes < 60 {
		when = fmt.Sprintf("%d분 뒤", minutes)
	} else {
		when = fmt.Sprintf("%d시간 뒤", minutes/60)
	}

	if targetType == models.TargetTodo {
		return fmt.Sprintf("%s '%s' 마감이에요", when, title)
	}
	return fmt.Sprintf("%s '%s' 일정이 시작돼요", when, title)
}
