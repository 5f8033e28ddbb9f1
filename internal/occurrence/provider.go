// Package occurrence answers "what is the next occurrence of this target"
// without exposing which domain backs it.
package occurrence

import (
	"context"
	"fmt"
	"time"

	"github.com/daheeyun/haruplan/internal/models"
)

// Result is the answer to a next-occurrence query. HasNext is false both for
// one-off items with no future instance and for targets that no longer exist;
// the caller decides whether that terminates a reminder.
type Result struct {
	HasNext  bool
	NextTime time.Time
}

// Source is the owning domain's query capability for one target type.
type Source interface {
	CalculateNextOccurrence(ctx context.Context, targetID int64, after time.Time) (Result, error)
}

// Provider routes next-occurrence queries by target type.
type Provider struct {
	events Source
	todos  Source
}

func NewProvider(events, todos Source) *Provider {
	return &Provider{events: events, todos: todos}
}

// NextOccurrence asks the domain owning the reminder's target for the first
// occurrence strictly after the given time.
func (p *Provider) NextOccurrence(ctx context.Context, reminder *models.Reminder, after time.Time) (Result, error) {
	switch reminder.TargetType {
	case models.TargetEvent:
		return p.events.CalculateNextOccurrence(ctx, reminder.TargetID, after)
	case models.TargetTodo:
		return p.todos.CalculateNextOccurrence(ctx, reminder.TargetID, after)
	}
	return Result{}, fmt.Errorf("unknown target type %q", reminder.TargetType)
}
