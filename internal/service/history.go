package service

import (
	"context"
	"fmt"

	"github.com/daheeyun/haruplan/internal/repository"
	"github.com/daheeyun/haruplan/internal/suggestion"
)

// historyLimit caps how much occurrence history feeds one detection.
const historyLimit = 30

// SuggestionHistorySource feeds the suggestion batch with repeated one-off
// items that look like undeclared recurring series.
type SuggestionHistorySource struct {
	events *repository.EventRepository
	todos  *repository.TodoRepository
}

func NewSuggestionHistorySource(events *repository.EventRepository, todos *repository.TodoRepository) *SuggestionHistorySource {
	return &SuggestionHistorySource{events: events, todos: todos}
}

func (s *SuggestionHistorySource) RecurringCandidates(ctx context.Context) ([]suggestion.TargetHistory, error) {
	var out []suggestion.TargetHistory

	eventGroups, err := s.events.ListRepeatedOneOffGroups(ctx, suggestion.MinimumHistory)
	if err != nil {
		return nil, fmt.Errorf("list repeated events: %w", err)
	}
	for _, g := range eventGroups {
		history, err := s.events.OccurrenceHistory(ctx, g.MemberID, g.Title, g.Location, historyLimit)
		if err != nil {
			return nil, fmt.Errorf("event history for member %d: %w", g.MemberID, err)
		}
		out = append(out, suggestion.TargetHistory{
			MemberID: g.MemberID,
			Title:    g.Title,
			Category: "event",
			Hash:     suggestion.HashKey(suggestion.EventTargetKey(g.Title, g.Location)),
			History:  history,
		})
	}

	todoGroups, err := s.todos.ListRepeatedCompletedGroups(ctx, suggestion.MinimumHistory)
	if err != nil {
		return nil, fmt.Errorf("list repeated todos: %w", err)
	}
	for _, g := range todoGroups {
		history, err := s.todos.CompletedHistory(ctx, g.MemberID, g.Title, historyLimit)
		if err != nil {
			return nil, fmt.Errorf("todo history for member %d: %w", g.MemberID, err)
		}
		out = append(out, suggestion.TargetHistory{
			MemberID: g.MemberID,
			Title:    g.Title,
			Category: "todo",
			Hash:     suggestion.HashKey(suggestion.TodoTargetKey(g.Title)),
			History:  history,
		})
	}

	return out, nil
}
