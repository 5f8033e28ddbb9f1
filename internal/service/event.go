// Package service implements the thin domain write paths. Every mutation
// commits first and publishes its change notification only afterwards, so
// nothing downstream is derived from rolled-back state.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/daheeyun/haruplan/internal/database"
	"github.com/daheeyun/haruplan/internal/eventbus"
	"github.com/daheeyun/haruplan/internal/models"
	"github.com/daheeyun/haruplan/internal/occurrence"
	"github.com/daheeyun/haruplan/internal/recurrence"
	"github.com/daheeyun/haruplan/internal/repository"
	"github.com/daheeyun/haruplan/internal/suggestion"

	"github.com/daheeyun/haruplan/internal/apperr"
)

// maxExceptionSkips bounds the walk past consecutive excepted instances.
const maxExceptionSkips = 1000

type EventService struct {
	db           *database.DB
	events       *repository.EventRepository
	exceptions   *repository.ExceptionRepository
	bus          *eventbus.Bus
	invalidation *suggestion.InvalidationService
	log          *zap.Logger
	now          func() time.Time
}

func NewEventService(db *database.DB, events *repository.EventRepository, exceptions *repository.ExceptionRepository, bus *eventbus.Bus, invalidation *suggestion.InvalidationService, log *zap.Logger) *EventService {
	return &EventService{
		db:           db,
		events:       events,
		exceptions:   exceptions,
		bus:          bus,
		invalidation: invalidation,
		log:          log,
		now:          time.Now,
	}
}

func (s *EventService) Create(ctx context.Context, event *models.Event) error {
	if event.RepeatRule != nil {
		if err := event.RepeatRule.Validate(); err != nil {
			return err
		}
	}
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.events.Create(ctx, tx, event); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.publishPlanChanged(ctx, event)
	return nil
}

func (s *EventService) Update(ctx context.Context, event *models.Event) error {
	if event.RepeatRule != nil {
		if err := event.RepeatRule.Validate(); err != nil {
			return err
		}
	}
	previous, err := s.events.GetByID(ctx, event.EventID)
	if err != nil {
		return err
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.events.Update(ctx, tx, event); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.publishPlanChanged(ctx, event)
	// An outstanding suggestion about the previous content is stale now.
	s.invalidation.Publish(event.MemberID, "event edited",
		suggestion.HashKey(suggestion.EventTargetKey(previous.Title, previous.Location)))
	return nil
}

func (s *EventService) Delete(ctx context.Context, eventID, memberID int64) error {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.events.Delete(ctx, tx, eventID, memberID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.bus.Publish(eventbus.ReminderDeleted{
		MemberID:    memberID,
		TargetID:    eventID,
		TargetType:  models.TargetEvent,
		DeletedType: models.ScopeThisAndFollowing,
	})
	s.invalidation.Publish(memberID, "event deleted",
		suggestion.HashKey(suggestion.EventTargetKey(event.Title, event.Location)))
	return nil
}

// AddException records a single-instance edit or delete on a recurring event.
func (s *EventService) AddException(ctx context.Context, exc *models.RecurrenceException) error {
	event, err := s.events.GetByID(ctx, exc.EventID)
	if err != nil {
		return err
	}
	if !event.IsRecurring() {
		return apperr.Validation(fmt.Sprintf("event %d is not recurring", exc.EventID))
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.exceptions.Create(ctx, tx, exc); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	occurrenceTime := exc.OccurrenceTime
	if exc.NewTime != nil {
		occurrenceTime = *exc.NewTime
	}
	s.bus.Publish(eventbus.RecurrenceExceptionChanged{
		ExceptionID:    exc.ExceptionID,
		EventID:        exc.EventID,
		TargetType:     models.TargetEvent,
		MemberID:       exc.MemberID,
		Title:          event.Title,
		OccurrenceTime: occurrenceTime,
		IsRecurring:    true,
		ChangeType:     exc.ChangeType,
	})
	if exc.ChangeType == models.ExceptionDeleted && exc.Scope == models.ScopeThisAndFollowing {
		s.bus.Publish(eventbus.ReminderDeleted{
			ExceptionID:    exc.ExceptionID,
			MemberID:       exc.MemberID,
			OccurrenceTime: exc.OccurrenceTime,
			TargetID:       exc.EventID,
			TargetType:     models.TargetEvent,
			DeletedType:    exc.Scope,
		})
	}
	return nil
}

func (s *EventService) publishPlanChanged(ctx context.Context, event *models.Event) {
	occ := event.StartTime
	res, err := s.nextOccurrence(ctx, event, s.now())
	switch {
	case err != nil:
		s.log.Error("next occurrence resolution failed, falling back to anchor",
			zap.Int64("event_id", event.EventID),
			zap.Error(err),
		)
	case res.HasNext:
		occ = res.NextTime
	}
	s.bus.Publish(eventbus.PlanChanged{
		EventID:        event.EventID,
		MemberID:       event.MemberID,
		Title:          event.Title,
		OccurrenceTime: occ,
		TargetType:     models.TargetEvent,
	})
}

// OccurrencesInWindow materializes the member's calendar between from and to,
// with recurrence exceptions applied.
func (s *EventService) OccurrencesInWindow(ctx context.Context, memberID int64, from, to time.Time) ([]models.Occurrence, error) {
	events, err := s.events.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	var out []models.Occurrence
	for _, event := range events {
		rule := recurrence.Rule{Frequency: recurrence.FreqNone, Interval: 1, End: recurrence.Never()}
		if event.RepeatRule != nil {
			rule = *event.RepeatRule
		}
		times, err := recurrence.Expand(rule, event.StartTime, from, to)
		if err != nil {
			return nil, err
		}
		if len(times) == 0 {
			continue
		}
		exceptions, err := s.exceptions.ListByEvent(ctx, event.EventID)
		if err != nil {
			return nil, err
		}
		for _, t := range times {
			occ, kept := applyExceptions(t, exceptions)
			if !kept || occ.Before(from) || occ.After(to) {
				continue
			}
			out = append(out, models.Occurrence{
				TargetID:       event.EventID,
				TargetType:     models.TargetEvent,
				OccurrenceTime: occ,
				Title:          event.Title,
				IsRecurring:    event.IsRecurring(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurrenceTime.Before(out[j].OccurrenceTime)
	})
	return out, nil
}

// applyExceptions resolves one expanded instance against the series'
// exceptions: dropped, moved, or kept as is.
func applyExceptions(t time.Time, exceptions []*models.RecurrenceException) (time.Time, bool) {
	for _, exc := range exceptions {
		if exc.ChangeType == models.ExceptionDeleted && exc.Scope == models.ScopeThisAndFollowing &&
			!t.Before(exc.OccurrenceTime) {
			return t, false
		}
		if !exc.OccurrenceTime.Equal(t) {
			continue
		}
		if exc.ChangeType == models.ExceptionDeleted {
			return t, false
		}
		if exc.ChangeType == models.ExceptionModified && exc.NewTime != nil {
			return *exc.NewTime, true
		}
	}
	return t, true
}

// CalculateNextOccurrence implements occurrence.Source for events. A missing
// event means "no next occurrence", not an error.
func (s *EventService) CalculateNextOccurrence(ctx context.Context, targetID int64, after time.Time) (occurrence.Result, error) {
	event, err := s.events.GetByID(ctx, targetID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return occurrence.Result{}, nil
		}
		return occurrence.Result{}, err
	}
	return s.nextOccurrence(ctx, event, after)
}

func (s *EventService) nextOccurrence(ctx context.Context, event *models.Event, after time.Time) (occurrence.Result, error) {
	rule := recurrence.Rule{Frequency: recurrence.FreqNone, Interval: 1, End: recurrence.Never()}
	if event.RepeatRule != nil {
		rule = *event.RepeatRule
	}
	exceptions, err := s.exceptions.ListByEvent(ctx, event.EventID)
	if err != nil {
		return occurrence.Result{}, err
	}

	cursor := after
	for i := 0; i < maxExceptionSkips; i++ {
		next, err := recurrence.NextOccurrence(rule, event.StartTime, cursor)
		if err != nil {
			return occurrence.Result{}, err
		}
		if next == nil {
			return occurrence.Result{}, nil
		}

		skipped := false
		for _, exc := range exceptions {
			if exc.ChangeType == models.ExceptionDeleted && exc.Scope == models.ScopeThisAndFollowing &&
				!next.Before(exc.OccurrenceTime) {
				// The series is cut off from this instance onward.
				return occurrence.Result{}, nil
			}
			if !exc.OccurrenceTime.Equal(*next) {
				continue
			}
			if exc.ChangeType == models.ExceptionDeleted {
				cursor = *next
				skipped = true
				break
			}
			if exc.ChangeType == models.ExceptionModified && exc.NewTime != nil {
				if exc.NewTime.After(after) {
					return occurrence.Result{HasNext: true, NextTime: *exc.NewTime}, nil
				}
				cursor = *next
				skipped = true
				break
			}
		}
		if skipped {
			continue
		}
		return occurrence.Result{HasNext: true, NextTime: *next}, nil
	}
	return occurrence.Result{}, fmt.Errorf("event %d: exception skip limit reached", event.EventID)
}
