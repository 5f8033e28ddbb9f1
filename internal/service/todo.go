package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/daheeyun/haruplan/internal/apperr"
	"github.com/daheeyun/haruplan/internal/database"
	"github.com/daheeyun/haruplan/internal/eventbus"
	"github.com/daheeyun/haruplan/internal/models"
	"github.com/daheeyun/haruplan/internal/occurrence"
	"github.com/daheeyun/haruplan/internal/recurrence"
	"github.com/daheeyun/haruplan/internal/repository"
	"github.com/daheeyun/haruplan/internal/suggestion"
)

type TodoService struct {
	db           *database.DB
	todos        *repository.TodoRepository
	bus          *eventbus.Bus
	invalidation *suggestion.InvalidationService
	log          *zap.Logger
	now          func() time.Time
}

func NewTodoService(db *database.DB, todos *repository.TodoRepository, bus *eventbus.Bus, invalidation *suggestion.InvalidationService, log *zap.Logger) *TodoService {
	return &TodoService{
		db:           db,
		todos:        todos,
		bus:          bus,
		invalidation: invalidation,
		log:          log,
		now:          time.Now,
	}
}

func (s *TodoService) Create(ctx context.Context, todo *models.Todo) error {
	if todo.RepeatRule != nil {
		if err := todo.RepeatRule.Validate(); err != nil {
			return err
		}
	}
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.todos.Create(ctx, tx, todo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.publishPlanChanged(todo)
	return nil
}

func (s *TodoService) Update(ctx context.Context, todo *models.Todo) error {
	if todo.RepeatRule != nil {
		if err := todo.RepeatRule.Validate(); err != nil {
			return err
		}
	}
	previous, err := s.todos.GetByID(ctx, todo.TodoID)
	if err != nil {
		return err
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.todos.Update(ctx, tx, todo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.publishPlanChanged(todo)
	s.invalidation.Publish(todo.MemberID, "todo edited",
		suggestion.HashKey(suggestion.TodoTargetKey(previous.Title)))
	return nil
}

func (s *TodoService) Complete(ctx context.Context, todoID, memberID int64) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.todos.Complete(ctx, tx, todoID, memberID, s.now()); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	todo, err := s.todos.GetByID(ctx, todoID)
	if err != nil {
		return err
	}
	// A recurring todo rolls to its next deadline; a one-off is done and its
	// reminder has nothing left to point at.
	if todo.IsRecurring() {
		s.publishPlanChanged(todo)
		return nil
	}
	s.bus.Publish(eventbus.ReminderDeleted{
		MemberID:    memberID,
		TargetID:    todoID,
		TargetType:  models.TargetTodo,
		DeletedType: models.ScopeThisAndFollowing,
	})
	return nil
}

func (s *TodoService) Delete(ctx context.Context, todoID, memberID int64) error {
	todo, err := s.todos.GetByID(ctx, todoID)
	if err != nil {
		return err
	}
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := s.todos.Delete(ctx, tx, todoID, memberID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.bus.Publish(eventbus.ReminderDeleted{
		MemberID:    memberID,
		TargetID:    todoID,
		TargetType:  models.TargetTodo,
		DeletedType: models.ScopeThisAndFollowing,
	})
	s.invalidation.Publish(memberID, "todo deleted",
		suggestion.HashKey(suggestion.TodoTargetKey(todo.Title)))
	return nil
}

func (s *TodoService) publishPlanChanged(todo *models.Todo) {
	occ := s.now()
	if todo.DueTime != nil {
		occ = *todo.DueTime
	}
	s.bus.Publish(eventbus.PlanChanged{
		EventID:        todo.TodoID,
		MemberID:       todo.MemberID,
		Title:          todo.Title,
		OccurrenceTime: occ,
		TargetType:     models.TargetTodo,
	})
}

// CalculateNextOccurrence implements occurrence.Source for todos. A missing
// or completed one-off todo has no next occurrence.
func (s *TodoService) CalculateNextOccurrence(ctx context.Context, targetID int64, after time.Time) (occurrence.Result, error) {
	todo, err := s.todos.GetByID(ctx, targetID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return occurrence.Result{}, nil
		}
		return occurrence.Result{}, err
	}
	if todo.DueTime == nil {
		return occurrence.Result{}, nil
	}
	if !todo.IsRecurring() {
		if todo.IsCompleted() || !todo.DueTime.After(after) {
			return occurrence.Result{}, nil
		}
		return occurrence.Result{HasNext: true, NextTime: *todo.DueTime}, nil
	}
	rule := *todo.RepeatRule
	next, err := recurrence.NextOccurrence(rule, *todo.DueTime, after)
	if err != nil {
		return occurrence.Result{}, err
	}
	if next == nil {
		return occurrence.Result{}, nil
	}
	return occurrence.Result{HasNext: true, NextTime: *next}, nil
}
