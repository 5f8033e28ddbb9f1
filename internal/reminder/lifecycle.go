// Package reminder owns the reminder state machine. Reminder rows are mutated
// only here; upstream domains reach it through change notifications, and the
// daily sweep keeps every row pointed at its target's single next unfired
// occurrence.
package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/daheeyun/haruplan/internal/eventbus"
	"github.com/daheeyun/haruplan/internal/models"
	"github.com/daheeyun/haruplan/internal/occurrence"
)

// activationWindow decides ACTIVE vs INACTIVE: a reminder whose occurrence is
// within this window of now is eligible to fire.
const activationWindow = 24 * time.Hour

// Store is the persistence boundary for reminder rows.
type Store interface {
	Create(ctx context.Context, r *models.Reminder) error
	Update(ctx context.Context, r *models.Reminder) error
	// FindCurrentByTarget returns the target's non-terminated reminder, or
	// nil when none exists.
	FindCurrentByTarget(ctx context.Context, targetType models.TargetType, targetID int64) (*models.Reminder, error)
	// FindExpired returns ACTIVE/INACTIVE reminders whose occurrence time
	// has passed.
	FindExpired(ctx context.Context, asOf time.Time) ([]*models.Reminder, error)
	// FindDueActive returns ACTIVE, pending reminders firing by the given time.
	FindDueActive(ctx context.Context, by time.Time) ([]*models.Reminder, error)
	// TerminateByTarget marks matching non-terminated reminders TERMINATED.
	// ScopeThisOnly matches the exact occurrence time, ScopeThisAndFollowing
	// everything at or after it. Returns how many rows changed.
	TerminateByTarget(ctx context.Context, targetType models.TargetType, targetID int64, from time.Time, scope models.DeletionScope) (int64, error)
	// DeleteTerminated physically removes all TERMINATED rows.
	DeleteTerminated(ctx context.Context) (int64, error)
}

// Notifier hands a composed message to the delivery boundary. Delivery
// transport is outside this package.
type Notifier interface {
	Notify(ctx context.Context, memberID int64, message string) error
}

// LogNotifier records messages instead of delivering them.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, memberID int64, message string) error {
	n.Log.Info("reminder due", zap.Int64("member_id", memberID), zap.String("message", message))
	return nil
}

// Manager reacts to domain change notifications and runs the periodic sweep.
type Manager struct {
	store    Store
	provider *occurrence.Provider
	messages MessageFactory
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewManager(store Store, provider *occurrence.Provider, notifier Notifier, log *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		provider: provider,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Register subscribes the manager to the change-notification bus.
func (m *Manager) Register(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.PlanChanged{}.EventType(), m.onPlanChanged)
	bus.Subscribe(eventbus.RecurrenceExceptionChanged{}.EventType(), m.onExceptionChanged)
	bus.Subscribe(eventbus.ReminderDeleted{}.EventType(), m.onReminderDeleted)
}

func deriveStatus(occurrenceTime, now time.Time) models.LifecycleStatus {
	if occurrenceTime.Sub(now) <= activationWindow {
		return models.LifecycleActive
	}
	return models.LifecycleInactive
}

func (m *Manager) onPlanChanged(ctx context.Context, ev eventbus.Event) error {
	e, ok := ev.(eventbus.PlanChanged)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev)
	}
	return m.upsert(ctx, e.TargetType, e.EventID, e.MemberID, e.Title, e.OccurrenceTime)
}

// upsert points the target's reminder at the given occurrence, creating the
// row when none exists. A stale or missing occurrence time is re-resolved
// against the owning domain.
func (m *Manager) upsert(ctx context.Context, targetType models.TargetType, targetID, memberID int64, title string, occurrenceTime time.Time) error {
	now := m.now()

	if !occurrenceTime.After(now) {
		probe := &models.Reminder{TargetType: targetType, TargetID: targetID}
		res, err := m.provider.NextOccurrence(ctx, probe, now)
		if err != nil {
			return err
		}
		if !res.HasNext {
			_, err := m.store.TerminateByTarget(ctx, targetType, targetID, time.Time{}, models.ScopeThisAndFollowing)
			return err
		}
		occurrenceTime = res.NextTime
	}

	current, err := m.store.FindCurrentByTarget(ctx, targetType, targetID)
	if err != nil {
		return err
	}
	if current == nil {
		return m.store.Create(ctx, &models.Reminder{
			MemberID:          memberID,
			Title:             title,
			OccurrenceTime:    occurrenceTime,
			TargetType:        targetType,
			TargetID:          targetID,
			InteractionStatus: models.InteractionPending,
			LifecycleStatus:   deriveStatus(occurrenceTime, now),
		})
	}

	next := deriveStatus(occurrenceTime, now)
	if !current.LifecycleStatus.CanTransitionTo(next) {
		return fmt.Errorf("reminder %d: illegal transition %s -> %s",
			current.ReminderID, current.LifecycleStatus, next)
	}
	current.Title = title
	current.OccurrenceTime = occurrenceTime
	current.LifecycleStatus = next
	current.InteractionStatus = models.InteractionPending
	return m.store.Update(ctx, current)
}

func (m *Manager) onExceptionChanged(ctx context.Context, ev eventbus.Event) error {
	e, ok := ev.(eventbus.RecurrenceExceptionChanged)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev)
	}

	current, err := m.store.FindCurrentByTarget(ctx, e.TargetType, e.EventID)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	// Only the affected instance transitions; an exception on some later
	// instance leaves the current reminder alone.
	if !current.OccurrenceTime.Equal(e.OccurrenceTime) && e.ChangeType == models.ExceptionDeleted {
		return nil
	}
	if _, err := m.store.TerminateByTarget(ctx, e.TargetType, e.EventID, current.OccurrenceTime, models.ScopeThisOnly); err != nil {
		return err
	}
	if !e.IsRecurring {
		return nil
	}
	// The series continues past the excepted instance; re-derive its next
	// reminder from the committed state.
	return m.upsert(ctx, e.TargetType, e.EventID, e.MemberID, e.Title, time.Time{})
}

func (m *Manager) onReminderDeleted(ctx context.Context, ev eventbus.Event) error {
	e, ok := ev.(eventbus.ReminderDeleted)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev)
	}
	_, err := m.store.TerminateByTarget(ctx, e.TargetType, e.TargetID, e.OccurrenceTime, e.DeletedType)
	return err
}

// RefreshExpired is the daily sweep. Every ACTIVE/INACTIVE reminder whose
// occurrence has passed is re-pointed at its target's next occurrence, or
// terminated when none remains. One reminder's failure is logged and skipped;
// the sweep continues.
func (m *Manager) RefreshExpired(ctx context.Context) error {
	now := m.now()
	expired, err := m.store.FindExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("list expired reminders: %w", err)
	}
	for _, r := range expired {
		if err := m.refreshOne(ctx, r, now); err != nil {
			m.log.Error("reminder refresh failed",
				zap.Int64("reminder_id", r.ReminderID),
				zap.Int64("member_id", r.MemberID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (m *Manager) refreshOne(ctx context.Context, r *models.Reminder, now time.Time) error {
	res, err := m.provider.NextOccurrence(ctx, r, now)
	if err != nil {
		return err
	}

	var next models.LifecycleStatus
	if res.HasNext {
		next = deriveStatus(res.NextTime, now)
	} else {
		next = models.LifecycleTerminated
	}
	if !r.LifecycleStatus.CanTransitionTo(next) {
		return fmt.Errorf("illegal transition %s -> %s", r.LifecycleStatus, next)
	}
	if res.HasNext {
		r.OccurrenceTime = res.NextTime
		r.InteractionStatus = models.InteractionPending
	}
	r.LifecycleStatus = next
	return m.store.Update(ctx, r)
}

// Cleanup physically deletes everything the sweep terminated.
func (m *Manager) Cleanup(ctx context.Context) error {
	n, err := m.store.DeleteTerminated(ctx)
	if err != nil {
		return fmt.Errorf("delete terminated reminders: %w", err)
	}
	if n > 0 {
		m.log.Info("terminated reminders purged", zap.Int64("count", n))
	}
	return nil
}

// NotifyDue composes and hands off messages for reminders firing within the
// activation window. Per-reminder failures are logged and skipped.
func (m *Manager) NotifyDue(ctx context.Context) error {
	now := m.now()
	due, err := m.store.FindDueActive(ctx, now.Add(activationWindow))
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}
	for _, r := range due {
		msg := m.messages.Compose(r.Title, r.OccurrenceTime.Sub(now), r.TargetType)
		if err := m.notifier.Notify(ctx, r.MemberID, msg); err != nil {
			m.log.Error("reminder notify failed",
				zap.Int64("reminder_id", r.ReminderID),
				zap.Error(err),
			)
		}
	}
	return nil
}
