// Package scheduler drives the periodic maintenance jobs. Each job runs to
// completion, is never user-cancellable, and carries an explicit guard so a
// slow run is skipped rather than overlapped.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/daheeyun/haruplan/internal/reminder"
	"github.com/daheeyun/haruplan/internal/repository"
	"github.com/daheeyun/haruplan/internal/suggestion"
)

type Schedules struct {
	ReminderMaintenance string // reminder regeneration then cleanup
	SuggestionBatch     string
	MemberHardDelete    string
}

func DefaultSchedules() Schedules {
	return Schedules{
		ReminderMaintenance: "0 0 0 * * *",
		SuggestionBatch:     "0 0 2 * * *",
		MemberHardDelete:    "0 0 3 * * *",
	}
}

type Scheduler struct {
	cron      *cron.Cron
	reminders *reminder.Manager
	batch     *suggestion.Batch
	members   *repository.MemberRepository
	retention time.Duration
	log       *zap.Logger
	notifyCh  chan struct{}

	maintenanceRunning atomic.Bool
	batchRunning       atomic.Bool
	hardDeleteRunning  atomic.Bool
}

func New(reminders *reminder.Manager, batch *suggestion.Batch, members *repository.MemberRepository, retention time.Duration, loc *time.Location, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		reminders: reminders,
		batch:     batch,
		members:   members,
		retention: retention,
		log:       log,
		notifyCh:  make(chan struct{}, 1),
	}
}

// Notify triggers an immediate maintenance run. Non-blocking if one is
// already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context, schedules Schedules) error {
	if _, err := s.cron.AddFunc(schedules.ReminderMaintenance, func() { s.runMaintenance(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(schedules.SuggestionBatch, func() { s.runSuggestionBatch(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(schedules.MemberHardDelete, func() { s.runHardDelete(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.notifyCh:
				s.runMaintenance(ctx)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.log.Info("scheduler stopped")
	}()
	return nil
}

// runMaintenance refreshes expired reminders, then purges terminated ones,
// in that order.
func (s *Scheduler) runMaintenance(ctx context.Context) {
	if !s.maintenanceRunning.CompareAndSwap(false, true) {
		s.log.Warn("reminder maintenance still running, skipping")
		return
	}
	defer s.maintenanceRunning.Store(false)

	if err := s.reminders.RefreshExpired(ctx); err != nil {
		s.log.Error("reminder refresh sweep failed", zap.Error(err))
	}
	if err := s.reminders.Cleanup(ctx); err != nil {
		s.log.Error("reminder cleanup failed", zap.Error(err))
	}
	if err := s.reminders.NotifyDue(ctx); err != nil {
		s.log.Error("reminder due notification failed", zap.Error(err))
	}
}

func (s *Scheduler) runSuggestionBatch(ctx context.Context) {
	if !s.batchRunning.CompareAndSwap(false, true) {
		s.log.Warn("suggestion batch still running, skipping")
		return
	}
	defer s.batchRunning.Store(false)

	if err := s.batch.Run(ctx); err != nil {
		s.log.Error("suggestion batch failed", zap.Error(err))
	}
}

func (s *Scheduler) runHardDelete(ctx context.Context) {
	if !s.hardDeleteRunning.CompareAndSwap(false, true) {
		s.log.Warn("member hard-delete still running, skipping")
		return
	}
	defer s.hardDeleteRunning.Store(false)

	cutoff := time.Now().Add(-s.retention)
	deleted, failed, err := s.members.HardDeleteExpired(ctx, cutoff)
	if err != nil {
		s.log.Error("member hard-delete sweep failed", zap.Error(err))
		return
	}
	if deleted > 0 || len(failed) > 0 {
		s.log.Info("member hard-delete sweep finished",
			zap.Int64("deleted", deleted),
			zap.Int64s("failed", failed),
		)
	}
}
