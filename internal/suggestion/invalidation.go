package suggestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/daheeyun/haruplan/internal/eventbus"
	"github.com/daheeyun/haruplan/internal/models"
)

// Store is the persistence boundary for suggestion rows, narrowed to what the
// detection batch and invalidation consumer need.
type Store interface {
	Create(ctx context.Context, s *models.Suggestion) error
	// FindActiveByHash returns non-invalidated suggestions for the member
	// whose stored target hash matches.
	FindActiveByHash(ctx context.Context, memberID int64, hash string) ([]*models.Suggestion, error)
	// InvalidateByHash soft-retires every matching active suggestion and
	// returns how many rows changed. Already-invalidated rows are untouched.
	InvalidateByHash(ctx context.Context, memberID int64, hash string, at time.Time) (int64, error)
}

// InvalidationService retires suggestions whose subject changed underneath
// them, keyed by the content-addressed target hash rather than by id.
type InvalidationService struct {
	store Store
	bus   *eventbus.Bus
	log   *zap.Logger
	now   func() time.Time
}

func NewInvalidationService(store Store, bus *eventbus.Bus, log *zap.Logger) *InvalidationService {
	return &InvalidationService{store: store, bus: bus, log: log, now: time.Now}
}

// Register subscribes the service to invalidation notifications.
func (s *InvalidationService) Register(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.SuggestionInvalidate{}.EventType(), s.onInvalidate)
}

// Publish raises an invalidation notification. A fire-and-forget side effect
// of any mutation that could make an outstanding suggestion stale; an empty
// hash is a no-op.
func (s *InvalidationService) Publish(memberID int64, reason, hash string) {
	if hash == "" {
		return
	}
	s.bus.Publish(eventbus.SuggestionInvalidate{
		MemberID:      memberID,
		TargetKeyHash: hash,
		Reason:        reason,
	})
}

func (s *InvalidationService) onInvalidate(ctx context.Context, ev eventbus.Event) error {
	e, ok := ev.(eventbus.SuggestionInvalidate)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev)
	}
	return s.Invalidate(ctx, e.MemberID, e.TargetKeyHash)
}

// Invalidate bulk-retires all of the member's suggestions stored under the
// hash. Idempotent: re-invalidating leaves the rows as they are.
func (s *InvalidationService) Invalidate(ctx context.Context, memberID int64, hash string) error {
	if hash == "" {
		return nil
	}
	n, err := s.store.InvalidateByHash(ctx, memberID, hash, s.now())
	if err != nil {
		return fmt.Errorf("invalidate suggestions: %w", err)
	}
	if n > 0 {
		s.log.Info("suggestions invalidated",
			zap.Int64("member_id", memberID),
			zap.String("target_hash", hash),
			zap.Int64("count", n),
		)
	}
	return nil
}
