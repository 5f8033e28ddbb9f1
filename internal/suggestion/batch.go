package suggestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/daheeyun/haruplan/internal/models"
)

// TargetHistory is one recurring-capable target plus its observed occurrence
// timestamps, oldest first.
type TargetHistory struct {
	MemberID int64
	Title    string
	Category string
	Hash     string // content-addressed target key hash
	History  []time.Time
}

// HistorySource enumerates targets worth running detection over.
type HistorySource interface {
	RecurringCandidates(ctx context.Context) ([]TargetHistory, error)
}

// Phraser turns a detected pattern into member-facing suggestion text. The
// production implementation is the AI client; its failures are transient and
// the next run retries naturally.
type Phraser interface {
	PhraseSuggestion(ctx context.Context, title, rrule string, stability StableType) (string, error)
}

// Batch is the scheduled suggestion-detection job. One target's failure is
// logged and skipped, never aborting the batch.
type Batch struct {
	source       HistorySource
	detector     Detector
	phraser      Phraser
	store        Store
	invalidation *InvalidationService
	log          *zap.Logger
}

func NewBatch(source HistorySource, phraser Phraser, store Store, invalidation *InvalidationService, log *zap.Logger) *Batch {
	return &Batch{
		source:       source,
		phraser:      phraser,
		store:        store,
		invalidation: invalidation,
		log:          log,
	}
}

// Run detects patterns across all candidates and stores a PRIMARY suggestion
// per newly-detected one.
func (b *Batch) Run(ctx context.Context) error {
	candidates, err := b.source.RecurringCandidates(ctx)
	if err != nil {
		return fmt.Errorf("list suggestion candidates: %w", err)
	}
	for _, c := range candidates {
		if err := b.processOne(ctx, c); err != nil {
			b.log.Error("suggestion detection failed",
				zap.Int64("member_id", c.MemberID),
				zap.String("target_hash", c.Hash),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (b *Batch) processOne(ctx context.Context, c TargetHistory) error {
	out := b.detector.Detect(c.History)
	if out.Status != StatusDetected {
		return nil
	}
	rrule := out.Detection.Pattern.RRule()

	existing, err := b.store.FindActiveByHash(ctx, c.MemberID, c.Hash)
	if err != nil {
		return err
	}
	for _, s := range existing {
		if s.RepeatRule == rrule {
			// Same proposal already outstanding.
			return nil
		}
	}

	content, err := b.phraser.PhraseSuggestion(ctx, c.Title, rrule, out.Detection.Stability)
	if err != nil {
		return err
	}

	// Retire the superseded rows before the replacement is written: an
	// invalidation published to the bus could dispatch after the create and
	// take the new row down with the stale ones.
	if len(existing) > 0 {
		if err := b.invalidation.Invalidate(ctx, c.MemberID, c.Hash); err != nil {
			return err
		}
	}
	return b.store.Create(ctx, &models.Suggestion{
		MemberID:   c.MemberID,
		Content:    content,
		Category:   c.Category,
		Status:     models.SuggestionPrimary,
		TargetHash: c.Hash,
		RepeatRule: rrule,
	})
}
