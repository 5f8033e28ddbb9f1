package suggestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daheeyun/haruplan/internal/eventbus"
	"github.com/daheeyun/haruplan/internal/models"
)

func seedSuggestion(t *testing.T, store *fakeSuggestionStore, memberID int64, hash string) *models.Suggestion {
	t.Helper()
	s := &models.Suggestion{
		MemberID:   memberID,
		Content:    "반복으로 만들까요?",
		Status:     models.SuggestionPrimary,
		TargetHash: hash,
		RepeatRule: "FREQ=DAILY;INTERVAL=7",
	}
	require.NoError(t, store.Create(context.Background(), s))
	return s
}

func TestInvalidateRetiresAllMatchingRows(t *testing.T) {
	store := &fakeSuggestionStore{}
	bus := eventbus.New(zap.NewNop(), 8)
	inv := NewInvalidationService(store, bus, zap.NewNop())

	seedSuggestion(t, store, 7, "aaa")
	seedSuggestion(t, store, 7, "aaa")
	seedSuggestion(t, store, 7, "bbb")
	seedSuggestion(t, store, 8, "aaa") // other member, same hash

	require.NoError(t, inv.Invalidate(context.Background(), 7, "aaa"))

	active, err := store.FindActiveByMember(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "bbb", active[0].TargetHash)

	otherActive, err := store.FindActiveByMember(context.Background(), 8)
	require.NoError(t, err)
	assert.Len(t, otherActive, 1, "invalidation is scoped to the member")
}

func TestInvalidateIsIdempotent(t *testing.T) {
	store := &fakeSuggestionStore{}
	bus := eventbus.New(zap.NewNop(), 8)
	inv := NewInvalidationService(store, bus, zap.NewNop())

	seedSuggestion(t, store, 7, "aaa")
	require.NoError(t, inv.Invalidate(context.Background(), 7, "aaa"))

	first := *store.all()[0].InvalidatedAt
	require.NoError(t, inv.Invalidate(context.Background(), 7, "aaa"))
	assert.True(t, first.Equal(*store.all()[0].InvalidatedAt), "re-invalidating leaves the row untouched")
}

func TestInvalidateEmptyHashIsNoOp(t *testing.T) {
	store := &fakeSuggestionStore{}
	bus := eventbus.New(zap.NewNop(), 8)
	inv := NewInvalidationService(store, bus, zap.NewNop())

	seedSuggestion(t, store, 7, "")
	require.NoError(t, inv.Invalidate(context.Background(), 7, ""))
	assert.True(t, store.all()[0].IsActive())
}

func TestInvalidationDeliveredThroughBus(t *testing.T) {
	store := &fakeSuggestionStore{}
	bus := eventbus.New(zap.NewNop(), 8)
	inv := NewInvalidationService(store, bus, zap.NewNop())
	inv.Register(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	seedSuggestion(t, store, 7, "aaa")
	inv.Publish(7, "plan edited", "")    // empty hash, dropped at the publisher
	inv.Publish(7, "plan edited", "aaa")

	assert.Eventually(t, func() bool {
		return !store.all()[0].IsActive()
	}, 2*time.Second, 10*time.Millisecond)
}
