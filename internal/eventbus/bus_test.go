package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/daheeyun/haruplan/internal/models"
)

type recorder struct {
	mu   sync.Mutex
	seen []Event
}

func (r *recorder) handle(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, ev)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := New(zap.NewNop(), 8)
	var a, b recorder
	bus.Subscribe(PlanChanged{}.EventType(), a.handle)
	bus.Subscribe(PlanChanged{}.EventType(), b.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	bus.Publish(PlanChanged{EventID: 1, MemberID: 7, Title: "회의", TargetType: models.TargetEvent})

	assert.Eventually(t, func() bool {
		return a.count() == 1 && b.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBusIsolatesFailingHandler(t *testing.T) {
	bus := New(zap.NewNop(), 8)
	bus.Subscribe(PlanChanged{}.EventType(), func(context.Context, Event) error {
		return errors.New("boom")
	})
	bus.Subscribe(PlanChanged{}.EventType(), func(context.Context, Event) error {
		panic("worse")
	})
	var ok recorder
	bus.Subscribe(PlanChanged{}.EventType(), ok.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	bus.Publish(PlanChanged{EventID: 1})
	bus.Publish(PlanChanged{EventID: 2})

	assert.Eventually(t, func() bool { return ok.count() == 2 },
		2*time.Second, 10*time.Millisecond, "a failing or panicking handler never blocks the others")
}

func TestBusRoutesByEventType(t *testing.T) {
	bus := New(zap.NewNop(), 8)
	var plans, invalidations recorder
	bus.Subscribe(PlanChanged{}.EventType(), plans.handle)
	bus.Subscribe(SuggestionInvalidate{}.EventType(), invalidations.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	bus.Publish(SuggestionInvalidate{MemberID: 7, TargetKeyHash: "aaa"})

	assert.Eventually(t, func() bool { return invalidations.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Zero(t, plans.count())
}
