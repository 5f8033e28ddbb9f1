package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler consumes one event. Delivery is at-least-once, so handlers must be
// idempotent.
type Handler func(ctx context.Context, ev Event) error

type envelope struct {
	id         uuid.UUID
	event      Event
	enqueuedAt time.Time
}

// Bus is an in-process publish/subscribe queue. Publish enqueues, a single
// consumer goroutine dispatches in enqueue order, and one handler's failure
// never blocks the others.
type Bus struct {
	log   *zap.Logger
	queue chan envelope

	mu       sync.RWMutex
	handlers map[string][]Handler
}

func New(log *zap.Logger, buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		log:      log,
		queue:    make(chan envelope, buffer),
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for the given event type. Subscriptions are
// expected to happen before Run starts consuming.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish enqueues an event for delivery. Call it only after the triggering
// transaction has committed; nothing may be published on rollback.
func (b *Bus) Publish(ev Event) {
	b.queue <- envelope{id: uuid.New(), event: ev, enqueuedAt: time.Now()}
}

// Run consumes the queue until ctx is cancelled. It drains what is already
// enqueued before returning so committed notifications are not dropped on
// shutdown.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case env := <-b.queue:
					b.dispatch(context.Background(), env)
				default:
					return
				}
			}
		case env := <-b.queue:
			b.dispatch(ctx, env)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, env envelope) {
	b.mu.RLock()
	handlers := b.handlers[env.event.EventType()]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ctx, env, h)
	}
}

func (b *Bus) deliver(ctx context.Context, env envelope, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("event_id", env.id.String()),
				zap.String("event_type", env.event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	if err := h(ctx, env.event); err != nil {
		b.log.Error("event handler failed",
			zap.String("event_id", env.id.String()),
			zap.String("event_type", env.event.EventType()),
			zap.Error(err),
		)
	}
}
