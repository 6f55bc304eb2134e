// Package events is the process-local publish/subscribe hub that fans record
// changes out to push connections.
//
// Emit is synchronous: it returns after every handler registered for the topic
// has run. Emissions are serialized so all subscribers observe one global order.
// Delivery is at-most-once with no persistence and no retry. Handlers must not
// block and must not call Emit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Handler receives events for one subscription.
type Handler func(Event)

// Subscription is a registered handler. Unsubscribe is idempotent.
type Subscription struct {
	id      uint64
	topic   Topic
	handler Handler
	bus     *Bus
	active  atomic.Bool
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Unsubscribe deregisters the handler. No delivery starts after it returns.
func (s *Subscription) Unsubscribe() {
	s.bus.Unsubscribe(s)
}

// Bus is constructed explicitly and injected; there is no package-level instance.
type Bus struct {
	mu     sync.RWMutex
	emitMu sync.Mutex
	subs   map[Topic][]*Subscription
	nextID uint64
	seq    uint64
	origin string
	now    func() time.Time

	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Bus)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// WithOrigin fixes the instance name stamped on local emissions.
func WithOrigin(origin string) Option {
	return func(b *Bus) {
		b.origin = origin
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		b.now = now
	}
}

func New(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[Topic][]*Subscription),
		origin: uuid.NewString(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Origin is the instance name stamped on local emissions.
func (b *Bus) Origin() string {
	return b.origin
}

// Subscribe registers handler for topic. Handlers of a topic run in
// registration order.
func (b *Bus) Subscribe(topic Topic, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{id: b.nextID, topic: topic, handler: handler, bus: b}
	sub.active.Store(true)
	b.subs[topic] = append(b.subs[topic], sub)
	b.metrics.setListeners(topic, len(b.subs[topic]))
	return sub
}

// Unsubscribe removes sub. Safe to call from inside a handler.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil || !sub.active.CompareAndSwap(true, false) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.topic]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.topic]) == 0 {
		delete(b.subs, sub.topic)
	}
	b.metrics.setListeners(sub.topic, len(b.subs[sub.topic]))
}

// ListenerCount returns the number of live subscriptions on topic.
func (b *Bus) ListenerCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Emit marshals payload and dispatches it to every handler of topic.
func (b *Bus) Emit(ctx context.Context, topic Topic, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return b.dispatch(ctx, Event{Topic: topic, Origin: b.origin, Payload: raw}), nil
}

// Relay dispatches an event first emitted by another instance. The origin is
// kept; sequence and timestamp are reassigned locally.
func (b *Bus) Relay(ctx context.Context, ev Event) Event {
	return b.dispatch(ctx, Event{Topic: ev.Topic, Origin: ev.Origin, Payload: ev.Payload})
}

func (b *Bus) dispatch(ctx context.Context, ev Event) Event {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.seq++
	ev.Seq = b.seq
	ev.At = b.now()

	b.mu.RLock()
	handlers := append([]*Subscription(nil), b.subs[ev.Topic]...)
	b.mu.RUnlock()

	for _, sub := range handlers {
		if !sub.active.Load() {
			continue
		}
		b.invoke(ctx, sub, ev)
	}
	b.metrics.incEmitted(ev.Topic, len(handlers))
	return ev
}

func (b *Bus) invoke(ctx context.Context, sub *Subscription, ev Event) {
	defer func() {
		if rec := recover(); rec != nil && b.logger != nil {
			b.logger.ErrorContext(ctx, "event handler panicked",
				"topic", string(ev.Topic),
				"seq", ev.Seq,
				"panic", rec,
			)
		}
	}()
	sub.handler(ev)
}
