// Package bridge relays bus emissions between server instances over Redis
// pub/sub. Every instance publishes what it emitted locally and relays what
// other instances published; the origin tag keeps events from looping.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"qsync/internal/events"
)

const publishTimeout = 2 * time.Second

// Bus is the subset of *events.Bus the bridge needs.
type Bus interface {
	Origin() string
	Subscribe(topic events.Topic, handler events.Handler) *events.Subscription
	Relay(ctx context.Context, ev events.Event) events.Event
}

// RedisBridge forwards local emissions to a channel and relays remote ones.
type RedisBridge struct {
	bus     Bus
	client  *redis.Client
	channel string
	logger  *slog.Logger
	outbox  chan events.Event
}

func NewRedisBridge(bus Bus, client *redis.Client, channel string, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{
		bus:     bus,
		client:  client,
		channel: channel,
		logger:  logger,
		outbox:  make(chan events.Event, 256),
	}
}

// Run blocks until ctx is cancelled. Publishing happens off the Emit path so a
// slow Redis never stalls local dispatch; when the outbox is full the event is
// dropped, and remote clients converge on their next bulk fetch.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	var subs []*events.Subscription
	for _, topic := range events.AllTopics() {
		subs = append(subs, b.bus.Subscribe(topic, b.forward))
	}
	defer func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}()

	go b.publishLoop(ctx)

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			b.relay(ctx, msg.Payload)
		}
	}
}

func (b *RedisBridge) forward(ev events.Event) {
	if ev.Origin != b.bus.Origin() {
		return
	}
	select {
	case b.outbox <- ev:
	default:
		b.logger.Warn("event bridge outbox full, dropping event",
			"topic", string(ev.Topic),
			"seq", ev.Seq,
		)
	}
}

func (b *RedisBridge) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.outbox:
			body, err := json.Marshal(ev)
			if err != nil {
				b.logger.Error("failed to encode bridged event", "error", err)
				continue
			}
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err = b.client.Publish(pubCtx, b.channel, body).Err()
			cancel()
			if err != nil {
				b.logger.Warn("failed to publish bridged event",
					"topic", string(ev.Topic),
					"error", err,
				)
			}
		}
	}
}

func (b *RedisBridge) relay(ctx context.Context, payload string) {
	var ev events.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.logger.Warn("ignoring malformed bridged event", "error", err)
		return
	}
	if ev.Origin == "" || ev.Origin == b.bus.Origin() || !ev.Topic.Known() {
		return
	}
	b.bus.Relay(ctx, ev)
}
