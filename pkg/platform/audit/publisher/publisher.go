package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	audit "qsync/pkg/platform/audit"
)

// ErrBufferFull is returned by async Emit when the buffer cannot take the event.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher writes audit events to a Store, either inline or through a bounded
// buffer drained by a background goroutine.
type Publisher struct {
	store  audit.Store
	buffer chan audit.Event
	done   chan struct{}
	once   sync.Once
	onErr  func(error)
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

// WithErrorHandler observes append failures of the async drain.
func WithErrorHandler(fn func(error)) Option {
	return func(p *Publisher) {
		p.onErr = fn
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		go p.drain()
	} else {
		close(p.done)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.buffer <- event:
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrBufferFull
}

func (p *Publisher) List(ctx context.Context, recordID string) ([]audit.Event, error) {
	return p.store.ListByRecord(ctx, recordID)
}

// Close stops accepting async events and waits until the buffer is drained.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
		}
	})
	<-p.done
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil && p.onErr != nil {
			p.onErr(err)
		}
	}
}
