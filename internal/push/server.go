// Package push keeps one long-lived connection per client and forwards every
// bus emission to it, in emission order, until the client goes away.
package push

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"qsync/internal/events"
)

// Bus is the subset of *events.Bus a push server needs.
type Bus interface {
	Subscribe(topic events.Topic, handler events.Handler) *events.Subscription
}

// ConnectLimiter decides whether a client may open another connection.
type ConnectLimiter interface {
	Allow(key string) bool
}

// Server owns the set of open connections.
type Server struct {
	bus       Bus
	buffer    int
	heartbeat time.Duration
	limiter   ConnectLimiter
	logger    *slog.Logger
	metrics   *Metrics

	mu    sync.Mutex
	conns map[string]*Connection
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithBuffer sets the per-connection queue length.
func WithBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithHeartbeat sets the idle interval after which a keep-alive is written.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithConnectLimiter rate-limits connection attempts per client address.
func WithConnectLimiter(l ConnectLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

func NewServer(bus Bus, opts ...Option) *Server {
	s := &Server{
		bus:       bus,
		buffer:    64,
		heartbeat: 25 * time.Second,
		logger:    slog.Default(),
		conns:     make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Open subscribes a new connection to topics (all topics when none are given).
func (s *Server) Open(topics ...events.Topic) *Connection {
	if len(topics) == 0 {
		topics = events.AllTopics()
	}
	c := &Connection{
		id:     uuid.NewString(),
		queue:  make(chan events.Event, s.buffer),
		done:   make(chan struct{}),
		server: s,
	}

	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()

	c.mu.Lock()
	for _, t := range topics {
		c.subs = append(c.subs, s.bus.Subscribe(t, c.enqueue))
	}
	c.mu.Unlock()

	s.metrics.connOpened()
	return c
}

func (s *Server) remove(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	s.metrics.connClosed()
}

// Connection is one client's queue of pending events.
type Connection struct {
	id     string
	queue  chan events.Event
	done   chan struct{}
	server *Server

	mu        sync.Mutex
	subs      []*events.Subscription
	closed    bool
	overflow  atomic.Bool
	delivered atomic.Uint64
}

// ID identifies the connection in logs.
func (c *Connection) ID() string {
	return c.id
}

// Events yields queued events. Check Done before writing each one.
func (c *Connection) Events() <-chan events.Event {
	return c.queue
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether Close has run.
func (c *Connection) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Overflowed reports whether the connection was closed because its queue filled up.
func (c *Connection) Overflowed() bool {
	return c.overflow.Load()
}

// Delivered counts events written to the client.
func (c *Connection) Delivered() uint64 {
	return c.delivered.Load()
}

// MarkDelivered is called by transports after a successful write.
func (c *Connection) MarkDelivered() {
	c.delivered.Add(1)
	c.server.metrics.delivered()
}

// Close deregisters every subscription before releasing the connection.
// Idempotent and safe to call from a bus handler.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	close(c.done)
	c.server.remove(c)
}

// enqueue runs on the emitter's goroutine and must never block.
func (c *Connection) enqueue(ev events.Event) {
	if c.Closed() {
		return
	}
	select {
	case c.queue <- ev:
	default:
		c.overflow.Store(true)
		c.server.metrics.overflowed()
		c.server.logger.Warn("push connection buffer full, disconnecting",
			"connection_id", c.id,
			"topic", string(ev.Topic),
			"seq", ev.Seq,
		)
		c.Close()
	}
}
