package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"qsync/internal/events"
)

// Source is what a syncer reads from. *Client implements it.
type Source interface {
	Fetch(ctx context.Context, kind Kind) ([]Record, error)
	Stream(ctx context.Context, opened func(), handle func(events.Event) error) error
}

// Syncer drives a session: it keeps the push stream open, reconnecting with
// exponential backoff, and refetches every kind periodically and after each
// reconnect. Periodic refetch alone converges; the stream only makes it fresh.
type Syncer struct {
	source     Source
	session    *Session
	refetch    time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger
	onSync     func(Kind, int)

	resync chan struct{}
}

type SyncerOption func(*Syncer)

func WithRefetchInterval(d time.Duration) SyncerOption {
	return func(s *Syncer) {
		if d > 0 {
			s.refetch = d
		}
	}
}

// WithBackoff bounds the delay between reconnect attempts.
func WithBackoff(lo, hi time.Duration) SyncerOption {
	return func(s *Syncer) {
		if lo > 0 {
			s.minBackoff = lo
		}
		if hi >= s.minBackoff {
			s.maxBackoff = hi
		}
	}
}

func WithSyncerLogger(logger *slog.Logger) SyncerOption {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// WithSyncHook is called after each successful fetch with the kind and the
// number of live records cached for it.
func WithSyncHook(fn func(Kind, int)) SyncerOption {
	return func(s *Syncer) {
		s.onSync = fn
	}
}

func NewSyncer(source Source, session *Session, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		source:     source,
		session:    session,
		refetch:    time.Minute,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		resync:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run restores the session, then syncs until ctx is cancelled. The session is
// persisted on exit. A cancelled context is a clean stop and returns nil.
func (s *Syncer) Run(ctx context.Context) error {
	if err := s.session.Restore(ctx); err != nil {
		s.logger.WarnContext(ctx, "session restore failed, starting empty", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.streamLoop(gctx) })
	g.Go(func() error { return s.refetchLoop(gctx) })
	err := g.Wait()

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if perr := s.session.Persist(persistCtx); perr != nil {
		s.logger.ErrorContext(ctx, "session persist failed", "error", perr)
	}

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// SyncOnce fetches every kind concurrently and merges the results.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range Kinds() {
		g.Go(func() error {
			records, err := s.source.Fetch(gctx, kind)
			if err != nil {
				return err
			}
			s.session.ApplySnapshot(kind, records)
			if s.onSync != nil {
				s.onSync(kind, s.session.Cache(kind).Len())
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Syncer) refetchLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.refetch)
	defer ticker.Stop()
	for {
		if err := s.SyncOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.WarnContext(ctx, "refetch failed", "error", err)
		} else if err := s.session.Persist(ctx); err != nil {
			s.logger.WarnContext(ctx, "session persist failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.resync:
		}
	}
}

func (s *Syncer) streamLoop(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.minBackoff
	b.MaxInterval = s.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		opened := func() {
			b.Reset()
			s.requestResync()
			s.logger.InfoContext(ctx, "event stream connected")
		}
		err := s.source.Stream(ctx, opened, func(ev events.Event) error {
			if err := s.session.Apply(ev); err != nil {
				s.logger.WarnContext(ctx, "dropping malformed event",
					"topic", string(ev.Topic),
					"seq", ev.Seq,
					"error", err,
				)
			}
			return nil
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := b.NextBackOff()
		s.logger.WarnContext(ctx, "event stream interrupted",
			"error", err,
			"retry_in", wait.String(),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// requestResync schedules a refetch without blocking; pending requests coalesce.
func (s *Syncer) requestResync() {
	select {
	case s.resync <- struct{}{}:
	default:
	}
}
