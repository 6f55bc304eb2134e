package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"qsync/internal/events"
)

// Session is one client's view of the server: a cache per kind plus an
// optional persistence port. Sessions are independent; nothing is shared
// between them.
type Session struct {
	caches   map[Kind]*Cache
	store    SnapshotStore
	notify   func(json.RawMessage)
	logger   *slog.Logger
	lastSeq  atomic.Uint64
	received atomic.Uint64
}

type SessionOption func(*Session)

// WithSnapshotStore persists and restores the session through store.
func WithSnapshotStore(store SnapshotStore) SessionOption {
	return func(s *Session) {
		s.store = store
	}
}

// WithNotificationHandler receives notification:new payloads.
func WithNotificationHandler(fn func(json.RawMessage)) SessionOption {
	return func(s *Session) {
		s.notify = fn
	}
}

func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{caches: make(map[Kind]*Cache)}
	for _, k := range Kinds() {
		s.caches[k] = NewCache()
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Cache returns the cache for kind, or nil for an unknown kind.
func (s *Session) Cache(kind Kind) *Cache {
	return s.caches[kind]
}

// Apply merges one pushed event. Topics the session does not track are ignored.
func (s *Session) Apply(ev events.Event) error {
	s.received.Add(1)
	if ev.Seq > s.lastSeq.Load() {
		s.lastSeq.Store(ev.Seq)
	}
	if ev.Topic == events.NotificationNew {
		if s.notify != nil {
			s.notify(ev.Payload)
		}
		return nil
	}

	kind, action := classify(ev.Topic)
	switch action {
	case opUpsert:
		rec, err := DecodeRecord(ev.Payload)
		if err != nil {
			return fmt.Errorf("apply %s: %w", ev.Topic, err)
		}
		s.caches[kind].ApplyUpsert(rec)
	case opDelete:
		var ts events.Tombstone
		if err := json.Unmarshal(ev.Payload, &ts); err != nil || ts.ID == "" {
			return fmt.Errorf("apply %s: malformed tombstone", ev.Topic)
		}
		s.caches[kind].ApplyTombstone(ts.ID)
	default:
		s.logger.Debug("ignoring event", "topic", string(ev.Topic))
	}
	return nil
}

// ApplySnapshot merges a bulk fetch for kind.
func (s *Session) ApplySnapshot(kind Kind, records []Record) {
	if c := s.caches[kind]; c != nil {
		c.ApplySnapshot(records)
	}
}

// LastSeq is the highest event sequence number applied. Sequence numbers
// restart with the server process, so this is informational only.
func (s *Session) LastSeq() uint64 {
	return s.lastSeq.Load()
}

// Received counts events applied, including ignored topics.
func (s *Session) Received() uint64 {
	return s.received.Load()
}

// Snapshot captures every cache.
func (s *Session) Snapshot() *Snapshot {
	snap := &Snapshot{LastSeq: s.LastSeq(), Kinds: make(map[Kind]KindSnapshot, len(s.caches))}
	for kind, c := range s.caches {
		snap.Kinds[kind] = KindSnapshot{Records: c.Records(), Tombstones: c.Tombstones()}
	}
	return snap
}

// Restore merges the persisted snapshot, if any, into the caches. Restoring
// is itself a merge, so it is safe after live data has arrived.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snap, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if snap == nil {
		return nil
	}
	for kind, ks := range snap.Kinds {
		c := s.caches[kind]
		if c == nil {
			continue
		}
		for _, id := range ks.Tombstones {
			c.ApplyTombstone(id)
		}
		c.ApplySnapshot(ks.Records)
	}
	if snap.LastSeq > s.lastSeq.Load() {
		s.lastSeq.Store(snap.LastSeq)
	}
	return nil
}

// Persist saves the current state through the snapshot store.
func (s *Session) Persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, s.Snapshot()); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
