package reconcile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qsync/internal/events"
)

func event(topic events.Topic, seq uint64, payload string) events.Event {
	return events.Event{Topic: topic, Seq: seq, Payload: json.RawMessage(payload)}
}

func TestSessionApply(t *testing.T) {
	var notes []string
	s := NewSession(WithNotificationHandler(func(p json.RawMessage) { notes = append(notes, string(p)) }))

	require.NoError(t, s.Apply(event(events.ProfileCreated, 1, `{"id":"p1","updatedAt":"2025-03-01T08:00:00Z","code":"IND-1"}`)))
	require.NoError(t, s.Apply(event(events.RiskCreated, 2, `{"id":"r1","updatedAt":"2025-03-01T08:00:00Z"}`)))
	require.NoError(t, s.Apply(event(events.RiskDeleted, 3, `{"id":"r1"}`)))
	require.NoError(t, s.Apply(event(events.NotificationNew, 4, `{"recipient":"u1"}`)))
	require.NoError(t, s.Apply(event("audit:written", 5, `{}`)))

	got, ok := s.Cache(KindProfile).Get("p1")
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"p1","updatedAt":"2025-03-01T08:00:00Z","code":"IND-1"}`, string(got.Body))
	assert.Equal(t, 0, s.Cache(KindRisk).Len())
	assert.Equal(t, []string{"r1"}, s.Cache(KindRisk).Tombstones())
	assert.Equal(t, []string{`{"recipient":"u1"}`}, notes)
	assert.Equal(t, uint64(5), s.LastSeq())
	assert.Equal(t, uint64(5), s.Received())
}

func TestSessionApplyRejectsMalformedPayloads(t *testing.T) {
	s := NewSession()
	assert.Error(t, s.Apply(event(events.SubmissionUpdated, 1, `{"updatedAt":"2025-03-01T08:00:00Z"}`)))
	assert.Error(t, s.Apply(event(events.SubmissionDeleted, 2, `{}`)))
	assert.Error(t, s.Apply(event(events.ProfileUpdated, 3, `not json`)))
	assert.Equal(t, 0, s.Cache(KindSubmission).Len())
}

func TestSessionPersistAndRestore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySnapshotStore()

	first := NewSession(WithSnapshotStore(store))
	first.ApplySnapshot(KindSubmission, []Record{rec("s1", 1, "jan"), rec("s2", 1, "feb")})
	require.NoError(t, first.Apply(event(events.SubmissionDeleted, 9, `{"id":"s2"}`)))
	require.NoError(t, first.Persist(ctx))

	second := NewSession(WithSnapshotStore(store))
	second.ApplySnapshot(KindSubmission, []Record{rec("s1", 3, "jan revised")})
	require.NoError(t, second.Restore(ctx))

	got, ok := second.Cache(KindSubmission).Get("s1")
	require.True(t, ok)
	assert.Equal(t, base.Add(3*time.Minute), got.UpdatedAt, "restore never regresses live data")
	_, ok = second.Cache(KindSubmission).Get("s2")
	assert.False(t, ok)

	second.ApplySnapshot(KindSubmission, []Record{rec("s2", 1, "feb")})
	_, ok = second.Cache(KindSubmission).Get("s2")
	assert.False(t, ok, "restored tombstones still apply")
	assert.Equal(t, uint64(9), second.LastSeq())
}

func TestFileSnapshotStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "session.json")
	store := NewFileSnapshotStore(path)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap, "missing file loads as empty")

	s := NewSession(WithSnapshotStore(store))
	s.ApplySnapshot(KindRisk, []Record{rec("r1", 2, "falls")})
	s.Cache(KindRisk).ApplyTombstone("r0")
	require.NoError(t, s.Persist(ctx))

	snap, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.False(t, snap.SavedAt.IsZero())
	require.Len(t, snap.Kinds[KindRisk].Records, 1)
	assert.Equal(t, "r1", snap.Kinds[KindRisk].Records[0].ID)
	assert.JSONEq(t, `{"id":"r1","title":"falls"}`, string(snap.Kinds[KindRisk].Records[0].Body))
	assert.Equal(t, []string{"r0"}, snap.Kinds[KindRisk].Tombstones)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are renamed away")

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = store.Load(ctx)
	assert.Error(t, err)
}
