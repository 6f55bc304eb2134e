package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qsync/pkg/platform/audit"
	"qsync/pkg/platform/audit/publisher"
	"qsync/pkg/platform/audit/store/memory"
	"qsync/pkg/requestcontext"
)

type failingPublisher struct{}

func (failingPublisher) Emit(context.Context, audit.Event) error { return errors.New("disk full") }

func TestEmitterRecordsLogLineAndEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	store := memory.NewInMemoryStore()
	emitter := audit.NewEmitter(logger, publisher.NewPublisher(store))

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithActor(context.Background(), "alice", "ICU")
	ctx = requestcontext.WithRequestID(requestcontext.WithTime(ctx, at), "req-1")

	require.NoError(t, emitter.Record(ctx, audit.EventDeleteBlocked, "profile", "p-1", "has_achievements"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit", line["log_type"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "has_achievements", line["reason"])

	events, err := store.ListByRecord(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Actor)
	assert.Equal(t, at, events[0].Timestamp)
	assert.Equal(t, string(audit.EventDeleteBlocked), events[0].Action)
}

func TestEmitterBlockedSwallowsPublisherErrors(t *testing.T) {
	var buf bytes.Buffer
	emitter := audit.NewEmitter(slog.New(slog.NewTextHandler(&buf, nil)), failingPublisher{})

	assert.Error(t, emitter.Record(context.Background(), audit.EventRecordCreated, "risk", "r-1", ""))
	emitter.RecordBlocked(context.Background(), audit.EventDeleteBlocked, "risk", "r-1", "")
	assert.Contains(t, buf.String(), "failed to record audit event")
}

func TestEmitterWithoutSinks(t *testing.T) {
	assert.NoError(t, audit.NewEmitter(nil, nil).Record(context.Background(), audit.EventRecordDeleted, "risk", "r-1", ""))
}
