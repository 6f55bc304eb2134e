package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "qsync/pkg/platform/audit"
	"qsync/pkg/platform/audit/store/memory"
)

const recordID = "5b0c5d5e-1111-4a7a-9c7e-000000000001"

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		RecordID: recordID,
		Action:   string(audit.EventRecordCreated),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), recordID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventRecordCreated), events[0].Action)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			RecordID: recordID,
			Action:   string(audit.EventRecordUpdated),
		}))
	}
	pub.Close()

	events, err := store.ListByRecord(context.Background(), recordID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{RecordID: recordID})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{RecordID: recordID}))
	after := time.Now()

	events, err := pub.List(context.Background(), recordID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.Before(before))
	assert.False(t, events[0].Timestamp.After(after))
}

func TestPublisher_PreservesOrder(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	actions := []audit.AuditEvent{audit.EventRecordCreated, audit.EventStatusTransitioned, audit.EventDeleteBlocked}
	for _, a := range actions {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{RecordID: recordID, Action: string(a)}))
	}

	events, err := pub.List(context.Background(), recordID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, a := range actions {
		assert.Equal(t, string(a), events[i].Action)
	}
}
