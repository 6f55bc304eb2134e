package reconcile

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qsync/internal/events"
	"qsync/internal/push"
	dErrors "qsync/pkg/domain-errors"
	"qsync/pkg/platform/httputil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestServer(t *testing.T) (*httptest.Server, *events.Bus) {
	t.Helper()
	bus := events.New()
	pushSrv := push.NewServer(bus, push.WithHeartbeat(time.Hour), push.WithLogger(quietLogger()))
	r := chi.NewRouter()
	pushSrv.Register(r)
	r.Get("/api/risks", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, []map[string]any{
			{"id": "r1", "updatedAt": "2025-03-01T08:00:00Z", "riskLevel": "High"},
			{"id": "r2", "updatedAt": "2025-03-01T09:00:00Z", "riskLevel": "Low"},
		})
	})
	r.Get("/api/profiles", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token expired"))
	})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, bus
}

func TestClientFetch(t *testing.T) {
	ts, _ := newTestServer(t)
	c := NewClient(ts.URL + "/")

	records, err := c.Fetch(context.Background(), KindRisk)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].ID)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), records[1].UpdatedAt)
	assert.Contains(t, string(records[1].Body), `"riskLevel":"Low"`)

	_, err = c.Fetch(context.Background(), KindProfile)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, string(dErrors.CodeUnauthorized), httpErr.Code)
}

func TestClientStreamFromPushServer(t *testing.T) {
	ts, bus := newTestServer(t)
	c := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opened := make(chan struct{})
	got := make(chan events.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Stream(ctx, func() { close(opened) }, func(ev events.Event) error {
			got <- ev
			return nil
		})
	}()

	select {
	case <-opened:
	case <-ctx.Done():
		t.Fatal("stream never opened")
	}
	_, err := bus.Emit(ctx, events.RiskCreated, map[string]any{"id": "r9", "updatedAt": "2025-03-01T10:00:00Z"})
	require.NoError(t, err)
	_, err = bus.Emit(ctx, events.RiskDeleted, events.Tombstone{ID: "r9"})
	require.NoError(t, err)

	first, second := <-got, <-got
	assert.Equal(t, events.RiskCreated, first.Topic)
	assert.JSONEq(t, `{"id":"r9","updatedAt":"2025-03-01T10:00:00Z"}`, string(first.Payload))
	assert.Equal(t, events.RiskDeleted, second.Topic)
	assert.Greater(t, second.Seq, first.Seq)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Eventually(t, func() bool {
		return bus.ListenerCount(events.RiskCreated) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReadSSE(t *testing.T) {
	body := strings.Join([]string{
		": connected",
		"",
		"id:7",
		"event:profile:updated",
		"data:{\"id\":\"p1\"}",
		"",
		": ping",
		"",
		"event: notification:new",
		"id: 8",
		"data: {\"a\":1,",
		"data: \"b\":2}",
		"",
		"data:orphan without event",
		"",
	}, "\n")

	var got []events.Event
	err := readSSE(strings.NewReader(body), func(ev events.Event) error {
		got = append(got, ev)
		return nil
	})
	assert.ErrorIs(t, err, ErrStreamClosed)
	require.Len(t, got, 2)
	assert.Equal(t, events.ProfileUpdated, got[0].Topic)
	assert.Equal(t, uint64(7), got[0].Seq)
	assert.Equal(t, `{"id":"p1"}`, string(got[0].Payload))
	assert.Equal(t, events.NotificationNew, got[1].Topic)
	assert.JSONEq(t, `{"a":1,"b":2}`, string(got[1].Payload))
}

func TestReadSSEStopsOnHandlerError(t *testing.T) {
	stop := errors.New("stop")
	err := readSSE(strings.NewReader("event:risk:created\ndata:{}\n\nevent:risk:created\ndata:{}\n\n"),
		func(events.Event) error { return stop })
	assert.ErrorIs(t, err, stop)
}
