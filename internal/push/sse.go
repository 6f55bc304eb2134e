package push

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"

	"qsync/internal/events"
	dErrors "qsync/pkg/domain-errors"
	"qsync/pkg/platform/httputil"
	"qsync/pkg/platform/middleware/metadata"
)

// ServeSSE streams every bus event to the client until the request context is
// cancelled, a write fails, or the queue overflows.
func (s *Server) ServeSSE(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.admit(w, r) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	conn := s.Open()
	defer conn.Close()

	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()
	s.logger.DebugContext(ctx, "push connection opened",
		"connection_id", conn.ID(),
		"transport", "sse",
		"client_ip", metadata.ClientIPFromRequest(r),
	)

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-conn.Events():
			if conn.Closed() {
				return
			}
			if err := writeSSE(w, ev); err != nil {
				s.logger.DebugContext(ctx, "push write failed",
					"connection_id", conn.ID(),
					"error", err,
				)
				return
			}
			flusher.Flush()
			conn.MarkDelivered()
			heartbeat.Reset(s.heartbeat)
		}
	}
}

func writeSSE(w io.Writer, ev events.Event) error {
	return sse.Encode(w, sse.Event{
		Event: string(ev.Topic),
		Id:    strconv.FormatUint(ev.Seq, 10),
		Data:  string(ev.Payload),
	})
}

func (s *Server) admit(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	if s.limiter.Allow(metadata.ClientIPFromRequest(r)) {
		return true
	}
	s.metrics.refused("rate_limited")
	w.Header().Set("Retry-After", "60")
	httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many push connections"))
	return false
}
