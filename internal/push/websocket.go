package push

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

// ServeWebSocket is ServeSSE over a websocket. Each message is the JSON
// encoding of events.Event.
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r) {
		return
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
	if err != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := s.Open()
	defer conn.Close()

	// Reads only detect the peer going away; clients send nothing.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = ws.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = ws.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-conn.Done():
			reason := "closed"
			if conn.Overflowed() {
				reason = "overflow"
			}
			_ = ws.Close(websocket.StatusTryAgainLater, reason)
			return
		case <-heartbeat.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, wsWriteTimeout)
			err := ws.Ping(pingCtx)
			cancelPing()
			if err != nil {
				_ = ws.Close(websocket.StatusGoingAway, "ping_failed")
				return
			}
		case ev := <-conn.Events():
			if conn.Closed() {
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, ws, ev)
			cancelWrite()
			if err != nil {
				_ = ws.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
			conn.MarkDelivered()
		}
	}
}
