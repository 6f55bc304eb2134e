package push

import "github.com/go-chi/chi/v5"

// Register mounts the push endpoints. They must not sit behind a request timeout.
func (s *Server) Register(r chi.Router) {
	r.Get("/api/events", s.ServeSSE)
	r.Get("/api/events/ws", s.ServeWebSocket)
}
