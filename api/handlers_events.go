package api

import "net/http"

// handleEvents streams the caller's events over SSE
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.broker.ServeSSE(w, r, UserFrom(r.Context()).ID)
}

// handleEventsWS streams the caller's events over a WebSocket
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	s.broker.ServeWS(s.upgrader, w, r, UserFrom(r.Context()).ID)
}
