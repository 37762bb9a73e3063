package api

import "net/http"

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.notifications.List(r.Context(), UserFrom(r.Context()).ID)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"notifications": list})
}

// handleMarkRead marks one of the caller's notifications as read
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := getIDParam(r, "id")
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	n, err := s.notifications.MarkRead(r.Context(), UserFrom(r.Context()).ID, id)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"notification": n})
}
