package api

import (
	"encoding/json"
	"net/http"

	"broker-calls/apperr"
)

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	list, err := s.watchlist.Get(r.Context(), UserFrom(r.Context()).ID)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"watchlist": list})
}

// handleSetWatchlist replaces the caller's watchlist with an array of symbols
func (s *Server) handleSetWatchlist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Watchlist json.RawMessage `json:"watchlist"`
	}
	var list []string
	if err := decodeJSON(r, &body); err != nil || json.Unmarshal(body.Watchlist, &list) != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid watchlist format"})
		return
	}

	if err := s.watchlist.Set(r.Context(), UserFrom(r.Context()).ID, list); err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid watchlist format"})
			return
		}
		s.respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
