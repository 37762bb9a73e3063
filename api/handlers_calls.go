package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"broker-calls/apperr"
	"broker-calls/calls"
	models "broker-calls/database/models_pkg"
	"broker-calls/uploads"

	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a multipart body is held in memory before spilling to disk
const multipartMemory = 8 << 20

// readCallFields accepts either a multipart form or a JSON object
func (s *Server) readCallFields(w http.ResponseWriter, r *http.Request) (calls.RawFields, bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxRequestBytes)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		raw := calls.RawFields{}
		if err := decodeJSON(r, &raw); err != nil {
			return nil, false, err
		}
		return raw, false, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, false, apperr.Validation("Request body exceeds 10MB")
		}
		return nil, false, apperr.Validation("Invalid multipart form")
	}
	return calls.FormFields(r.MultipartForm.Value), true, nil
}

// handleCreateCall submits a call for review
func (s *Server) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	raw, multipart, err := s.readCallFields(w, r)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	if multipart {
		defer r.MultipartForm.RemoveAll()
	}

	in := calls.InputFromFields(raw)
	if fields := in.Validate(); len(fields) > 0 {
		s.respondWithError(w, r, apperr.Validation("Validation failed", fields...))
		return
	}

	if multipart {
		saved, err := s.uploads.SaveAll(r.MultipartForm.File["attachments"])
		if err != nil {
			s.respondWithError(w, r, apperr.Internal("Failed to store attachments", err))
			return
		}
		in.Attachments = saved
	}

	call, err := s.calls.Create(r.Context(), UserFrom(r.Context()), in)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]interface{}{"call": call})
}

func (s *Server) handleListPublic(w http.ResponseWriter, r *http.Request) {
	list, err := s.calls.ListPublic(r.Context(), r.URL.Query().Get("broker"))
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"calls": list})
}

func (s *Server) handleListMine(w http.ResponseWriter, r *http.Request) {
	list, err := s.calls.ListMine(r.Context(), UserFrom(r.Context()).ID)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"calls": list})
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	list, err := s.calls.ListPending(r.Context())
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"calls": list})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, s.calls.Approve)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, s.calls.Reject)
}

func (s *Server) moderate(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id int64) (*models.Call, error)) {
	id, err := getIDParam(r, "id")
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	call, err := action(r.Context(), id)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"call": call})
}

// handlePerformance answers with the chart series for a call's stock
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	id, err := getIDParam(r, "callId")
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Call not found"})
		return
	}

	points, err := s.calls.Performance(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{"priceHistory": points})
	case apperr.Is(err, apperr.KindNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Call not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch live data"})
	}
}

func (s *Server) handleBrokerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.calls.BrokerStats(r.Context(), chi.URLParam(r, "brokerName"))
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
