package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"broker-calls/apperr"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeSuccess wraps data in the success envelope
func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}

// respondWithError maps err to a status and the error envelope. Unclassified
// errors are logged and answered with a generic message.
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal("Something went wrong", err)
	}

	code := appErr.Status()
	status := "fail"
	if code >= http.StatusInternalServerError {
		status = "error"
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", code),
			zap.Error(err),
		)
	}

	body := map[string]interface{}{
		"status":  status,
		"message": appErr.Message,
	}
	if len(appErr.Fields) > 0 {
		body["errors"] = appErr.Fields
	}
	writeJSON(w, code, body)
}

// decodeJSON reads a JSON body into v. An empty body is a validation error.
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Request body is required")
		}
		return apperr.Validation("Invalid JSON body")
	}
	return nil
}

// getIDParam parses a positive int64 route parameter
func getIDParam(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid id")
	}
	return id, nil
}
