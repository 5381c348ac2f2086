package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gloodata/ext-go-demography/internal/domain"
	"github.com/gloodata/ext-go-demography/internal/middleware"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// httpStatusFromError maps domain errors to HTTP status codes.
func httpStatusFromError(err error) int {
	var validation *domain.ValidationError
	var notFound *domain.NotFoundError
	var noArtifact *domain.ArtifactNotFoundError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &noArtifact):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Do not leak internals to the client.
		h.logger.Error("request failed", "error", err, "path", r.URL.Path)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{
		Code:      status,
		Message:   msg,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
