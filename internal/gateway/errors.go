package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"shopassist/internal/brain"
	"shopassist/internal/catalog"
	"shopassist/internal/chat"
)

// apiError is the JSON error envelope: {error, message, status, request_id}.
type apiError struct {
	Code    string
	Message string
	Status  int
}

func newAPIError(code, message string, status int) apiError {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return apiError{Code: sanitize(code, 80), Message: sanitize(message, 512), Status: status}
}

// writeError writes e with the request id chi assigned to ctx.
func writeError(ctx context.Context, w http.ResponseWriter, e apiError) {
	payload := map[string]any{
		"error":   e.Code,
		"message": e.Message,
		"status":  e.Status,
	}
	if id := sanitize(middleware.GetReqID(ctx), 80); id != "" {
		payload["request_id"] = id
	}
	writeJSON(w, e.Status, payload)
}

// errorFor maps service errors to HTTP: caller mistakes are 400, unavailable
// dependencies 503, everything else 500.
func errorFor(err error) apiError {
	switch {
	case errors.Is(err, chat.ErrInvalidRequest):
		return newAPIError("invalid_request", err.Error(), http.StatusBadRequest)
	case errors.Is(err, brain.ErrModelUnavailable):
		return newAPIError("model_unavailable", err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, catalog.ErrUnavailable):
		return newAPIError("catalog_unavailable", err.Error(), http.StatusServiceUnavailable)
	default:
		return newAPIError("internal_error", err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func sanitize(value string, limit int) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
