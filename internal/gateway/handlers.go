package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"shopassist/internal/chat"
)

// rootResponse is the GET / payload.
type rootResponse struct {
	Message   string `json:"message"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Message:   "Shopping assistant API",
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleHealth answers 200 when healthy and 503 otherwise, with the same body.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.checker.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(r.Context(), w, newAPIError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		limit = n
	}
	list, err := s.svc.Products(r.Context(), limit)
	if err != nil {
		s.fail(w, r, "products", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var q chat.ProductQuery
	if !s.decode(w, r, &q) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	rec, err := s.svc.Recommend(ctx, q)
	if err != nil {
		s.fail(w, r, "recommend", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if !s.decode(w, r, &req) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	resp, err := s.svc.Chat(ctx, req)
	if err != nil {
		s.fail(w, r, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v, writing a 400 envelope on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		msg := "request body must be valid JSON"
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			msg = "request body too large"
		} else if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeError(r.Context(), w, newAPIError("invalid_json", msg, http.StatusBadRequest))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	e := errorFor(err)
	if e.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "op", op, "status", e.Status, "error", err)
	}
	writeError(r.Context(), w, e)
}
