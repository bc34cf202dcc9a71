package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"collegecontent/internal/core"
	"collegecontent/internal/logger"
)

// maxBodyBytes bounds JSON and CSV request bodies
const maxBodyBytes = 10 << 20

// HealthResponse is the /health body
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// StatusResponse is the /api/status body
type StatusResponse struct {
	Uptime   string `json:"uptime"`
	Sessions int    `json:"sessions"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checks))
	healthy := true
	for name, c := range s.checks {
		if c.TestConnection(r.Context()) {
			checks[name] = "ok"
			continue
		}
		checks[name] = "error"
		healthy = false
	}

	if !healthy {
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, StatusResponse{
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Sessions: s.orch.Sessions().Len(),
	})
}

// handleContentTypes handles GET /api/content-types
func (s *Server) handleContentTypes(w http.ResponseWriter, r *http.Request) {
	c := s.orch.Catalog()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"content_types": c.All(),
		"presets":       c.Presets(),
	})
}

// handleSearchColleges handles GET /api/colleges?q=&limit=
func (s *Server) handleSearchColleges(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, core.Errorf(core.KindInvalidArgument, "server.SearchColleges", "query parameter q is required"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, core.Errorf(core.KindInvalidArgument, "server.SearchColleges", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := s.orch.SearchColleges(r.Context(), q, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"colleges": records, "count": len(records)})
}

// handleExtract handles POST /api/extract; it previews the filters of a request
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Request string `json:"request"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.respondJSON(w, http.StatusOK, s.orch.Extract(body.Request))
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", err)
	}
}

// respondError maps err's kind to a status and writes the error body
func (s *Server) respondError(w http.ResponseWriter, err error) {
	kind := core.KindOf(err)
	status := statusFor(kind)
	if kind == "" {
		kind = "internal"
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", err, "kind", string(kind))
	}
	s.respondJSON(w, status, ErrorResponse{
		Kind:      string(kind),
		Message:   err.Error(),
		Retryable: core.IsRetryable(err),
	})
}

func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindInvalidArgument, core.KindInputMalformed:
		return http.StatusBadRequest
	case core.KindNotFound, core.KindNoResults:
		return http.StatusNotFound
	case core.KindStateOrder:
		return http.StatusConflict
	case core.KindDataUnavailable:
		return http.StatusServiceUnavailable
	case core.KindGenerationTimeout:
		return http.StatusGatewayTimeout
	case core.KindGenerationRejected:
		return http.StatusUnprocessableEntity
	case core.KindGenerationFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, core.Wrap(core.KindInvalidArgument, "server.decode", err))
		return false
	}
	return true
}
