package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"earcheck/internal/assessment"
	"earcheck/internal/core"
	"earcheck/internal/db"
	"earcheck/internal/flow"
	"earcheck/internal/trees"
)

// apiError carries the status and machine-readable code a failure is
// reported with.
type apiError struct {
	Status int
	Code   string
	Err    error
}

func (e *apiError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *apiError) Unwrap() error { return e.Err }

func newAPIError(status int, code string, err error) *apiError {
	return &apiError{Status: status, Code: code, Err: err}
}

// toAPIError maps service errors onto HTTP statuses.  Timeouts and backend
// failures are checked before ErrUnableToGenerate since a GenerationError
// matches both.
func toAPIError(err error) *apiError {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, flow.ErrMalformedEvent):
		return newAPIError(http.StatusBadRequest, "malformed_event", err)
	case errors.Is(err, db.ErrNotFound), errors.Is(err, trees.ErrUnknownTree):
		return newAPIError(http.StatusNotFound, "not_found", err)
	case errors.Is(err, db.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", err)
	case errors.Is(err, assessment.ErrAssessmentComplete):
		return newAPIError(http.StatusConflict, "assessment_complete", err)
	case errors.Is(err, core.ErrIncompleteAssessment):
		return newAPIError(http.StatusConflict, "assessment_incomplete", err)
	case errors.Is(err, core.ErrGenerationDisabled):
		return newAPIError(http.StatusServiceUnavailable, "generation_unavailable", err)
	case errors.Is(err, core.ErrGenerationTimeout):
		return newAPIError(http.StatusGatewayTimeout, "generation_timed_out", err)
	case errors.Is(err, core.ErrBackendUnavailable):
		return newAPIError(http.StatusBadGateway, "backend_unavailable", err)
	case errors.Is(err, core.ErrUnableToGenerate):
		return newAPIError(http.StatusUnprocessableEntity, "unable_to_generate", err)
	case errors.Is(err, context.Canceled):
		return newAPIError(http.StatusRequestTimeout, "request_cancelled", err)
	}
	return newAPIError(http.StatusInternalServerError, "internal", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := toAPIError(err)
	msg := ae.Error()
	if ae.Status >= http.StatusInternalServerError {
		s.Log.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", ae.Code, "error", err)
		if ae.Status == http.StatusInternalServerError {
			msg = "internal error"
		}
	} else {
		s.Log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", ae.Code, "error", err)
	}
	writeJSON(w, ae.Status, map[string]any{"ok": false, "code": ae.Code, "error": msg})
}
