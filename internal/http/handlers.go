package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"earcheck/pkg"
)

type startRequest struct {
	Audience string `json:"audience"`
}

type generateRequest struct {
	Audience string            `json:"audience"`
	Events   []pkg.AnswerEvent `json:"events"`
}

func parseAudience(s string) (pkg.Audience, error) {
	a, err := pkg.ParseAudience(s)
	if err != nil {
		return "", newAPIError(http.StatusBadRequest, "invalid_audience", err)
	}
	return a, nil
}

// handleStart opens a session and returns its first question.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := s.decodeJSON(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	audience, err := parseAudience(req.Audience)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, state, err := s.Assessments.Start(r.Context(), audience)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":         true,
		"session_id": sess.ID,
		"audience":   sess.Audience,
		"state":      state,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, state, err := s.Assessments.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"session_id": sess.ID,
		"audience":   sess.Audience,
		"events":     sess.Events,
		"state":      state,
	})
}

// handleAnswer appends one answer event.  Anything that does not answer
// the current question is rejected with 400 and nothing is stored.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var ev pkg.AnswerEvent
	if err := s.decodeJSON(w, r, &ev, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	state, err := s.Assessments.Answer(r.Context(), chi.URLParam(r, "id"), ev)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": state})
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	state, err := s.Assessments.Back(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": state})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	state, err := s.Assessments.Restart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": state})
}

// handleSummarize generates, stores and announces the summary of a
// completed session.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Assessments.Summarize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"summary":    rec.Markdown,
		"summary_id": rec.ID,
		"attempts":   rec.Attempts,
	})
}

func (s *Server) handleLatestSummary(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Assessments.LatestSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "summary": rec})
}

// handleGenerate summarises an event log sent in the request without
// creating a session.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := s.decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	audience, err := parseAudience(req.Audience)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.Assessments.Generate(r.Context(), audience, req.Events)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "summary": sum.Markdown, "attempts": sum.Attempts})
}
