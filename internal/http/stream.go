package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"earcheck/pkg"
)

type summaryEvent struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	Audience  pkg.Audience `json:"audience"`
	Summary   string       `json:"summary"`
	Attempts  int          `json:"attempts"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// handleSummaryStream relays accepted summaries to the doctor dashboard as
// server-sent events until the client goes away.  A comment line is sent
// every KeepAlive so proxies keep the connection open.
func (s *Server) handleSummaryStream(w http.ResponseWriter, r *http.Request) {
	if s.Listener == nil {
		s.writeError(w, r, newAPIError(http.StatusServiceUnavailable, "stream_unavailable",
			errors.New("summary notifications are not configured")))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errors.New("streaming unsupported"))
		return
	}

	ctx := r.Context()
	updates, err := s.Listener.Listen(ctx)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("listen: %w", err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case id, ok := <-updates:
			if !ok {
				return
			}
			rec, err := s.Assessments.LatestSummary(ctx, id)
			if err != nil {
				s.Log.Warn("summary stream lookup failed", "session_id", id, "error", err)
				continue
			}
			if err := writeEvent(w, "summary_update", summaryEvent{
				Type:      "summary_update",
				SessionID: id,
				Audience:  rec.Audience,
				Summary:   rec.Markdown,
				Attempts:  rec.Attempts,
				UpdatedAt: rec.CreatedAt,
			}); err != nil {
				s.Log.Debug("summary stream closed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes one SSE event with v serialised as JSON after the
// "data:" prefix.
func writeEvent(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
