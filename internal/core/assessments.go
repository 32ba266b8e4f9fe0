package core

import (
	"context"
	"fmt"

	"earcheck/internal/assessment"
	"earcheck/internal/inference"
	"earcheck/internal/logger"
	"earcheck/pkg"
)

// Store persists sessions, their answer logs and accepted summaries.
// Lookups of unknown IDs return an error wrapping db.ErrNotFound.
// AppendEvent stores ev at position seq and fails with db.ErrConflict if
// that position is already taken, so two racing answers cannot both land.
type Store interface {
	CreateSession(ctx context.Context, audience pkg.Audience) (pkg.Session, error)
	GetSession(ctx context.Context, id string) (pkg.Session, error)
	AppendEvent(ctx context.Context, sessionID string, seq int, ev pkg.AnswerEvent) error
	TruncateEvents(ctx context.Context, sessionID string, keep int) error
	SaveSummary(ctx context.Context, rec pkg.SummaryRecord) (pkg.SummaryRecord, error)
	LatestSummary(ctx context.Context, sessionID string) (pkg.SummaryRecord, error)
}

// Notifier announces accepted summaries to the doctor dashboard.
type Notifier interface {
	Notify(ctx context.Context, sessionID string) error
}

// AssessmentService drives stored assessment sessions.  The event log is
// the only state it keeps; every answer is checked by replaying the log
// with the new event appended before anything is written.
type AssessmentService struct {
	Engine     *inference.Engine
	Store      Store
	Summarizer *Summarizer
	Notifier   Notifier
	Log        *logger.Logger
}

// NewAssessmentService wires the service.  summarizer and notifier may be
// nil: summaries then fail with ErrGenerationDisabled and nobody is
// notified.
func NewAssessmentService(engine *inference.Engine, store Store, summarizer *Summarizer, notifier Notifier, log *logger.Logger) *AssessmentService {
	if log == nil {
		log = logger.Nop()
	}
	return &AssessmentService{Engine: engine, Store: store, Summarizer: summarizer, Notifier: notifier, Log: log}
}

// Start opens a new session.
func (s *AssessmentService) Start(ctx context.Context, audience pkg.Audience) (pkg.Session, pkg.AssessmentState, error) {
	sess, err := s.Store.CreateSession(ctx, audience)
	if err != nil {
		return pkg.Session{}, pkg.AssessmentState{}, fmt.Errorf("create session: %w", err)
	}
	state, err := s.evaluate(sess.Events, sess.Audience)
	if err != nil {
		return pkg.Session{}, pkg.AssessmentState{}, err
	}
	s.Log.Info("assessment started", "session_id", sess.ID, "audience", sess.Audience)
	return sess, state, nil
}

// State replays the stored events of session id.
func (s *AssessmentService) State(ctx context.Context, id string) (pkg.Session, pkg.AssessmentState, error) {
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		return pkg.Session{}, pkg.AssessmentState{}, err
	}
	state, err := s.evaluate(sess.Events, sess.Audience)
	return sess, state, err
}

// Answer appends ev if it answers the current question.  A completed
// session takes no more answers; the caller goes back or restarts first.
func (s *AssessmentService) Answer(ctx context.Context, id string, ev pkg.AnswerEvent) (pkg.AssessmentState, error) {
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		return pkg.AssessmentState{}, err
	}
	cur, err := s.evaluate(sess.Events, sess.Audience)
	if err != nil {
		return pkg.AssessmentState{}, err
	}
	if cur.IsComplete {
		return pkg.AssessmentState{}, assessment.ErrAssessmentComplete
	}
	events := append(sess.Events[:len(sess.Events):len(sess.Events)], ev)
	state, err := s.evaluate(events, sess.Audience)
	if err != nil {
		return pkg.AssessmentState{}, err
	}
	if err := s.Store.AppendEvent(ctx, id, len(sess.Events), ev); err != nil {
		return pkg.AssessmentState{}, fmt.Errorf("append event: %w", err)
	}
	if state.IsComplete {
		s.Log.Info("assessment complete", "session_id", id, "events", len(events))
	}
	return state, nil
}

// Back drops the last answer.  With no answers it is a no-op.
func (s *AssessmentService) Back(ctx context.Context, id string) (pkg.AssessmentState, error) {
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		return pkg.AssessmentState{}, err
	}
	if len(sess.Events) == 0 {
		return s.evaluate(nil, sess.Audience)
	}
	keep := len(sess.Events) - 1
	if err := s.Store.TruncateEvents(ctx, id, keep); err != nil {
		return pkg.AssessmentState{}, fmt.Errorf("truncate events: %w", err)
	}
	return s.evaluate(sess.Events[:keep], sess.Audience)
}

// Restart clears every answer.
func (s *AssessmentService) Restart(ctx context.Context, id string) (pkg.AssessmentState, error) {
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		return pkg.AssessmentState{}, err
	}
	if err := s.Store.TruncateEvents(ctx, id, 0); err != nil {
		return pkg.AssessmentState{}, fmt.Errorf("truncate events: %w", err)
	}
	return s.evaluate(nil, sess.Audience)
}

// Summarize generates, stores and announces the report for a completed
// session.
func (s *AssessmentService) Summarize(ctx context.Context, id string) (pkg.SummaryRecord, error) {
	sess, err := s.Store.GetSession(ctx, id)
	if err != nil {
		return pkg.SummaryRecord{}, err
	}
	sum, err := s.Generate(ctx, sess.Audience, sess.Events)
	if err != nil {
		return pkg.SummaryRecord{}, err
	}
	rec, err := s.Store.SaveSummary(ctx, pkg.SummaryRecord{
		SessionID: id,
		Audience:  sess.Audience,
		Markdown:  sum.Markdown,
		Attempts:  sum.Attempts,
	})
	if err != nil {
		return pkg.SummaryRecord{}, fmt.Errorf("save summary: %w", err)
	}
	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, id); err != nil {
			s.Log.Warn("summary notification failed", "session_id", id, "error", err)
		}
	}
	return rec, nil
}

// LatestSummary returns the most recent accepted report of a session.
func (s *AssessmentService) LatestSummary(ctx context.Context, id string) (pkg.SummaryRecord, error) {
	return s.Store.LatestSummary(ctx, id)
}

// Generate replays events and, once they complete the assessment, produces
// the report without storing anything.
func (s *AssessmentService) Generate(ctx context.Context, audience pkg.Audience, events []pkg.AnswerEvent) (Summary, error) {
	state, err := s.evaluate(events, audience)
	if err != nil {
		return Summary{}, err
	}
	if !state.IsComplete {
		return Summary{}, ErrIncompleteAssessment
	}
	if s.Summarizer == nil {
		return Summary{}, ErrGenerationDisabled
	}
	payload := BuildSummaryPayload(s.Engine, state.Responses, audience)
	return s.Summarizer.Summarize(ctx, payload)
}

func (s *AssessmentService) evaluate(events []pkg.AnswerEvent, audience pkg.Audience) (pkg.AssessmentState, error) {
	return s.Engine.Catalog().Evaluate(events, audience)
}
