package assessment

import (
	"errors"

	"earcheck/internal/flow"
	"earcheck/pkg"
)

// ErrAssessmentComplete is returned for an answer given after every symptom
// has been answered.  Replay would ignore such an event, so it is never
// recorded.
var ErrAssessmentComplete = errors.New("assessment is already complete")

// Session owns the event list of a single assessment.  It is not safe for
// concurrent use; each user gets their own.
type Session struct {
	catalog  *Catalog
	audience pkg.Audience
	events   []pkg.AnswerEvent
}

// NewSession starts an empty session.
func NewSession(c *Catalog, audience pkg.Audience) *Session {
	return &Session{catalog: c, audience: audience}
}

// State replays the current events.
func (s *Session) State() (pkg.AssessmentState, error) {
	return s.catalog.Evaluate(s.events, s.audience)
}

// Answer appends ev if, and only if, it answers the current question.
// A rejected event leaves the session untouched.  Once the assessment is
// complete every answer fails with ErrAssessmentComplete.
func (s *Session) Answer(ev pkg.AnswerEvent) (pkg.AssessmentState, error) {
	cur, err := s.State()
	if err != nil {
		return pkg.AssessmentState{}, err
	}
	if cur.IsComplete {
		return pkg.AssessmentState{}, ErrAssessmentComplete
	}
	next := make([]pkg.AnswerEvent, len(s.events), len(s.events)+1)
	copy(next, s.events)
	next = append(next, ev)
	state, err := s.catalog.Evaluate(next, s.audience)
	if err != nil {
		return pkg.AssessmentState{}, err
	}
	s.events = next
	return state, nil
}

// AnswerCurrent answers whatever question is current with value.
func (s *Session) AnswerCurrent(value string) (pkg.AssessmentState, error) {
	state, err := s.State()
	if err != nil {
		return pkg.AssessmentState{}, err
	}
	if state.CurrentStep == nil {
		return state, nil
	}
	return s.Answer(EventFor(*state.CurrentStep, value))
}

// Back drops the last answer.
func (s *Session) Back() (pkg.AssessmentState, error) {
	s.events = flow.Back(s.events)
	return s.State()
}

// Restart clears every answer.
func (s *Session) Restart() (pkg.AssessmentState, error) {
	s.events = nil
	return s.State()
}

// Events returns a copy of the answers given so far.
func (s *Session) Events() []pkg.AnswerEvent {
	out := make([]pkg.AnswerEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Session) Audience() pkg.Audience { return s.audience }

// EventFor builds the event that answers step with value.
func EventFor(step pkg.QuestionStep, value string) pkg.AnswerEvent {
	return pkg.AnswerEvent{
		SymptomID:  step.SymptomID,
		QuestionID: step.QuestionID,
		Kind:       step.Kind,
		Value:      value,
	}
}
