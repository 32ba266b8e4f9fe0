package pkg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Audience selects wording variants for prompts and generated summaries.
// The underlying diagnostic facts never depend on it.
type Audience string

const (
	AudienceClinician Audience = "clinician"
	AudiencePatient   Audience = "patient"
)

// ParseAudience maps a free-form audience tag onto a known Audience.  An
// empty value defaults to the patient audience.
func ParseAudience(s string) (Audience, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(AudiencePatient):
		return AudiencePatient, nil
	case string(AudienceClinician):
		return AudienceClinician, nil
	default:
		return "", fmt.Errorf("unknown audience %q", s)
	}
}

// QuestionKind distinguishes the screening question of a symptom from its
// follow-up questions.
type QuestionKind string

const (
	KindInitial  QuestionKind = "initial"
	KindFollowUp QuestionKind = "followup"
)

// AnswerEvent is a single answer given by the user.  Events arrive one at a
// time in chronological order; the order is part of the contract.
type AnswerEvent struct {
	SymptomID  string       `json:"symptom_id"`
	QuestionID string       `json:"question_id"`
	Kind       QuestionKind `json:"kind"`
	Value      string       `json:"value"`
}

// OrderedAnswers maps question IDs to the chosen answer while remembering the
// order in which the questions were answered.  The zero value is ready to use.
type OrderedAnswers struct {
	keys   []string
	values map[string]string
}

// Set stores value under key.  Re-setting an existing key keeps its
// original position.
func (a *OrderedAnswers) Set(key, value string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Get returns the answer recorded for key.
func (a OrderedAnswers) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Keys returns the answered question IDs in answer order.
func (a OrderedAnswers) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

func (a OrderedAnswers) Len() int { return len(a.keys) }

// MarshalJSON writes the answers as a JSON object whose keys keep answer
// order.
func (a OrderedAnswers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(a.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving the key order of the
// document.
func (a *OrderedAnswers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("answers: expected object")
	}
	*a = OrderedAnswers{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("answers: expected string key")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("answers: %s: %w", key, err)
		}
		a.Set(key, value)
	}
	_, err = dec.Token()
	return err
}

// SymptomResponse is derived by replaying answer events.  Present is nil
// until the screening question has been answered.
type SymptomResponse struct {
	Present *bool          `json:"present"`
	Answers OrderedAnswers `json:"answers"`
}

// IsPresent reports whether the screening answer was affirmative.
func (r SymptomResponse) IsPresent() bool {
	return r.Present != nil && *r.Present
}

// Responses holds one SymptomResponse per catalog symptom, keyed by symptom
// ID.
type Responses map[string]SymptomResponse

// QuestionStep describes the next unanswered question.  It is always
// computed from the replay cursor, never stored.
type QuestionStep struct {
	SymptomID    string       `json:"symptom_id"`
	SymptomLabel string       `json:"symptom_label"`
	QuestionID   string       `json:"question_id"`
	Prompt       string       `json:"prompt"`
	Description  string       `json:"description,omitempty"`
	Options      []string     `json:"options"`
	Kind         QuestionKind `json:"kind"`
}

// AssessmentState is the full derivation of an event list.
type AssessmentState struct {
	Responses   Responses     `json:"responses"`
	CurrentStep *QuestionStep `json:"current_step"`
	IsComplete  bool          `json:"is_complete"`
}

// FindingKind records which rule family produced a finding.
type FindingKind string

const (
	FindingSingle FindingKind = "single"
	FindingCombo  FindingKind = "combo"
)

type Diagnosis struct {
	Title   string      `json:"title"`
	BasedOn []string    `json:"basedOn"`
	Kind    FindingKind `json:"type"`
}

type Expectation struct {
	Text    string      `json:"text"`
	BasedOn []string    `json:"basedOn"`
	Kind    FindingKind `json:"type"`
}

// Inference is the output of the rule engine for a completed assessment.
type Inference struct {
	Diagnoses          []Diagnosis   `json:"diagnoses"`
	Expectations       []Expectation `json:"expectations"`
	AlternateDiagnoses []string      `json:"alternateDiagnoses"`
}

// FollowUpAnswer pairs a follow-up prompt with the answer shown to the
// selected audience.
type FollowUpAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SymptomSummary is the per-symptom projection sent to the generation
// backend.
type SymptomSummary struct {
	ID              string           `json:"id"`
	Label           string           `json:"label"`
	Description     string           `json:"description"`
	Present         bool             `json:"present"`
	InitialQuestion string           `json:"initialQuestion"`
	InitialAnswer   string           `json:"initialAnswer"`
	FollowUps       []FollowUpAnswer `json:"followUps"`
}

// QuestionAsked is one row of the Symptom / Question / Answer table.
type QuestionAsked struct {
	Symptom  string       `json:"symptom"`
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Type     QuestionKind `json:"type"`
}

// SummaryPayload is the normalized projection handed to the generation
// backend.  It is immutable once built for a completed session.
type SummaryPayload struct {
	Area               string           `json:"area"`
	Audience           Audience         `json:"audience"`
	SymptomOrder       []string         `json:"symptomOrder"`
	Symptoms           []SymptomSummary `json:"symptoms"`
	NegativeSymptoms   []string         `json:"negativeSymptoms"`
	QuestionsAsked     []QuestionAsked  `json:"questionsAsked"`
	Diagnoses          []Diagnosis      `json:"diagnoses"`
	Expectations       []Expectation    `json:"expectations"`
	AlternateDiagnoses []string         `json:"alternateDiagnoses"`
}

// Session is a persisted assessment.  The event log is the only durable
// state; everything else is replayed.
type Session struct {
	ID        string        `json:"id"`
	Audience  Audience      `json:"audience"`
	Events    []AnswerEvent `json:"events"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SummaryRecord is an accepted, validated summary stored for the doctor
// dashboard.
type SummaryRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Audience  Audience  `json:"audience"`
	Markdown  string    `json:"summary"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// TreeStep is one visited node of a decision-tree walk, in the shape the
// tree summariser consumes.
type TreeStep struct {
	Step           int      `json:"step"`
	Title          string   `json:"title"`
	Prompt         string   `json:"prompt,omitempty"`
	SelectedOption string   `json:"selectedOption,omitempty"`
	Type           string   `json:"type"`
	Content        []string `json:"content,omitempty"`
}

// TreeOutcome is the node the walk stopped on.
type TreeOutcome struct {
	Title   string   `json:"title"`
	Content []string `json:"content,omitempty"`
}

// TreeSummaryInput is the payload for summarising a decision-tree walk.
type TreeSummaryInput struct {
	TreeID    string       `json:"treeId"`
	TreeLabel string       `json:"treeLabel"`
	Steps     []TreeStep   `json:"steps"`
	Outcome   *TreeOutcome `json:"outcome,omitempty"`
}
