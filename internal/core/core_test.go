package core

import (
	"context"
	"strings"
	"sync"
	"testing"

	"earcheck/internal/inference"
	"earcheck/internal/llm"
	"earcheck/pkg"
)

// scriptedLLM answers each call with the next reply in order.  A reply
// func may block or fail.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []func(ctx context.Context) (string, error)
	calls   [][]llm.Message
	json    []bool
}

func text(s string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return s, nil }
}

func fail(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

// hang blocks until the call's context ends.
func hang() func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
}

func (s *scriptedLLM) next(ctx context.Context, msgs []llm.Message, jsonMode bool) (string, error) {
	s.mu.Lock()
	i := len(s.calls)
	s.calls = append(s.calls, msgs)
	s.json = append(s.json, jsonMode)
	s.mu.Unlock()
	if i >= len(s.replies) {
		return "", context.Canceled
	}
	return s.replies[i](ctx)
}

func (s *scriptedLLM) Complete(ctx context.Context, msgs []llm.Message) (string, error) {
	return s.next(ctx, msgs, false)
}

func (s *scriptedLLM) CompleteJSON(ctx context.Context, msgs []llm.Message) (string, error) {
	return s.next(ctx, msgs, true)
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// doc assembles a summary from sections; each section is a heading line
// followed by its body.
func doc(parts ...string) string {
	return strings.Join(parts, "\n")
}

const (
	symptomsSection  = HeadingSymptoms + "\n\n| Symptom | Question | Answer |\n| --- | --- | --- |\n| Hearing loss | Have you been experiencing hearing loss? | Yes |\n"
	diagnosisSection = HeadingDiagnosis + "\n\n" + LeadInPatient + ", the most likely cause is inner ear hearing loss.\n"
	altSection       = HeadingAlternatives + "\n\nSomething the model wrote.\n"
	stepsSection     = HeadingFurtherSteps + "\n\n- Hearing test.\n"
	treatmentSection = HeadingTreatment + "\n\n- Hearing aids may help.\n"
)

func goodDoc() string {
	return doc(symptomsSection, diagnosisSection, altSection, stepsSection, treatmentSection, ClosingLine)
}

func mustEngine(t *testing.T) *inference.Engine {
	t.Helper()
	e, err := inference.Default()
	if err != nil {
		t.Fatalf("inference.Default: %v", err)
	}
	return e
}

// hearingLossEvents is a complete assessment with left-sided hearing loss
// and nothing else.
func hearingLossEvents() []pkg.AnswerEvent {
	initial := func(id, v string) pkg.AnswerEvent {
		return pkg.AnswerEvent{SymptomID: id, QuestionID: "initial_" + id, Kind: pkg.KindInitial, Value: v}
	}
	return []pkg.AnswerEvent{
		initial("hearing_loss", "Yes"),
		{SymptomID: "hearing_loss", QuestionID: "hearing_loss_severity", Kind: pkg.KindFollowUp, Value: "3 - Struggle to hear clearly even in one-to-one conversation"},
		{SymptomID: "hearing_loss", QuestionID: "hearing_loss_side", Kind: pkg.KindFollowUp, Value: "Left ear"},
		initial("earache", "No"),
		initial("discharge", "No"),
		initial("itching", "No"),
		initial("tinnitus", "No"),
		initial("vertigo", "No"),
	}
}
