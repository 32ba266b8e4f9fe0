package assessment

import (
	"errors"
	"reflect"
	"testing"

	"earcheck/internal/flow"
	"earcheck/pkg"
)

func initial(symptom, value string) pkg.AnswerEvent {
	return pkg.AnswerEvent{SymptomID: symptom, QuestionID: "initial_" + symptom, Kind: pkg.KindInitial, Value: value}
}

func followUp(symptom, question, value string) pkg.AnswerEvent {
	return pkg.AnswerEvent{SymptomID: symptom, QuestionID: question, Kind: pkg.KindFollowUp, Value: value}
}

func allNo(c *Catalog) []pkg.AnswerEvent {
	events := make([]pkg.AnswerEvent, 0, c.Len())
	for _, s := range c.Symptoms {
		events = append(events, initial(s.ID, "No"))
	}
	return events
}

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	want := []string{"hearing_loss", "earache", "discharge", "itching", "tinnitus", "vertigo"}
	if c.Len() != len(want) {
		t.Fatalf("len = %d, want %d", c.Len(), len(want))
	}
	for i, id := range want {
		if c.Symptoms[i].ID != id {
			t.Errorf("symptom %d = %q, want %q", i, c.Symptoms[i].ID, id)
		}
	}
	if got := c.Graph().RootID; got != "initial_hearing_loss" {
		t.Errorf("root = %q", got)
	}
}

func TestAllNoCompletesAfterOneEventPerSymptom(t *testing.T) {
	c := MustDefaultCatalog()
	events := allNo(c)
	for i := range events {
		state, err := c.Evaluate(events[:i], pkg.AudiencePatient)
		if err != nil {
			t.Fatalf("Evaluate(%d): %v", i, err)
		}
		if state.IsComplete {
			t.Fatalf("complete after %d of %d events", i, len(events))
		}
	}
	state, err := c.Evaluate(events, pkg.AudiencePatient)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !state.IsComplete || state.CurrentStep != nil {
		t.Fatalf("complete = %v, step = %+v", state.IsComplete, state.CurrentStep)
	}
	for id, r := range state.Responses {
		if r.Present == nil || *r.Present {
			t.Errorf("%s: present = %v, want false", id, r.Present)
		}
	}
}

func TestSmallCatalogAllNo(t *testing.T) {
	c, err := NewCatalog("test", []Symptom{
		{ID: "a", Label: "A", FollowUps: []Question{{ID: "a_q", Prompt: "?", Options: []string{"x"}}}},
		{ID: "b", Label: "B"},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	state, err := c.Evaluate(allNo(c), pkg.AudiencePatient)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !state.IsComplete {
		t.Fatal("expected complete")
	}
}

func TestEmptyCatalogIsComplete(t *testing.T) {
	c, err := NewCatalog("empty", nil)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	state, err := c.Evaluate(nil, pkg.AudiencePatient)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !state.IsComplete {
		t.Fatal("empty catalog should be complete immediately")
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog("dup", []Symptom{{ID: "a"}, {ID: "a"}})
	if err == nil {
		t.Fatal("expected duplicate symptom error")
	}
	_, err = NewCatalog("dup", []Symptom{
		{ID: "a", FollowUps: []Question{{ID: "q", Options: []string{"x"}}}},
		{ID: "b", FollowUps: []Question{{ID: "q", Options: []string{"x"}}}},
	})
	if err == nil {
		t.Fatal("expected duplicate question error")
	}
}

func hearingLossScenario() []pkg.AnswerEvent {
	return []pkg.AnswerEvent{
		initial("hearing_loss", "Yes"),
		followUp("hearing_loss", "hearing_loss_severity", "3 - Struggle to hear clearly even in one-to-one conversation"),
		followUp("hearing_loss", "hearing_loss_side", "Left ear"),
		initial("earache", "No"),
		initial("discharge", "No"),
		initial("itching", "No"),
		initial("tinnitus", "No"),
		initial("vertigo", "No"),
	}
}

func TestHearingLossScenario(t *testing.T) {
	c := MustDefaultCatalog()
	state, err := c.Evaluate(hearingLossScenario(), pkg.AudienceClinician)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !state.IsComplete {
		t.Fatal("expected complete")
	}
	hl := state.Responses["hearing_loss"]
	if !hl.IsPresent() {
		t.Fatal("hearing_loss should be present")
	}
	wantKeys := []string{"initial_hearing_loss", "hearing_loss_severity", "hearing_loss_side"}
	if got := hl.Answers.Keys(); !reflect.DeepEqual(got, wantKeys) {
		t.Errorf("answer keys = %v, want %v", got, wantKeys)
	}
	if side, _ := hl.Answers.Get("hearing_loss_side"); side != "Left ear" {
		t.Errorf("side = %q", side)
	}
}

func TestCurrentStepFollowsCursor(t *testing.T) {
	c := MustDefaultCatalog()
	events := hearingLossScenario()

	state, err := c.Evaluate(nil, pkg.AudienceClinician)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	step := state.CurrentStep
	if step.QuestionID != "initial_hearing_loss" || step.Kind != pkg.KindInitial {
		t.Fatalf("first step = %+v", step)
	}
	if step.Prompt != "Does the patient have hearing loss?" {
		t.Errorf("clinician prompt = %q", step.Prompt)
	}
	if !reflect.DeepEqual(step.Options, []string{"Yes", "No"}) {
		t.Errorf("options = %v", step.Options)
	}
	if step.Description == "" {
		t.Error("screening step should carry the symptom description")
	}

	state, _ = c.Evaluate(nil, pkg.AudiencePatient)
	if state.CurrentStep.Prompt != "Have you been experiencing hearing loss?" {
		t.Errorf("patient prompt = %q", state.CurrentStep.Prompt)
	}

	state, _ = c.Evaluate(events[:1], pkg.AudiencePatient)
	if got := state.CurrentStep; got.QuestionID != "hearing_loss_severity" || got.Kind != pkg.KindFollowUp || len(got.Options) != 5 {
		t.Errorf("after yes = %+v", got)
	}

	state, _ = c.Evaluate(events[:3], pkg.AudiencePatient)
	if got := state.CurrentStep; got.QuestionID != "initial_earache" {
		t.Errorf("after last follow-up = %+v", got)
	}
}

func TestPresentStaysNilUntilScreened(t *testing.T) {
	c := MustDefaultCatalog()
	state, err := c.Evaluate(hearingLossScenario()[:2], pkg.AudiencePatient)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if state.Responses["earache"].Present != nil {
		t.Error("earache should be unknown before its screening answer")
	}
	if !state.Responses["hearing_loss"].IsPresent() {
		t.Error("hearing_loss should be present")
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	c := MustDefaultCatalog()
	events := hearingLossScenario()
	for n := 0; n <= len(events); n++ {
		a, err := c.Evaluate(events[:n], pkg.AudiencePatient)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		b, _ := c.Evaluate(events[:n], pkg.AudiencePatient)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("replay of %d events differs", n)
		}
	}
}

func TestBackThenReappendRestoresState(t *testing.T) {
	c := MustDefaultCatalog()
	s := NewSession(c, pkg.AudiencePatient)
	var before pkg.AssessmentState
	for _, ev := range hearingLossScenario()[:4] {
		var err error
		before, err = s.Answer(ev)
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
	}
	last := s.Events()[3]
	if _, err := s.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if len(s.Events()) != 3 {
		t.Fatalf("events after back = %d", len(s.Events()))
	}
	after, err := s.Answer(last)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatal("state after back + re-append differs")
	}
}

func TestRestartClearsEvents(t *testing.T) {
	s := NewSession(MustDefaultCatalog(), pkg.AudiencePatient)
	if _, err := s.AnswerCurrent("Yes"); err != nil {
		t.Fatalf("AnswerCurrent: %v", err)
	}
	state, err := s.Restart()
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if len(s.Events()) != 0 || state.CurrentStep.QuestionID != "initial_hearing_loss" {
		t.Fatalf("restart left %d events, step %+v", len(s.Events()), state.CurrentStep)
	}
}

func TestMalformedEventsFailLoudly(t *testing.T) {
	c := MustDefaultCatalog()
	tests := []struct {
		name   string
		events []pkg.AnswerEvent
	}{
		{"wrong symptom", []pkg.AnswerEvent{initial("earache", "No")}},
		{"wrong question", []pkg.AnswerEvent{
			initial("hearing_loss", "Yes"),
			followUp("hearing_loss", "hearing_loss_side", "Left ear"),
		}},
		{"wrong kind", []pkg.AnswerEvent{
			{SymptomID: "hearing_loss", QuestionID: "initial_hearing_loss", Kind: pkg.KindFollowUp, Value: "Yes"},
		}},
		{"symptom id does not own question", []pkg.AnswerEvent{
			{SymptomID: "earache", QuestionID: "initial_hearing_loss", Kind: pkg.KindInitial, Value: "Yes"},
		}},
		{"answer outside options", []pkg.AnswerEvent{
			initial("hearing_loss", "Yes"),
			followUp("hearing_loss", "hearing_loss_severity", "very bad"),
		}},
		{"duplicate event", []pkg.AnswerEvent{initial("hearing_loss", "No"), initial("hearing_loss", "No")}},
	}
	for _, tc := range tests {
		_, err := c.Evaluate(tc.events, pkg.AudiencePatient)
		if !errors.Is(err, flow.ErrMalformedEvent) {
			t.Errorf("%s: err = %v, want ErrMalformedEvent", tc.name, err)
		}
	}
}

func TestRejectedAnswerLeavesSessionUntouched(t *testing.T) {
	s := NewSession(MustDefaultCatalog(), pkg.AudiencePatient)
	if _, err := s.Answer(initial("vertigo", "Yes")); err == nil {
		t.Fatal("expected error")
	}
	if len(s.Events()) != 0 {
		t.Fatal("rejected event was recorded")
	}
}

func TestAnswerAfterCompletionIsRejected(t *testing.T) {
	c := MustDefaultCatalog()
	s := NewSession(c, pkg.AudiencePatient)
	for _, ev := range allNo(c) {
		if _, err := s.Answer(ev); err != nil {
			t.Fatalf("Answer(%s): %v", ev.QuestionID, err)
		}
	}
	if _, err := s.Answer(initial("hearing_loss", "Yes")); !errors.Is(err, ErrAssessmentComplete) {
		t.Fatalf("err = %v, want ErrAssessmentComplete", err)
	}
	if got := len(s.Events()); got != c.Len() {
		t.Fatalf("events = %d, want %d", got, c.Len())
	}

	state, err := s.Back()
	if err != nil {
		t.Fatalf("Back: %v", err)
	}
	if state.IsComplete || state.CurrentStep == nil || state.CurrentStep.SymptomID != "vertigo" {
		t.Errorf("after back state = %+v", state)
	}
}

func TestScreeningAnswerIsCaseInsensitive(t *testing.T) {
	c := MustDefaultCatalog()
	state, err := c.Evaluate([]pkg.AnswerEvent{initial("hearing_loss", "yes")}, pkg.AudiencePatient)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !state.Responses["hearing_loss"].IsPresent() {
		t.Fatal("lower-case yes should be affirmative")
	}
	if v, _ := state.Responses["hearing_loss"].Answers.Get("initial_hearing_loss"); v != "Yes" {
		t.Errorf("stored answer = %q, want canonical %q", v, "Yes")
	}
}

func TestInitialEventWithoutQuestionID(t *testing.T) {
	c := MustDefaultCatalog()
	ev := pkg.AnswerEvent{SymptomID: "hearing_loss", Kind: pkg.KindInitial, Value: "No"}
	state, err := c.Evaluate([]pkg.AnswerEvent{ev}, pkg.AudiencePatient)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if state.CurrentStep.SymptomID != "earache" {
		t.Errorf("step = %+v", state.CurrentStep)
	}
}

func TestEventsAfterCompletionAreIgnored(t *testing.T) {
	c := MustDefaultCatalog()
	events := append(allNo(c), initial("hearing_loss", "Yes"))
	state, err := c.Evaluate(events, pkg.AudiencePatient)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !state.IsComplete || state.Responses["hearing_loss"].IsPresent() {
		t.Fatal("trailing event should be ignored")
	}
}

func TestFormatAnswer(t *testing.T) {
	c := MustDefaultCatalog()
	tests := []struct {
		question string
		answer   string
		audience pkg.Audience
		want     string
	}{
		{"hearing_loss_side", "Left ear", pkg.AudienceClinician, "Left ear (asymmetric)"},
		{"earache_side", "Right ear", pkg.AudienceClinician, "Right ear (asymmetric)"},
		{"tinnitus_side", "Both ears", pkg.AudienceClinician, "Both ears (bilateral/symmetric)"},
		{"hearing_loss_side", "Left ear", pkg.AudiencePatient, "Left ear"},
		{"vertigo_duration", "Moderate (several hours)", pkg.AudienceClinician, "Moderate (several hours)"},
	}
	for _, tc := range tests {
		if got := c.FormatAnswer(tc.question, tc.answer, tc.audience); got != tc.want {
			t.Errorf("FormatAnswer(%q, %q, %s) = %q, want %q", tc.question, tc.answer, tc.audience, got, tc.want)
		}
	}
}
