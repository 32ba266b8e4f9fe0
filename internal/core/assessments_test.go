package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"earcheck/internal/assessment"
	"earcheck/internal/flow"
	"earcheck/pkg"
)

var (
	errNoSession = errors.New("no such session")
	errStaleSeq  = errors.New("stale sequence")
)

// fakeStore is a minimal in-memory Store.
type fakeStore struct {
	mu        sync.Mutex
	next      int
	sessions  map[string]*pkg.Session
	summaries map[string][]pkg.SummaryRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]*pkg.Session{}, summaries: map[string][]pkg.SummaryRecord{}}
}

func (f *fakeStore) CreateSession(_ context.Context, a pkg.Audience) (pkg.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	s := &pkg.Session{ID: fmt.Sprintf("s%d", f.next), Audience: a, CreatedAt: time.Now()}
	f.sessions[s.ID] = s
	return *s, nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (pkg.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return pkg.Session{}, errNoSession
	}
	out := *s
	out.Events = append([]pkg.AnswerEvent(nil), s.Events...)
	return out, nil
}

func (f *fakeStore) AppendEvent(_ context.Context, id string, seq int, ev pkg.AnswerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return errNoSession
	}
	if seq != len(s.Events) {
		return errStaleSeq
	}
	s.Events = append(s.Events, ev)
	return nil
}

func (f *fakeStore) TruncateEvents(_ context.Context, id string, keep int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return errNoSession
	}
	if keep < len(s.Events) {
		s.Events = s.Events[:keep]
	}
	return nil
}

func (f *fakeStore) SaveSummary(_ context.Context, rec pkg.SummaryRecord) (pkg.SummaryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[rec.SessionID]; !ok {
		return pkg.SummaryRecord{}, errNoSession
	}
	rec.ID = fmt.Sprintf("sum%d", len(f.summaries[rec.SessionID])+1)
	f.summaries[rec.SessionID] = append(f.summaries[rec.SessionID], rec)
	return rec, nil
}

func (f *fakeStore) LatestSummary(_ context.Context, id string) (pkg.SummaryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.summaries[id]
	if len(list) == 0 {
		return pkg.SummaryRecord{}, errNoSession
	}
	return list[len(list)-1], nil
}

type recordingNotifier struct {
	ids []string
	err error
}

func (n *recordingNotifier) Notify(_ context.Context, id string) error {
	n.ids = append(n.ids, id)
	return n.err
}

func newService(t *testing.T, llmReplies ...func(context.Context) (string, error)) (*AssessmentService, *scriptedLLM, *recordingNotifier) {
	t.Helper()
	fake := &scriptedLLM{replies: llmReplies}
	n := &recordingNotifier{}
	svc := NewAssessmentService(mustEngine(t), newFakeStore(), NewSummarizer(fake, time.Second, nil), n, nil)
	return svc, fake, n
}

func TestServiceWalk(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	sess, state, err := svc.Start(ctx, pkg.AudienceClinician)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.CurrentStep == nil || state.CurrentStep.SymptomID != "hearing_loss" {
		t.Fatalf("first step = %+v", state.CurrentStep)
	}

	for i, ev := range hearingLossEvents() {
		state, err = svc.Answer(ctx, sess.ID, ev)
		if err != nil {
			t.Fatalf("Answer(%d): %v", i, err)
		}
	}
	if !state.IsComplete || state.CurrentStep != nil {
		t.Fatalf("state after all answers = %+v", state)
	}

	_, stored, err := svc.State(ctx, sess.ID)
	if err != nil || !stored.IsComplete {
		t.Fatalf("State = %+v, %v", stored, err)
	}
}

func TestServiceRejectsMalformedAnswer(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	sess, _, _ := svc.Start(ctx, pkg.AudiencePatient)

	bad := pkg.AnswerEvent{SymptomID: "earache", QuestionID: "initial_earache", Kind: pkg.KindInitial, Value: "Yes"}
	if _, err := svc.Answer(ctx, sess.ID, bad); !errors.Is(err, flow.ErrMalformedEvent) {
		t.Fatalf("err = %v, want ErrMalformedEvent", err)
	}
	got, _ := svc.Store.GetSession(ctx, sess.ID)
	if len(got.Events) != 0 {
		t.Errorf("malformed event was stored: %+v", got.Events)
	}
}

func TestServiceBackAndRestart(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	sess, _, _ := svc.Start(ctx, pkg.AudiencePatient)

	if state, err := svc.Back(ctx, sess.ID); err != nil || state.CurrentStep.SymptomID != "hearing_loss" {
		t.Fatalf("Back on empty = %+v, %v", state, err)
	}

	events := hearingLossEvents()
	for _, ev := range events[:3] {
		if _, err := svc.Answer(ctx, sess.ID, ev); err != nil {
			t.Fatalf("Answer: %v", err)
		}
	}
	state, err := svc.Back(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Back: %v", err)
	}
	if state.CurrentStep.QuestionID != "hearing_loss_side" {
		t.Errorf("after back step = %+v", state.CurrentStep)
	}
	if _, err := svc.Answer(ctx, sess.ID, events[2]); err != nil {
		t.Fatalf("re-answer: %v", err)
	}

	state, err = svc.Restart(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if state.CurrentStep.SymptomID != "hearing_loss" || state.Responses["hearing_loss"].Present != nil {
		t.Errorf("after restart = %+v", state)
	}
}

func TestServiceRejectsAnswerAfterCompletion(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	sess, _, err := svc.Start(ctx, pkg.AudiencePatient)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := hearingLossEvents()
	for i, ev := range events {
		if _, err := svc.Answer(ctx, sess.ID, ev); err != nil {
			t.Fatalf("Answer(%d): %v", i, err)
		}
	}

	if _, err := svc.Answer(ctx, sess.ID, events[0]); !errors.Is(err, assessment.ErrAssessmentComplete) {
		t.Fatalf("err = %v, want ErrAssessmentComplete", err)
	}
	stored, _, err := svc.State(ctx, sess.ID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(stored.Events) != len(events) {
		t.Fatalf("stored %d events, want %d", len(stored.Events), len(events))
	}

	state, err := svc.Back(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Back: %v", err)
	}
	if state.IsComplete || state.CurrentStep == nil || state.CurrentStep.SymptomID != "vertigo" {
		t.Errorf("after back state = %+v", state)
	}
}

func TestServiceSummarizeIncomplete(t *testing.T) {
	ctx := context.Background()
	svc, fake, n := newService(t, text(goodDoc()))
	sess, _, _ := svc.Start(ctx, pkg.AudiencePatient)
	if _, err := svc.Answer(ctx, sess.ID, hearingLossEvents()[0]); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, err := svc.Summarize(ctx, sess.ID); !errors.Is(err, ErrIncompleteAssessment) {
		t.Fatalf("err = %v, want ErrIncompleteAssessment", err)
	}
	if fake.callCount() != 0 || len(n.ids) != 0 {
		t.Errorf("calls = %d, notified = %v", fake.callCount(), n.ids)
	}
}

func TestServiceSummarizeStoresAndNotifies(t *testing.T) {
	ctx := context.Background()
	svc, _, n := newService(t, text("Intro\n"+goodDoc()))
	sess, _, _ := svc.Start(ctx, pkg.AudiencePatient)
	for _, ev := range hearingLossEvents() {
		if _, err := svc.Answer(ctx, sess.ID, ev); err != nil {
			t.Fatalf("Answer: %v", err)
		}
	}
	n.err = errors.New("listener gone")

	rec, err := svc.Summarize(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if rec.SessionID != sess.ID || rec.Attempts != 1 || rec.Audience != pkg.AudiencePatient {
		t.Errorf("record = %+v", rec)
	}
	if err := Validate(rec.Markdown); err != nil {
		t.Errorf("stored summary invalid: %v", err)
	}
	if len(n.ids) != 1 || n.ids[0] != sess.ID {
		t.Errorf("notified = %v", n.ids)
	}
	latest, err := svc.LatestSummary(ctx, sess.ID)
	if err != nil || latest.ID != rec.ID {
		t.Errorf("LatestSummary = %+v, %v", latest, err)
	}
}

func TestServiceGenerateDisabled(t *testing.T) {
	svc := NewAssessmentService(mustEngine(t), newFakeStore(), nil, nil, nil)
	if _, err := svc.Generate(context.Background(), pkg.AudiencePatient, hearingLossEvents()); !errors.Is(err, ErrGenerationDisabled) {
		t.Fatalf("err = %v, want ErrGenerationDisabled", err)
	}
	if _, err := svc.Generate(context.Background(), pkg.AudiencePatient, nil); !errors.Is(err, ErrIncompleteAssessment) {
		t.Fatalf("incomplete err = %v", err)
	}
}
