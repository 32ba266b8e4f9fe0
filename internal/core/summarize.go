package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"earcheck/internal/llm"
	"earcheck/internal/logger"
	"earcheck/pkg"
)

// MaxAttempts bounds the backend calls made for one summary request.
const MaxAttempts = 2

// DefaultAttemptTimeout applies when a Summarizer has no timeout set.
const DefaultAttemptTimeout = 45 * time.Second

// Summarizer turns a summary payload into a validated Markdown report.  It
// calls the generation backend at most MaxAttempts times, one after the
// other, each under its own timeout.  A report is returned only if it
// passes Validate after Normalize.
type Summarizer struct {
	LLM            llm.Client
	AttemptTimeout time.Duration
	Log            *logger.Logger
}

// NewSummarizer constructs a summariser.
func NewSummarizer(client llm.Client, attemptTimeout time.Duration, log *logger.Logger) *Summarizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Summarizer{LLM: client, AttemptTimeout: attemptTimeout, Log: log}
}

// Summary is an accepted report.
type Summary struct {
	Markdown string
	Attempts int
}

// Summarize generates the report for p.
//
// An attempt fails when the backend errors, when its timeout expires or
// when the normalised text breaks the contract; the first failure triggers
// one fresh attempt.  If both fail the result is a *GenerationError
// carrying the second failure.  If ctx itself is cancelled Summarize stops
// at once and returns ctx's error; such an interrupted call never counts as
// a failed attempt.
func (s *Summarizer) Summarize(ctx context.Context, p pkg.SummaryPayload) (Summary, error) {
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return Summary{}, fmt.Errorf("marshal payload: %w", err)
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: SummaryPrompt(p.Audience)},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Audience: %s\n\nAssessment data:\n%s", p.Audience, body)},
	}

	var last error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		start := time.Now()
		text, err := s.attempt(ctx, messages, p.AlternateDiagnoses)
		if err == nil {
			s.Log.Info("summary accepted", "attempt", attempt, "duration", time.Since(start))
			return Summary{Markdown: text, Attempts: attempt}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Summary{}, ctxErr
		}
		s.Log.Warn("summary attempt failed", "attempt", attempt, "reason", reasonOf(err), "error", err, "duration", time.Since(start))
		last = err
	}
	return Summary{}, &GenerationError{Attempts: MaxAttempts, Last: last}
}

func (s *Summarizer) attempt(ctx context.Context, messages []llm.Message, alternatives []string) (string, error) {
	timeout := s.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := s.LLM.Complete(actx, messages)
	if err != nil {
		return "", classify(ctx, actx, err)
	}
	text = Normalize(text, alternatives)
	if err := Validate(text); err != nil {
		return "", err
	}
	return text, nil
}

// classify maps a backend error onto ErrGenerationTimeout when the attempt
// deadline fired, and ErrBackendUnavailable otherwise.
func classify(parent, attempt context.Context, err error) error {
	if parent.Err() != nil {
		return err
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrGenerationTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}

// reasonOf is a short log label for an attempt failure.
func reasonOf(err error) string {
	var cv *ContractViolation
	switch {
	case errors.As(err, &cv):
		return string(cv.Reason)
	case errors.Is(err, ErrGenerationTimeout):
		return "timeout"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend"
	}
	return "unknown"
}
