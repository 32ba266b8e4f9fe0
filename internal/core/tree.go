package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"earcheck/internal/llm"
	"earcheck/internal/logger"
	"earcheck/pkg"
)

// MaxTreeReviews bounds the QA review rounds of a tree summary.  A draft
// still failing review after the last round is returned as it stands.
const MaxTreeReviews = 2

// Review is the QA verdict on a draft.
type Review struct {
	Pass   bool     `json:"pass"`
	Issues []string `json:"issues"`
	Fixes  []string `json:"fixes"`
}

// TreeSummary is the final text of a tree summary and how it got there.
type TreeSummary struct {
	Markdown string `json:"summary"`
	Reviews  int    `json:"reviews"`
	Passed   bool   `json:"passed"`
}

// TreeSummarizer drafts a summary of a decision-tree walk, has the backend
// review it and revises until a review passes or MaxTreeReviews is reached.
type TreeSummarizer struct {
	LLM         llm.Client
	CallTimeout time.Duration
	Log         *logger.Logger
}

func NewTreeSummarizer(client llm.Client, callTimeout time.Duration, log *logger.Logger) *TreeSummarizer {
	if log == nil {
		log = logger.Nop()
	}
	return &TreeSummarizer{LLM: client, CallTimeout: callTimeout, Log: log}
}

// Summarize runs draft, then review and revise in turn.
func (s *TreeSummarizer) Summarize(ctx context.Context, in pkg.TreeSummaryInput) (TreeSummary, error) {
	if len(in.Steps) == 0 {
		return TreeSummary{}, fmt.Errorf("tree summary: %w: no steps", ErrIncompleteAssessment)
	}
	data, err := json.MarshalIndent(struct {
		Tree    string           `json:"tree"`
		Steps   []pkg.TreeStep   `json:"steps"`
		Outcome *pkg.TreeOutcome `json:"outcome"`
	}{in.TreeLabel, in.Steps, in.Outcome}, "", "  ")
	if err != nil {
		return TreeSummary{}, fmt.Errorf("marshal tree input: %w", err)
	}
	pathway := string(data)

	draft, err := s.call(ctx, false,
		llm.Message{Role: llm.RoleSystem, Content: TreeDraftPrompt},
		llm.Message{Role: llm.RoleUser, Content: pathway})
	if err != nil {
		return TreeSummary{}, fmt.Errorf("draft: %w", err)
	}

	for round := 1; ; round++ {
		raw, err := s.call(ctx, true,
			llm.Message{Role: llm.RoleSystem, Content: TreeReviewPrompt},
			llm.Message{Role: llm.RoleUser, Content: "Pathway data:\n" + pathway + "\n\nDraft summary:\n" + draft})
		if err != nil {
			return TreeSummary{}, fmt.Errorf("review %d: %w", round, err)
		}
		review := ParseReview(raw)
		if review.Pass || round >= MaxTreeReviews {
			if !review.Pass {
				s.Log.Warn("tree summary kept without passing review", "tree", in.TreeID, "issues", review.Issues)
			}
			return TreeSummary{Markdown: strings.TrimSpace(draft), Reviews: round, Passed: review.Pass}, nil
		}
		s.Log.Debug("tree summary revision", "tree", in.TreeID, "round", round, "issues", len(review.Issues))
		draft, err = s.call(ctx, false,
			llm.Message{Role: llm.RoleSystem, Content: TreeRevisionPrompt},
			llm.Message{Role: llm.RoleUser, Content: "Pathway data:\n" + pathway +
				"\n\nDraft summary:\n" + draft +
				"\n\nQA issues:\n" + bulletList(review.Issues) +
				"\n\nRequired fixes:\n" + bulletList(review.Fixes)})
		if err != nil {
			return TreeSummary{}, fmt.Errorf("revise %d: %w", round, err)
		}
	}
}

func (s *TreeSummarizer) call(ctx context.Context, jsonMode bool, messages ...llm.Message) (string, error) {
	timeout := s.CallTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var (
		out string
		err error
	)
	if jsonMode {
		out, err = s.LLM.CompleteJSON(cctx, messages)
	} else {
		out, err = s.LLM.Complete(cctx, messages)
	}
	if err != nil {
		return "", classify(ctx, cctx, err)
	}
	return out, nil
}

// ParseReview decodes a review.  Text around the JSON object is tolerated;
// anything unreadable counts as a failed review.
func ParseReview(text string) Review {
	var r Review
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &r); err == nil {
		return r
	}
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Review{Issues: []string{"QA review JSON not found."}}
	}
	r = Review{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return Review{Issues: []string{"QA review JSON invalid."}}
	}
	return r
}
