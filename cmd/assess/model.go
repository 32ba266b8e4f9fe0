package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"earcheck/internal/assessment"
	"earcheck/internal/core"
	"earcheck/internal/inference"
	"earcheck/pkg"
)

type summaryMsg struct {
	summary core.Summary
	err     error
}

// assessModel walks one assessment in the terminal.  Arrow keys (or j/k)
// move the cursor, enter answers, b goes back, r restarts.  Once complete,
// enter requests the summary when a backend is configured.
type assessModel struct {
	engine     *inference.Engine
	session    *assessment.Session
	summarizer *core.Summarizer
	ctx        context.Context

	state      pkg.AssessmentState
	cursor     int
	err        error
	spinner    spinner.Model
	generating bool
	summary    string
}

func newAssessModel(ctx context.Context, engine *inference.Engine, audience pkg.Audience, summarizer *core.Summarizer) (assessModel, error) {
	s := assessment.NewSession(engine.Catalog(), audience)
	state, err := s.State()
	if err != nil {
		return assessModel{}, err
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return assessModel{
		engine:     engine,
		session:    s,
		summarizer: summarizer,
		ctx:        ctx,
		state:      state,
		spinner:    sp,
	}, nil
}

func (m assessModel) Init() tea.Cmd { return nil }

func (m assessModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		if m.generating {
			return m, nil
		}
		return m.handleKey(msg)
	case summaryMsg:
		m.generating = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.summary = msg.summary.Markdown
		return m, nil
	case spinner.TickMsg:
		if !m.generating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m assessModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if step := m.state.CurrentStep; step != nil && m.cursor < len(step.Options)-1 {
			m.cursor++
		}
	case "b":
		m.apply(m.session.Back())
	case "r":
		m.summary = ""
		m.apply(m.session.Restart())
	case "enter":
		if step := m.state.CurrentStep; step != nil {
			m.apply(m.session.AnswerCurrent(step.Options[m.cursor]))
			return m, nil
		}
		if m.state.IsComplete && m.summarizer != nil && m.summary == "" {
			m.generating = true
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.generate())
		}
	}
	return m, nil
}

func (m *assessModel) apply(state pkg.AssessmentState, err error) {
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.state = state
	m.cursor = 0
	if !state.IsComplete {
		m.summary = ""
	}
}

func (m assessModel) generate() tea.Cmd {
	payload := core.BuildSummaryPayload(m.engine, m.state.Responses, m.session.Audience())
	return func() tea.Msg {
		sum, err := m.summarizer.Summarize(m.ctx, payload)
		return summaryMsg{summary: sum, err: err}
	}
}

func (m assessModel) View() string {
	var b strings.Builder
	if step := m.state.CurrentStep; step != nil {
		fmt.Fprintf(&b, "%s\n\n%s\n", step.SymptomLabel, step.Prompt)
		if step.Description != "" {
			fmt.Fprintf(&b, "%s\n", step.Description)
		}
		b.WriteString("\n")
		for i, opt := range step.Options {
			marker := "  "
			if i == m.cursor {
				marker = "> "
			}
			fmt.Fprintf(&b, "%s%s\n", marker, opt)
		}
		b.WriteString("\nenter: answer  b: back  r: restart  q: quit\n")
	} else {
		b.WriteString(m.findings())
	}
	if m.err != nil {
		fmt.Fprintf(&b, "\nerror: %v\n", m.err)
	}
	return b.String()
}

func (m assessModel) findings() string {
	var b strings.Builder
	inf := m.engine.Infer(m.state.Responses)
	b.WriteString("Assessment complete.\n\nDiagnoses:\n")
	for _, d := range inf.Diagnoses {
		fmt.Fprintf(&b, "  - %s\n", d.Title)
	}
	if len(inf.Expectations) > 0 {
		b.WriteString("\nExpectations:\n")
		for _, e := range inf.Expectations {
			fmt.Fprintf(&b, "  - %s\n", e.Text)
		}
	}
	fmt.Fprintf(&b, "\n%s\n", core.AlternativesText(inf.AlternateDiagnoses))

	switch {
	case m.generating:
		fmt.Fprintf(&b, "\n%s generating summary...\n", m.spinner.View())
	case m.summary != "":
		fmt.Fprintf(&b, "\n%s\n", m.summary)
	case m.summarizer == nil:
		b.WriteString("\nSet OPENAI_API_KEY to generate a summary.\n")
	default:
		b.WriteString("\nenter: generate summary\n")
	}
	b.WriteString("\nb: back  r: restart  q: quit\n")
	return b.String()
}
