package assessment

import (
	"fmt"
	"strings"

	"earcheck/internal/flow"
	"earcheck/pkg"
)

// Evaluate replays events against the catalog and derives the per-symptom
// responses, the next question and the completion flag.  It is a pure
// function of its inputs and safe for concurrent use.
//
// Every event must answer exactly the question the cursor is on.  An event
// naming another symptom or question, or carrying an answer outside the
// question's options, fails with an error wrapping flow.ErrMalformedEvent.
// Events that arrive after the last symptom has been answered are ignored.
func (c *Catalog) Evaluate(events []pkg.AnswerEvent, audience pkg.Audience) (pkg.AssessmentState, error) {
	walk, err := flow.Replay(c.graph, toFlowEvents(events))
	if err != nil {
		return pkg.AssessmentState{}, err
	}

	responses := c.emptyResponses()
	for _, v := range walk.Visits {
		r := responses[v.Node.Group]
		if v.Node.Phase == string(pkg.KindInitial) {
			present := isAffirmative(v.Choice.Label)
			r.Present = &present
		}
		r.Answers.Set(v.Node.ID, v.Choice.Label)
		responses[v.Node.Group] = r
	}

	state := pkg.AssessmentState{
		Responses:  responses,
		IsComplete: walk.Complete(),
	}
	if !state.IsComplete {
		step, err := c.step(walk.Current, audience)
		if err != nil {
			return pkg.AssessmentState{}, err
		}
		state.CurrentStep = &step
	}
	return state, nil
}

func toFlowEvents(events []pkg.AnswerEvent) []flow.Event {
	out := make([]flow.Event, len(events))
	for i, ev := range events {
		qid := ev.QuestionID
		if qid == "" && ev.Kind == pkg.KindInitial {
			qid = "initial_" + ev.SymptomID
		}
		out[i] = flow.Event{
			NodeID: qid,
			Group:  ev.SymptomID,
			Phase:  string(ev.Kind),
			Value:  ev.Value,
		}
	}
	return out
}

// isAffirmative treats any answer starting with "y" as a yes.
func isAffirmative(v string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), "y")
}

func (c *Catalog) emptyResponses() pkg.Responses {
	out := make(pkg.Responses, len(c.Symptoms))
	for _, s := range c.Symptoms {
		out[s.ID] = pkg.SymptomResponse{}
	}
	return out
}

func (c *Catalog) step(n *flow.Node, audience pkg.Audience) (pkg.QuestionStep, error) {
	s, ok := c.Symptom(n.Group)
	if !ok {
		return pkg.QuestionStep{}, fmt.Errorf("assessment: node %q has no symptom", n.ID)
	}
	if n.Phase == string(pkg.KindInitial) {
		return pkg.QuestionStep{
			SymptomID:    s.ID,
			SymptomLabel: s.Label,
			QuestionID:   n.ID,
			Prompt:       s.Prompts.For(audience),
			Description:  s.Description,
			Options:      n.OptionLabels(),
			Kind:         pkg.KindInitial,
		}, nil
	}
	return pkg.QuestionStep{
		SymptomID:    s.ID,
		SymptomLabel: s.Label,
		QuestionID:   n.ID,
		Prompt:       n.Prompt,
		Options:      n.OptionLabels(),
		Kind:         pkg.KindFollowUp,
	}, nil
}
