package inference

import (
	"slices"

	"earcheck/internal/assessment"
	"earcheck/pkg"
)

// Engine applies a rule set to responses from one catalog.  It holds no
// mutable state and may be shared.
type Engine struct {
	catalog *assessment.Catalog
	rules   *Rules
}

// New checks rules against catalog and returns an Engine.
func New(catalog *assessment.Catalog, rules *Rules) (*Engine, error) {
	symptoms := map[string]bool{}
	questions := map[string]bool{}
	for _, s := range catalog.Symptoms {
		symptoms[s.ID] = true
		for _, q := range s.FollowUps {
			questions[q.ID] = true
		}
	}
	if err := rules.validate(symptoms, questions); err != nil {
		return nil, err
	}
	return &Engine{catalog: catalog, rules: rules}, nil
}

// Default pairs the embedded ear catalog with the embedded rules.
func Default() (*Engine, error) {
	c, err := assessment.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	r, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return New(c, r)
}

// Catalog returns the catalog the engine was built for.
func (e *Engine) Catalog() *assessment.Catalog { return e.catalog }

// Infer resolves responses into findings.
//
// Combo rules are matched first and only the most specific ones (largest
// symptom set) are kept; ties are all kept.  When any combo is selected,
// single-symptom findings for the symptoms it covers are dropped.  Combo
// findings come before single ones, each in rule order.  With nothing
// present the only diagnosis is the NoFindings sentinel.
//
// Alternative diagnoses are the possible diagnoses of every present
// symptom, the diagnoses of matched but less specific combos, and any forced
// alternative whose trigger was selected, minus every selected title.
func (e *Engine) Infer(responses pkg.Responses) pkg.Inference {
	present := map[string]bool{}
	var presentIDs []string
	for _, s := range e.catalog.Symptoms {
		if responses[s.ID].IsPresent() {
			present[s.ID] = true
			presentIDs = append(presentIDs, s.ID)
		}
	}

	var matched []ComboRule
	maxLen := 0
	for _, c := range e.rules.Combos {
		if allPresent(c.Symptoms, present) {
			matched = append(matched, c)
			maxLen = max(maxLen, len(c.Symptoms))
		}
	}

	out := pkg.Inference{
		Diagnoses:          []pkg.Diagnosis{},
		Expectations:       []pkg.Expectation{},
		AlternateDiagnoses: []string{},
	}
	covered := map[string]bool{}
	for _, c := range matched {
		if len(c.Symptoms) != maxLen {
			continue
		}
		out.Diagnoses = append(out.Diagnoses, pkg.Diagnosis{
			Title:   c.Diagnosis,
			BasedOn: slices.Clone(c.Symptoms),
			Kind:    pkg.FindingCombo,
		})
		for _, text := range c.Expectations {
			out.Expectations = append(out.Expectations, pkg.Expectation{
				Text:    text,
				BasedOn: slices.Clone(c.Symptoms),
				Kind:    pkg.FindingCombo,
			})
		}
		for _, s := range c.Symptoms {
			covered[s] = true
		}
	}

	for _, rule := range e.rules.Singles {
		if !present[rule.Symptom] || covered[rule.Symptom] {
			continue
		}
		r := responses[rule.Symptom]
		for _, o := range rule.Outcomes {
			if !o.When.holds(r) {
				continue
			}
			if o.Diagnosis != "" {
				out.Diagnoses = append(out.Diagnoses, pkg.Diagnosis{
					Title:   o.Diagnosis,
					BasedOn: []string{rule.Symptom},
					Kind:    pkg.FindingSingle,
				})
			}
			for _, text := range o.Expectations {
				out.Expectations = append(out.Expectations, pkg.Expectation{
					Text:    text,
					BasedOn: []string{rule.Symptom},
					Kind:    pkg.FindingSingle,
				})
			}
		}
	}

	if len(presentIDs) == 0 {
		out.Diagnoses = append(out.Diagnoses, pkg.Diagnosis{
			Title:   e.rules.NoFindings,
			BasedOn: []string{},
			Kind:    pkg.FindingSingle,
		})
	}

	selected := map[string]bool{}
	for _, d := range out.Diagnoses {
		selected[d.Title] = true
	}
	seen := map[string]bool{}
	addAlt := func(title string) {
		if title == "" || selected[title] || seen[title] {
			return
		}
		seen[title] = true
		out.AlternateDiagnoses = append(out.AlternateDiagnoses, title)
	}
	for _, id := range presentIDs {
		s, _ := e.catalog.Symptom(id)
		for _, title := range s.PossibleDiagnoses {
			addAlt(title)
		}
	}
	for _, c := range matched {
		addAlt(c.Diagnosis)
	}
	for _, f := range e.rules.ForcedAlternatives {
		if selected[f.Trigger] {
			addAlt(f.Alternative)
		}
	}
	return out
}

func allPresent(ids []string, present map[string]bool) bool {
	for _, id := range ids {
		if !present[id] {
			return false
		}
	}
	return true
}

// holds reports whether the follow-up answer satisfies the condition.  A nil
// condition always holds.
func (c *Condition) holds(r pkg.SymptomResponse) bool {
	if c == nil {
		return true
	}
	v, ok := r.Answers.Get(c.Question)
	return ok && slices.Contains(c.In, v)
}
