// Package inference resolves a completed set of symptom responses into
// candidate diagnoses, care expectations and alternative diagnoses.
//
// The rule set is data: combo rules that need several symptoms at once,
// single-symptom rules whose outcomes may depend on a follow-up answer, and
// a short table of forced alternatives.  Evaluation is pure and
// deterministic.
package inference

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Condition restricts an outcome to particular answers of a follow-up
// question.
type Condition struct {
	Question string   `yaml:"question"`
	In       []string `yaml:"in"`
}

// Outcome is one step of a single-symptom rule.  Outcomes without a
// condition always apply; a diagnosis is optional.
type Outcome struct {
	When         *Condition `yaml:"when"`
	Diagnosis    string     `yaml:"diagnosis"`
	Expectations []string   `yaml:"expectations"`
}

// SingleRule fires when its symptom is present.
type SingleRule struct {
	Symptom  string    `yaml:"symptom"`
	Outcomes []Outcome `yaml:"outcomes"`
}

// ComboRule fires when every one of its symptoms is present.
type ComboRule struct {
	ID           string   `yaml:"id"`
	Symptoms     []string `yaml:"symptoms"`
	Diagnosis    string   `yaml:"diagnosis"`
	Expectations []string `yaml:"expectations"`
}

// ForcedAlternative adds Alternative to the alternative diagnoses whenever
// Trigger is among the selected diagnoses.
type ForcedAlternative struct {
	Name        string `yaml:"name"`
	Trigger     string `yaml:"trigger"`
	Alternative string `yaml:"alternative"`
}

// Rules is the complete rule set.
type Rules struct {
	// NoFindings is the sentinel diagnosis used when nothing is present.
	NoFindings         string              `yaml:"noFindings"`
	Combos             []ComboRule         `yaml:"combos"`
	Singles            []SingleRule        `yaml:"singles"`
	ForcedAlternatives []ForcedAlternative `yaml:"forcedAlternatives"`
}

// DefaultRules parses the embedded ear rule set.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRules reads a rule set from a YAML file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	return &r, nil
}

// validate checks the rules against the symptom and question IDs that
// exist in the catalog.
func (r *Rules) validate(symptoms, questions map[string]bool) error {
	if r.NoFindings == "" {
		return fmt.Errorf("rules: noFindings is empty")
	}
	comboIDs := map[string]bool{}
	for _, c := range r.Combos {
		if comboIDs[c.ID] {
			return fmt.Errorf("rules: duplicate combo %q", c.ID)
		}
		comboIDs[c.ID] = true
		if len(c.Symptoms) < 2 {
			return fmt.Errorf("rules: combo %q needs at least two symptoms", c.ID)
		}
		if c.Diagnosis == "" {
			return fmt.Errorf("rules: combo %q has no diagnosis", c.ID)
		}
		seen := map[string]bool{}
		for _, s := range c.Symptoms {
			if !symptoms[s] {
				return fmt.Errorf("rules: combo %q: unknown symptom %q", c.ID, s)
			}
			if seen[s] {
				return fmt.Errorf("rules: combo %q lists %q twice", c.ID, s)
			}
			seen[s] = true
		}
	}
	singles := map[string]bool{}
	for _, s := range r.Singles {
		if !symptoms[s.Symptom] {
			return fmt.Errorf("rules: single rule for unknown symptom %q", s.Symptom)
		}
		if singles[s.Symptom] {
			return fmt.Errorf("rules: duplicate single rule for %q", s.Symptom)
		}
		singles[s.Symptom] = true
		for _, o := range s.Outcomes {
			if o.When != nil && !questions[o.When.Question] {
				return fmt.Errorf("rules: %s: unknown question %q", s.Symptom, o.When.Question)
			}
		}
	}
	for _, f := range r.ForcedAlternatives {
		if f.Trigger == "" || f.Alternative == "" {
			return fmt.Errorf("rules: forced alternative %q is incomplete", f.Name)
		}
	}
	return nil
}
