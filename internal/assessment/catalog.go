// Package assessment holds the ear symptom catalog and the replay engine
// that turns an ordered list of answers into per-symptom responses and the
// single next question to ask.
package assessment

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"earcheck/internal/flow"
	"earcheck/pkg"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Screening answers offered for every symptom.
var screeningOptions = []string{"Yes", "No"}

const completeNodeID = "complete"

// Question is a follow-up question with its fixed, ordered answers.
type Question struct {
	ID      string   `yaml:"id"`
	Prompt  string   `yaml:"prompt"`
	Options []string `yaml:"options"`
	// Laterality marks left/right/both questions whose answers are annotated
	// for clinicians.
	Laterality bool `yaml:"laterality"`
}

// Prompts holds the audience-specific wording of a screening question.
type Prompts struct {
	Clinician string `yaml:"clinician"`
	Patient   string `yaml:"patient"`
}

// For returns the wording for audience a.
func (p Prompts) For(a pkg.Audience) string {
	if a == pkg.AudienceClinician {
		return p.Clinician
	}
	return p.Patient
}

// Symptom is one immutable catalog entry.
type Symptom struct {
	ID                string     `yaml:"id"`
	Label             string     `yaml:"label"`
	Description       string     `yaml:"description"`
	Prompts           Prompts    `yaml:"prompts"`
	FollowUps         []Question `yaml:"followUps"`
	PossibleDiagnoses []string   `yaml:"possibleDiagnoses"`
}

// InitialQuestionID is the synthetic key under which the screening answer
// is stored.
func (s Symptom) InitialQuestionID() string { return "initial_" + s.ID }

// Catalog is the ordered symptom list together with its compiled graph.
// A Catalog is never mutated after Load and may be shared between
// goroutines.
type Catalog struct {
	Area     string    `yaml:"area"`
	Symptoms []Symptom `yaml:"symptoms"`

	index map[string]int
	graph *flow.Graph
}

// DefaultCatalog parses the embedded ear catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// MustDefaultCatalog is DefaultCatalog for package-level initialisation.
func MustDefaultCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog and compiles it into a
// question graph.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

// NewCatalog builds a catalog from in-memory definitions.
func NewCatalog(area string, symptoms []Symptom) (*Catalog, error) {
	c := &Catalog{Area: area, Symptoms: symptoms}
	if err := c.init(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) init() error {
	c.index = make(map[string]int, len(c.Symptoms))
	questionIDs := map[string]bool{completeNodeID: true}
	for i, s := range c.Symptoms {
		if s.ID == "" {
			return fmt.Errorf("catalog: symptom %d has no id", i)
		}
		if _, dup := c.index[s.ID]; dup {
			return fmt.Errorf("catalog: duplicate symptom id %q", s.ID)
		}
		c.index[s.ID] = i
		ids := []string{s.InitialQuestionID()}
		for _, q := range s.FollowUps {
			if len(q.Options) == 0 {
				return fmt.Errorf("catalog: question %q has no options", q.ID)
			}
			ids = append(ids, q.ID)
		}
		for _, id := range ids {
			if questionIDs[id] {
				return fmt.Errorf("catalog: duplicate question id %q", id)
			}
			questionIDs[id] = true
		}
	}
	c.graph = c.compile()
	return c.graph.Validate()
}

// compile lays the symptoms out as a chain of question nodes: each
// screening node branches to the symptom's first follow-up on Yes, every
// other transition falls through to the next symptom's screening node, and
// the chain ends on a single terminal node.
func (c *Catalog) compile() *flow.Graph {
	g := &flow.Graph{
		ID:    c.Area,
		Label: c.Area,
		Nodes: map[string]*flow.Node{
			completeNodeID: {ID: completeNodeID, Kind: flow.NodeTerminal, Title: "Assessment complete"},
		},
	}
	next := completeNodeID
	for i := len(c.Symptoms) - 1; i >= 0; i-- {
		s := c.Symptoms[i]
		after := next
		for j := len(s.FollowUps) - 1; j >= 0; j-- {
			q := s.FollowUps[j]
			opts := make([]flow.Option, len(q.Options))
			for k, label := range q.Options {
				opts[k] = flow.Option{Label: label, Next: after}
			}
			g.Nodes[q.ID] = &flow.Node{
				ID:      q.ID,
				Kind:    flow.NodeQuestion,
				Title:   s.Label,
				Prompt:  q.Prompt,
				Options: opts,
				Group:   s.ID,
				Phase:   string(pkg.KindFollowUp),
			}
			after = q.ID
		}
		initial := s.InitialQuestionID()
		g.Nodes[initial] = &flow.Node{
			ID:          initial,
			Kind:        flow.NodeQuestion,
			Title:       s.Label,
			Prompt:      s.Prompts.Patient,
			Description: s.Description,
			Options: []flow.Option{
				{Label: screeningOptions[0], Next: after},
				{Label: screeningOptions[1], Next: next},
			},
			Group: s.ID,
			Phase: string(pkg.KindInitial),
		}
		next = initial
	}
	g.RootID = next
	return g
}

// Graph exposes the compiled question graph.
func (c *Catalog) Graph() *flow.Graph { return c.graph }

// Symptom looks up a symptom by ID.
func (c *Catalog) Symptom(id string) (Symptom, bool) {
	i, ok := c.index[id]
	if !ok {
		return Symptom{}, false
	}
	return c.Symptoms[i], true
}

// Labels returns symptom labels in catalog order.
func (c *Catalog) Labels() []string {
	out := make([]string, len(c.Symptoms))
	for i, s := range c.Symptoms {
		out[i] = s.Label
	}
	return out
}

// Len is the number of symptoms.
func (c *Catalog) Len() int { return len(c.Symptoms) }

// FormatAnswer annotates laterality answers for clinicians.  Other answers
// and other audiences are returned unchanged.
func (c *Catalog) FormatAnswer(questionID, answer string, a pkg.Audience) string {
	if a != pkg.AudienceClinician || !c.isLaterality(questionID) {
		return answer
	}
	switch answer {
	case "Left ear":
		return "Left ear (asymmetric)"
	case "Right ear":
		return "Right ear (asymmetric)"
	case "Both ears":
		return "Both ears (bilateral/symmetric)"
	}
	return answer
}

func (c *Catalog) isLaterality(questionID string) bool {
	for _, s := range c.Symptoms {
		for _, q := range s.FollowUps {
			if q.ID == questionID {
				return q.Laterality
			}
		}
	}
	return false
}
