// Package trees holds the clinician decision trees (ears, nose, throat and
// neck) and walks them with the flow engine.
package trees

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"earcheck/internal/flow"
	"earcheck/pkg"
)

//go:embed trees.yaml
var defaultTreesYAML []byte

// ErrUnknownTree is returned by Walk for a tree ID not in the catalog.
var ErrUnknownTree = errors.New("unknown tree")

// Step types reported to the summariser.
const (
	StepQuestion = "question"
	StepAction   = "action"
)

type treeDoc struct {
	flow.Graph `yaml:",inline"`
	Nodes      []*flow.Node `yaml:"nodes"`
}

// Catalog is an ordered, immutable set of decision trees.
type Catalog struct {
	trees []*flow.Graph
	index map[string]*flow.Graph
}

// Default parses the embedded trees.
func Default() (*Catalog, error) {
	return Parse(defaultTreesYAML)
}

// MustDefault is Default for package-level initialisation.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads trees from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML list of trees.  A node without an explicit kind is a
// question when it has options and terminal otherwise.
func Parse(data []byte) (*Catalog, error) {
	var docs []treeDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("unmarshal trees: %w", err)
	}
	c := &Catalog{index: make(map[string]*flow.Graph, len(docs))}
	for _, d := range docs {
		g := d.Graph
		if _, dup := c.index[g.ID]; dup {
			return nil, fmt.Errorf("trees: duplicate tree %q", g.ID)
		}
		g.Nodes = make(map[string]*flow.Node, len(d.Nodes))
		for _, n := range d.Nodes {
			if _, dup := g.Nodes[n.ID]; dup {
				return nil, fmt.Errorf("trees: %s: duplicate node %q", g.ID, n.ID)
			}
			if n.Kind == "" {
				n.Kind = flow.NodeTerminal
				if len(n.Options) > 0 {
					n.Kind = flow.NodeQuestion
				}
			}
			g.Nodes[n.ID] = n
		}
		if err := g.Validate(); err != nil {
			return nil, err
		}
		c.trees = append(c.trees, &g)
		c.index[g.ID] = &g
	}
	return c, nil
}

// List returns the trees in file order.
func (c *Catalog) List() []*flow.Graph {
	out := make([]*flow.Graph, len(c.trees))
	copy(out, c.trees)
	return out
}

// Get looks a tree up by ID.
func (c *Catalog) Get(id string) (*flow.Graph, bool) {
	g, ok := c.index[id]
	return g, ok
}

// Path is a replayed walk through one tree.
type Path struct {
	Tree *flow.Graph
	flow.Walk
}

// Walk replays choices (option labels, in order) from the root of tree id.
// Going back is Walk with the last choice dropped; restarting is Walk with
// none.
func (c *Catalog) Walk(id string, choices []string) (Path, error) {
	g, ok := c.Get(id)
	if !ok {
		return Path{}, fmt.Errorf("trees: %w %q", ErrUnknownTree, id)
	}
	events := make([]flow.Event, len(choices))
	cur, _ := g.Node(g.RootID)
	for i, choice := range choices {
		events[i] = flow.Event{NodeID: cur.ID, Value: choice}
		// Resolve the next node ahead of Replay so each event names the
		// node it answers; Replay reports any bad choice.
		if cur.Kind == flow.NodeTerminal {
			continue
		}
		opt, ok := cur.Match(choice)
		if !ok {
			break
		}
		cur, _ = g.Node(opt.Next)
	}
	w, err := flow.Replay(g, events)
	if err != nil {
		return Path{}, err
	}
	return Path{Tree: g, Walk: w}, nil
}

// StepType reports whether n is shown to the user as a question (it has a
// prompt) or as an action to take.
func StepType(n *flow.Node) string {
	if n.Prompt != "" {
		return StepQuestion
	}
	return StepAction
}

// SummaryInput lays the path out as numbered steps.  The node the walk
// stopped on is the last step; when it ends the tree it is also the
// outcome.
func (p Path) SummaryInput() pkg.TreeSummaryInput {
	in := pkg.TreeSummaryInput{
		TreeID:    p.Tree.ID,
		TreeLabel: p.Tree.Label,
		Steps:     make([]pkg.TreeStep, 0, len(p.Visits)+1),
	}
	for _, v := range p.Visits {
		in.Steps = append(in.Steps, treeStep(len(in.Steps)+1, v.Node, v.Choice.Label))
	}
	if p.Current != nil {
		in.Steps = append(in.Steps, treeStep(len(in.Steps)+1, p.Current, ""))
		if p.Complete() {
			in.Outcome = &pkg.TreeOutcome{Title: p.Current.Title, Content: p.Current.Content}
		}
	}
	return in
}

func treeStep(n int, node *flow.Node, selected string) pkg.TreeStep {
	return pkg.TreeStep{
		Step:           n,
		Title:          node.Title,
		Prompt:         node.Prompt,
		SelectedOption: selected,
		Type:           StepType(node),
		Content:        node.Content,
	}
}
