// Package flow replays an ordered list of choices over a graph of question
// and terminal nodes.  The current node is never stored: it is whatever the
// replay cursor points at once every event has been applied.
package flow

import (
	"errors"
	"fmt"
	"strings"
)

// NodeKind is the tag of the node union.
type NodeKind string

const (
	// NodeQuestion nodes expect exactly one choice among their options.
	NodeQuestion NodeKind = "question"
	// NodeTerminal nodes end the walk.
	NodeTerminal NodeKind = "terminal"
)

// Option is one row of a node's transition table.
type Option struct {
	Label string `yaml:"label" json:"label"`
	Next  string `yaml:"next" json:"next"`
}

// Node is a single step of a graph.  Group and Phase are opaque to the
// engine; callers use them to map visits back onto their own domain (for
// example the symptom a question belongs to).
type Node struct {
	ID          string   `yaml:"id" json:"id"`
	Kind        NodeKind `yaml:"kind" json:"kind"`
	Title       string   `yaml:"title" json:"title"`
	Prompt      string   `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Content     []string `yaml:"content,omitempty" json:"content,omitempty"`
	Emphasis    string   `yaml:"emphasis,omitempty" json:"emphasis,omitempty"`
	Options     []Option `yaml:"options,omitempty" json:"options,omitempty"`
	Group       string   `yaml:"-" json:"-"`
	Phase       string   `yaml:"-" json:"-"`
}

// OptionLabels lists the allowed answers of n in table order.
func (n *Node) OptionLabels() []string {
	out := make([]string, len(n.Options))
	for i, o := range n.Options {
		out[i] = o.Label
	}
	return out
}

// Match finds the option whose label equals value, ignoring case and
// surrounding space.
func (n *Node) Match(value string) (Option, bool) {
	v := strings.TrimSpace(value)
	for _, o := range n.Options {
		if strings.EqualFold(o.Label, v) {
			return o, true
		}
	}
	return Option{}, false
}

// Graph is an immutable set of nodes with a single entry point.
type Graph struct {
	ID          string           `yaml:"id" json:"id"`
	Label       string           `yaml:"label" json:"label"`
	Description string           `yaml:"description" json:"description"`
	RootID      string           `yaml:"root" json:"root_id"`
	Nodes       map[string]*Node `yaml:"-" json:"-"`
}

// Node looks up a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// Validate checks that the root exists, that every transition targets a
// known node, and that node kinds agree with their transition tables.
func (g *Graph) Validate() error {
	if g == nil {
		return errors.New("flow: nil graph")
	}
	if _, ok := g.Nodes[g.RootID]; !ok {
		return fmt.Errorf("flow: graph %q: root %q not found", g.ID, g.RootID)
	}
	for id, n := range g.Nodes {
		if n.ID != id {
			return fmt.Errorf("flow: graph %q: node key %q does not match id %q", g.ID, id, n.ID)
		}
		switch n.Kind {
		case NodeQuestion:
			if len(n.Options) == 0 {
				return fmt.Errorf("flow: graph %q: question node %q has no options", g.ID, id)
			}
		case NodeTerminal:
			if len(n.Options) != 0 {
				return fmt.Errorf("flow: graph %q: terminal node %q has options", g.ID, id)
			}
		default:
			return fmt.Errorf("flow: graph %q: node %q has unknown kind %q", g.ID, id, n.Kind)
		}
		seen := make(map[string]bool, len(n.Options))
		for _, o := range n.Options {
			key := strings.ToLower(o.Label)
			if seen[key] {
				return fmt.Errorf("flow: graph %q: node %q repeats option %q", g.ID, id, o.Label)
			}
			seen[key] = true
			if _, ok := g.Nodes[o.Next]; !ok {
				return fmt.Errorf("flow: graph %q: node %q option %q targets unknown node %q", g.ID, id, o.Label, o.Next)
			}
		}
	}
	return nil
}
