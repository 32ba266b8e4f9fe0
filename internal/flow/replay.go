package flow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedEvent is wrapped by every error Replay returns for an event
// that does not fit the cursor.
var ErrMalformedEvent = errors.New("malformed event")

// Event is a choice made at a node.  Group and Phase must equal the
// node's own; graphs that do not use them leave both empty.
type Event struct {
	NodeID string
	Group  string
	Phase  string
	Value  string
}

// Visit is a node that has been answered, with the option taken.
type Visit struct {
	Node   *Node
	Choice Option
	// Value is the answer as the caller sent it.
	Value string
}

// Walk is the result of replaying events over a graph.
type Walk struct {
	Visits  []Visit
	Current *Node
	// Ignored counts events received after the walk reached a terminal node.
	Ignored int
}

// Complete reports whether the walk stopped on a terminal node.
func (w Walk) Complete() bool {
	return w.Current != nil && w.Current.Kind == NodeTerminal
}

// MismatchError is returned when an event names a node other than the one
// the cursor expects.
type MismatchError struct {
	Index    int
	Expected string
	Got      string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("event %d: expected an answer to %q, got %q", e.Index, e.Expected, e.Got)
}

func (e *MismatchError) Unwrap() error { return ErrMalformedEvent }

// OptionError is returned when an answer is not among the node's options.
type OptionError struct {
	Index   int
	NodeID  string
	Value   string
	Allowed []string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("event %d: %q is not an allowed answer to %q (allowed: %s)",
		e.Index, e.Value, e.NodeID, strings.Join(e.Allowed, ", "))
}

func (e *OptionError) Unwrap() error { return ErrMalformedEvent }

// Replay applies events in order starting at the graph root.  Each event
// must name the node under the cursor and carry one of its option labels.
// Events after a terminal node has been reached are counted and ignored.
// Replay has no side effects; the same inputs always produce the same Walk.
func Replay(g *Graph, events []Event) (Walk, error) {
	cur, ok := g.Node(g.RootID)
	if !ok {
		return Walk{}, fmt.Errorf("flow: graph %q: root %q not found", g.ID, g.RootID)
	}
	w := Walk{Visits: make([]Visit, 0, len(events))}
	for i, ev := range events {
		if cur.Kind == NodeTerminal {
			w.Ignored++
			continue
		}
		if ev.NodeID != cur.ID || ev.Group != cur.Group || ev.Phase != cur.Phase {
			return Walk{}, &MismatchError{
				Index:    i,
				Expected: ref(cur.Group, cur.Phase, cur.ID),
				Got:      ref(ev.Group, ev.Phase, ev.NodeID),
			}
		}
		opt, ok := cur.Match(ev.Value)
		if !ok {
			return Walk{}, &OptionError{Index: i, NodeID: cur.ID, Value: ev.Value, Allowed: cur.OptionLabels()}
		}
		next, ok := g.Node(opt.Next)
		if !ok {
			return Walk{}, fmt.Errorf("flow: graph %q: node %q option %q targets unknown node %q", g.ID, cur.ID, opt.Label, opt.Next)
		}
		w.Visits = append(w.Visits, Visit{Node: cur, Choice: opt, Value: ev.Value})
		cur = next
	}
	w.Current = cur
	return w, nil
}

func ref(group, phase, id string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{group, phase, id} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// Back drops the most recent event.  An empty list stays empty.
func Back[T any](events []T) []T {
	if len(events) == 0 {
		return events
	}
	out := make([]T, len(events)-1)
	copy(out, events)
	return out
}
