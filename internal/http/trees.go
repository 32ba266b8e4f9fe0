package http

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"earcheck/internal/core"
	"earcheck/internal/flow"
	"earcheck/internal/trees"
	"earcheck/pkg"
)

type treeInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type treeDetail struct {
	treeInfo
	RootID string       `json:"root_id"`
	Nodes  []*flow.Node `json:"nodes"`
}

type walkRequest struct {
	Choices []string `json:"choices"`
}

type walkResponse struct {
	OK       bool                 `json:"ok"`
	Current  *flow.Node           `json:"current"`
	Complete bool                 `json:"complete"`
	Ignored  int                  `json:"ignored"`
	Path     pkg.TreeSummaryInput `json:"path"`
}

func info(g *flow.Graph) treeInfo {
	return treeInfo{ID: g.ID, Label: g.Label, Description: g.Description}
}

func (s *Server) handleListTrees(w http.ResponseWriter, r *http.Request) {
	list := s.Trees.List()
	out := make([]treeInfo, 0, len(list))
	for _, g := range list {
		out = append(out, info(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "trees": out})
}

func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	g, ok := s.Trees.Get(id)
	if !ok {
		s.writeError(w, r, trees.ErrUnknownTree)
		return
	}
	nodes := make([]*flow.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"tree": treeDetail{treeInfo: info(g), RootID: g.RootID, Nodes: nodes},
	})
}

func (s *Server) walk(w http.ResponseWriter, r *http.Request) (trees.Path, error) {
	var req walkRequest
	if err := s.decodeJSON(w, r, &req, true); err != nil {
		return trees.Path{}, err
	}
	return s.Trees.Walk(chi.URLParam(r, "id"), req.Choices)
}

// handleWalk replays the choices from the root and reports where they
// lead.  Back and restart are the same call with fewer choices.
func (s *Server) handleWalk(w http.ResponseWriter, r *http.Request) {
	p, err := s.walk(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, walkResponse{
		OK:       true,
		Current:  p.Current,
		Complete: p.Complete(),
		Ignored:  p.Ignored,
		Path:     p.SummaryInput(),
	})
}

// handleTreeSummary summarises the walk so far; the outcome is included
// only once a terminal node is reached.
func (s *Server) handleTreeSummary(w http.ResponseWriter, r *http.Request) {
	if s.TreeSummarizer == nil {
		s.writeError(w, r, core.ErrGenerationDisabled)
		return
	}
	p, err := s.walk(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.TreeSummarizer.Summarize(r.Context(), p.SummaryInput())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"summary": sum.Markdown,
		"reviews": sum.Reviews,
		"passed":  sum.Passed,
	})
}
