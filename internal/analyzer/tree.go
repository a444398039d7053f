package analyzer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"threatlineage/internal/graph/lineage"
	"threatlineage/internal/logger"
	"threatlineage/pkg/models"
)

// DefaultIndent is the leading whitespace added per tree level.
const DefaultIndent = "  "

// TreeStats counts the lines emitted by a render.
type TreeStats struct {
	Nodes   int `json:"nodes"`
	Cycles  int `json:"cycles"`
	Unknown int `json:"unknown"`
	Events  int `json:"events"`
}

func (s *TreeStats) add(o TreeStats) {
	s.Nodes += o.Nodes
	s.Cycles += o.Cycles
	s.Unknown += o.Unknown
	s.Events += o.Events
}

// TreeRenderer writes the lineage of a process as an indented list. Each
// render owns its visited set, so a process is expanded at most once per root.
type TreeRenderer struct {
	Graph  *lineage.Graph
	Events EventSource
	Indent string
}

// NewTreeRenderer creates a renderer with the default indent.
func NewTreeRenderer(g *lineage.Graph, events EventSource) *TreeRenderer {
	return &TreeRenderer{Graph: g, Events: events, Indent: DefaultIndent}
}

// Render writes the tree rooted at root to w. Cycles and unknown ids end their
// branch with a marker line; only write failures are returned.
func (r *TreeRenderer) Render(w io.Writer, root int64) (TreeStats, error) {
	g := r.Graph
	if g == nil {
		g = lineage.Build(nil)
	}
	t := &treeWalk{
		r:       r,
		g:       g,
		out:     &errWriter{w: w},
		visited: make(map[int64]struct{}),
	}
	t.visit(root, 0)
	if t.out.err != nil {
		return t.stats, fmt.Errorf("write lineage for %d: %w", root, t.out.err)
	}
	return t.stats, nil
}

// RenderForest renders each root in turn with a fresh visited set.
func (r *TreeRenderer) RenderForest(w io.Writer, roots []int64) (TreeStats, error) {
	var total TreeStats
	for _, root := range roots {
		stats, err := r.Render(w, root)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type treeWalk struct {
	r       *TreeRenderer
	g       *lineage.Graph
	out     *errWriter
	visited map[int64]struct{}
	stats   TreeStats
}

func (t *treeWalk) visit(pid int64, depth int) {
	if t.out.err != nil {
		return
	}
	prefix := t.indent(depth)

	if _, seen := t.visited[pid]; seen {
		t.stats.Cycles++
		logger.Debugf("Lineage cycle at pid %d (depth %d)", pid, depth)
		t.out.line(prefix, "- process_id: ", strconv.FormatInt(pid, 10), " (cycle detected, already visited)")
		return
	}

	node, ok := t.g.Node(pid)
	if !ok || node.Phantom() {
		t.stats.Unknown++
		t.out.line(prefix, "- process_id: ", strconv.FormatInt(pid, 10), " (not found in graph)")
		return
	}

	t.visited[pid] = struct{}{}
	t.stats.Nodes++
	t.out.line(prefix, nodeLine(node.Record))

	eventPrefix := prefix + t.r.unit()
	for _, ev := range EventsFor(pid, t.r.Events) {
		t.stats.Events++
		t.out.line(eventPrefix, "- ", ev)
	}

	for _, child := range t.g.Successors(pid) {
		t.visit(child, depth+1)
	}
}

func (t *treeWalk) indent(depth int) string {
	return strings.Repeat(t.r.unit(), depth)
}

func (r *TreeRenderer) unit() string {
	if r.Indent == "" {
		return DefaultIndent
	}
	return r.Indent
}

func nodeLine(p *models.ProcessRecord) string {
	return "- process_id: " + strconv.FormatInt(p.ProcessID, 10) +
		", parent_id: " + strconv.FormatInt(p.ParentID, 10) +
		", executable_path: " + p.ExecutablePath +
		", user: " + p.User +
		", start_time: " + models.FormatTime(p.StartTime)
}

// errWriter keeps the first write error and turns later writes into no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) line(parts ...string) {
	if e.err != nil {
		return
	}
	for _, p := range parts {
		if _, e.err = io.WriteString(e.w, p); e.err != nil {
			return
		}
	}
	_, e.err = io.WriteString(e.w, "\n")
}
