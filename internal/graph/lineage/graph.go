// Package lineage builds the parent/child process graph from cleaned process
// records. The graph may contain cycles and dangling parent references.
package lineage

import (
	"sort"

	"threatlineage/pkg/models"
)

// Node is one process identifier in the graph. Record is nil for phantom
// nodes that only appear as somebody's parent.
type Node struct {
	PID    int64
	Record *models.ProcessRecord
}

// Phantom reports whether the node has no process record attached.
func (n *Node) Phantom() bool {
	return n == nil || n.Record == nil
}

// Graph is a directed parent->child graph. Successors are kept in edge
// insertion order, which follows the order of the input records.
type Graph struct {
	nodes map[int64]*Node
	succ  map[int64][]int64
	edges map[[2]int64]struct{}
	order []int64
}

// Build creates a graph from process records. Every record adds its node and
// an edge from its parent id, creating the parent as a phantom when needed.
// Later records with the same process id overwrite the node record.
func Build(records []models.ProcessRecord) *Graph {
	g := &Graph{
		nodes: make(map[int64]*Node, len(records)),
		succ:  make(map[int64][]int64, len(records)),
		edges: make(map[[2]int64]struct{}, len(records)),
	}
	for i := range records {
		rec := records[i]
		g.ensure(rec.ProcessID).Record = &rec
		g.ensure(rec.ParentID)
		g.addEdge(rec.ParentID, rec.ProcessID)
	}
	return g
}

func (g *Graph) ensure(pid int64) *Node {
	if n, ok := g.nodes[pid]; ok {
		return n
	}
	n := &Node{PID: pid}
	g.nodes[pid] = n
	g.order = append(g.order, pid)
	return n
}

func (g *Graph) addEdge(from, to int64) {
	key := [2]int64{from, to}
	if _, ok := g.edges[key]; ok {
		return
	}
	g.edges[key] = struct{}{}
	g.succ[from] = append(g.succ[from], to)
}

// HasNode reports whether pid is a node, phantom or not.
func (g *Graph) HasNode(pid int64) bool {
	_, ok := g.nodes[pid]
	return ok
}

// Node returns the node for pid.
func (g *Graph) Node(pid int64) (*Node, bool) {
	n, ok := g.nodes[pid]
	return n, ok
}

// Successors returns the children of pid in edge insertion order. The slice
// must not be modified.
func (g *Graph) Successors(pid int64) []int64 {
	return g.succ[pid]
}

// Len returns the number of nodes, phantoms included.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Roots returns, in ascending order, the ids of recorded processes whose
// parent has no record of its own.
func (g *Graph) Roots() []int64 {
	var roots []int64
	for _, pid := range g.order {
		n := g.nodes[pid]
		if n.Record == nil {
			continue
		}
		if parent, ok := g.nodes[n.Record.ParentID]; ok && parent.Record != nil {
			continue
		}
		roots = append(roots, pid)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

// Reachable returns the number of distinct ids reachable from root,
// root included when it is a node.
func (g *Graph) Reachable(root int64) int {
	if !g.HasNode(root) {
		return 0
	}
	seen := map[int64]struct{}{root: {}}
	stack := []int64{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.succ[cur] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return len(seen)
}
