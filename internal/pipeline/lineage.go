package pipeline

import (
	"threatlineage/internal/analyzer"
	"threatlineage/internal/graph/lineage"
	"threatlineage/internal/logger"
	"threatlineage/internal/output/lineagemd"
	"threatlineage/internal/store"
)

// LineageOptions selects what the lineage report covers.
type LineageOptions struct {
	Roots    []int64
	AllRoots bool
	Indent   string
	Path     string
}

// RenderLineage builds the lineage graph from the process table and writes
// the report for the selected roots. It returns the roots actually rendered.
func RenderLineage(s *store.Tables, opts LineageOptions) (analyzer.TreeStats, []int64, error) {
	if s == nil {
		s = store.New(nil)
	}
	g := lineage.Build(s.Processes)
	logger.Infof("Lineage graph: nodes=%d edges=%d", g.Len(), g.EdgeCount())

	roots := opts.Roots
	if opts.AllRoots {
		roots = g.Roots()
	}
	for _, root := range roots {
		if !g.HasNode(root) {
			logger.Warnf("Lineage root %d not found in graph", root)
			continue
		}
		logger.Debugf("Lineage root %d reaches %d processes", root, g.Reachable(root))
	}

	r := analyzer.NewTreeRenderer(g, s)
	if opts.Indent != "" {
		r.Indent = opts.Indent
	}
	stats, err := lineagemd.WriteReport(opts.Path, r, roots)
	if err != nil {
		return stats, roots, err
	}
	logger.Infof("Lineage report %s: roots=%d nodes=%d events=%d cycles=%d unknown=%d",
		opts.Path, len(roots), stats.Nodes, stats.Events, stats.Cycles, stats.Unknown)
	return stats, roots, nil
}
