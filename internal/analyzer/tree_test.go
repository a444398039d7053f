package analyzer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"threatlineage/internal/graph/lineage"
	"threatlineage/internal/store"
	"threatlineage/internal/transform/telemetry"
	"threatlineage/pkg/models"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(pid, ppid int64) models.ProcessRecord {
	return models.ProcessRecord{
		ProcessID:      pid,
		ParentID:       ppid,
		ExecutablePath: "C:\\bin\\p" + strings.Repeat("x", int(pid%3)) + ".exe",
		User:           "alice",
		StartTime:      t0,
		EndTime:        t0.Add(time.Minute),
	}
}

func render(t *testing.T, g *lineage.Graph, src EventSource, root int64) (string, TreeStats) {
	t.Helper()
	var buf bytes.Buffer
	stats, err := NewTreeRenderer(g, src).Render(&buf, root)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return buf.String(), stats
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestRenderStopsOnTwoNodeCycle(t *testing.T) {
	g := lineage.Build([]models.ProcessRecord{rec(1, 2), rec(2, 1)})

	out, stats := render(t, g, nil, 1)
	got := lines(out)
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(got), out)
	}
	if !strings.HasPrefix(got[0], "- process_id: 1, parent_id: 2,") {
		t.Fatalf("unexpected root line: %q", got[0])
	}
	if !strings.HasPrefix(got[1], "  - process_id: 2, parent_id: 1,") {
		t.Fatalf("unexpected child line: %q", got[1])
	}
	if got[2] != "    - process_id: 1 (cycle detected, already visited)" {
		t.Fatalf("unexpected cycle line: %q", got[2])
	}
	if stats.Nodes != 2 || stats.Cycles != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRenderUnknownRoot(t *testing.T) {
	g := lineage.Build([]models.ProcessRecord{rec(1, 0)})

	out, stats := render(t, g, nil, 404)
	if out != "- process_id: 404 (not found in graph)\n" {
		t.Fatalf("unexpected output: %q", out)
	}
	if stats.Unknown != 1 || stats.Nodes != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRenderPhantomRootIsLeaf(t *testing.T) {
	g := lineage.Build([]models.ProcessRecord{rec(1, 0)})

	out, _ := render(t, g, nil, 0)
	if out != "- process_id: 0 (not found in graph)\n" {
		t.Fatalf("phantom root should not expand, got %q", out)
	}
}

func TestRenderEndToEndCycleDepths(t *testing.T) {
	g := lineage.Build([]models.ProcessRecord{rec(1, 0), rec(2, 1), rec(3, 2), rec(2, 3)})

	out, stats := render(t, g, nil, 1)
	got := lines(out)
	if len(got) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(got), out)
	}
	wantPrefix := []string{
		"- process_id: 1, parent_id: 0,",
		"  - process_id: 2, parent_id: 3,",
		"    - process_id: 3, parent_id: 2,",
		"      - process_id: 2 (cycle detected, already visited)",
	}
	for i, want := range wantPrefix {
		if !strings.HasPrefix(got[i], want) {
			t.Fatalf("line %d: expected prefix %q, got %q", i, want, got[i])
		}
	}
	if stats.Nodes != 3 || stats.Cycles != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	records := []models.ProcessRecord{rec(1, 0), rec(5, 1), rec(3, 1), rec(4, 5), rec(9, 1), rec(1, 4)}
	src := store.New(&telemetry.Tables{
		Files: []models.FileEvent{{ProcessID: 5, Timestamp: t0, Operation: "write", FilePath: "C:\\x"}},
	})

	first, _ := render(t, lineage.Build(records), src, 1)
	for i := 0; i < 10; i++ {
		again, _ := render(t, lineage.Build(records), src, 1)
		if again != first {
			t.Fatalf("render %d differs:\n%s\nvs\n%s", i, again, first)
		}
	}
	got := lines(first)
	if !strings.HasPrefix(got[1], "  - process_id: 5") || !strings.HasPrefix(got[5], "  - process_id: 3") {
		t.Fatalf("siblings should follow record order:\n%s", first)
	}
}

func TestRenderVisitsEachReachableNodeOnce(t *testing.T) {
	records := []models.ProcessRecord{
		rec(1, 0), rec(2, 1), rec(3, 1), rec(4, 2), rec(4, 3), rec(2, 4), rec(5, 4), rec(1, 5),
	}
	g := lineage.Build(records)

	_, stats := render(t, g, nil, 1)
	if stats.Nodes > g.Reachable(1) {
		t.Fatalf("visited %d nodes, only %d reachable", stats.Nodes, g.Reachable(1))
	}
	if stats.Nodes != 5 {
		t.Fatalf("expected 5 distinct nodes, got %d", stats.Nodes)
	}
}

func TestRenderEventLinesAreIndentedBelowNode(t *testing.T) {
	name, data := "RunKey", "calc.exe"
	src := store.New(&telemetry.Tables{
		Files:    []models.FileEvent{{ProcessID: 2, Timestamp: t0, Operation: "read", FilePath: "C:\\a.txt"}},
		Network:  []models.NetworkEvent{{ProcessID: 2, Timestamp: t0, SrcIP: "10.0.0.1", SrcPort: "5000", DstIP: "8.8.8.8", DstPort: "53"}},
		Registry: []models.RegistryEvent{{ProcessID: 2, Timestamp: t0, Operation: "set", RegistryKey: "HKCU\\Run", ValueName: &name, ValueData: &data}},
	})
	g := lineage.Build([]models.ProcessRecord{rec(1, 0), rec(2, 1)})

	out, stats := render(t, g, src, 1)
	got := lines(out)
	want := []string{
		"    - File Event: 2024-03-01 12:00:00 | Operation: read | Path: C:\\a.txt",
		"    - Network Event: 2024-03-01 12:00:00 | SrcIP: 10.0.0.1:5000 → DstIP: 8.8.8.8:53",
		"    - Registry Event: 2024-03-01 12:00:00 | Operation: set | Key: HKCU\\Run | Value: RunKey = calc.exe",
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 lines, got:\n%s", out)
	}
	for i, w := range want {
		if got[i+2] != w {
			t.Fatalf("line %d: expected %q, got %q", i+2, w, got[i+2])
		}
	}
	if stats.Events != 3 {
		t.Fatalf("expected 3 events, got %d", stats.Events)
	}
}

func TestRenderNodeWithoutEvents(t *testing.T) {
	src := store.New(&telemetry.Tables{
		Files: []models.FileEvent{{ProcessID: 77, Timestamp: t0, FilePath: "C:\\orphan"}},
	})
	g := lineage.Build([]models.ProcessRecord{rec(1, 0)})

	out, stats := render(t, g, src, 1)
	if len(lines(out)) != 1 || stats.Events != 0 {
		t.Fatalf("expected a single node line, got:\n%s", out)
	}
	want := "- process_id: 1, parent_id: 0, executable_path: C:\\bin\\px.exe, user: alice, start_time: 2024-03-01 12:00:00\n"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestRenderCustomIndent(t *testing.T) {
	g := lineage.Build([]models.ProcessRecord{rec(1, 0), rec(2, 1)})
	var buf bytes.Buffer
	r := &TreeRenderer{Graph: g, Indent: "\t"}
	if _, err := r.Render(&buf, 1); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "\n\t- process_id: 2,") {
		t.Fatalf("expected tab indent, got %q", buf.String())
	}
}

func TestRenderForestUsesFreshVisitedSets(t *testing.T) {
	g := lineage.Build([]models.ProcessRecord{rec(1, 0), rec(2, 1), rec(3, 2)})
	var buf bytes.Buffer
	stats, err := NewTreeRenderer(g, nil).RenderForest(&buf, []int64{1, 2})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if stats.Nodes != 5 || stats.Cycles != 0 {
		t.Fatalf("unexpected stats: %+v\n%s", stats, buf.String())
	}
}

type failingWriter struct{ n int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n == 0 {
		return 0, errors.New("disk full")
	}
	f.n--
	return len(p), nil
}

func TestRenderSurfacesWriteErrors(t *testing.T) {
	g := lineage.Build([]models.ProcessRecord{rec(1, 0), rec(2, 1), rec(3, 2)})

	_, err := NewTreeRenderer(g, nil).Render(&failingWriter{n: 3}, 1)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected write error, got %v", err)
	}
}
