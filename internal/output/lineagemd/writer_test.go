package lineagemd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"threatlineage/internal/analyzer"
	"threatlineage/internal/graph/lineage"
	"threatlineage/pkg/models"
)

func TestWriteReportRendersAllRoots(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := lineage.Build([]models.ProcessRecord{
		{ProcessID: 1, ParentID: 0, ExecutablePath: "a.exe", User: "u", StartTime: ts, EndTime: ts},
		{ProcessID: 2, ParentID: 1, ExecutablePath: "b.exe", User: "u", StartTime: ts, EndTime: ts},
	})
	path := filepath.Join(t.TempDir(), "reports", "process_tree.md")

	stats, err := WriteReport(path, analyzer.NewTreeRenderer(g, nil), []int64{1, 99})
	if err != nil {
		t.Fatalf("write report: %v", err)
	}
	if stats.Nodes != 2 || stats.Unknown != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), data)
	}
	if lines[2] != "- process_id: 99 (not found in graph)" {
		t.Fatalf("unexpected last line: %q", lines[2])
	}
}

func TestWriteReportUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err := WriteReport(filepath.Join(blocker, "process_tree.md"), analyzer.NewTreeRenderer(nil, nil), []int64{1})
	if err == nil {
		t.Fatalf("expected error for unwritable path")
	}
}

func TestWriterRejectsWritesAfterClose(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "tree.md"))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := w.WriteTrees(analyzer.NewTreeRenderer(nil, nil), []int64{1}); err == nil {
		t.Fatalf("expected error after close")
	}
}
