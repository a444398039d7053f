package lineagemd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"threatlineage/internal/analyzer"
	"threatlineage/internal/logger"
)

// Writer owns the lineage report file for one run.
type Writer struct {
	path string
	file *os.File
	buf  *bufio.Writer
	mu   sync.Mutex
}

// NewWriter creates (or truncates) the report file.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	logger.Infof("Lineage report writer initialized: %s", path)
	return &Writer{path: path, file: f, buf: bufio.NewWriter(f)}, nil
}

// WriteTrees renders every root into the report, one traversal per root.
func (w *Writer) WriteTrees(r *analyzer.TreeRenderer, roots []int64) (analyzer.TreeStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return analyzer.TreeStats{}, fmt.Errorf("lineage writer is closed")
	}
	stats, err := r.RenderForest(w.buf, roots)
	if err != nil {
		return stats, fmt.Errorf("failed to write lineage report: %w", err)
	}
	return stats, nil
}

// Close flushes and closes the report file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return fmt.Errorf("failed to flush lineage report: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close lineage report: %w", closeErr)
	}
	return nil
}

// WriteReport renders roots to path. The file is closed on every path and the
// first error wins.
func WriteReport(path string, r *analyzer.TreeRenderer, roots []int64) (stats analyzer.TreeStats, err error) {
	w, err := NewWriter(path)
	if err != nil {
		return stats, err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	return w.WriteTrees(r, roots)
}
