package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatlineage/internal/analyzer"
	"threatlineage/internal/transform/telemetry"
)

func TestObserveClean(t *testing.T) {
	m := New()
	m.ObserveClean(telemetry.CleanStats{
		Process: telemetry.StreamStats{Stream: "process", Read: 10, Duplicates: 2, SelfParent: 1, Kept: 7},
		Network: telemetry.StreamStats{Stream: "network", Read: 3, Kept: 3},
	})

	assert.Equal(t, 10.0, testutil.ToFloat64(m.RowsRead.WithLabelValues("process")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RowsKept.WithLabelValues("process")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsDropped.WithLabelValues("process", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsDropped.WithLabelValues("process", "self_parent")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RowsDropped))
}

func TestObserveTreeAndTextfile(t *testing.T) {
	m := New()
	m.ObserveTree(analyzer.TreeStats{Nodes: 3, Cycles: 1, Events: 4})
	m.Stage("render")()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LineageLines.WithLabelValues("cycle")))

	path := filepath.Join(t.TempDir(), "metrics", "threatlineage.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.True(t, strings.Contains(body, `threatlineage_lineage_lines_total{kind="node"} 3`), body)
	assert.Contains(t, body, "threatlineage_stage_duration_seconds_count")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveClean(telemetry.CleanStats{})
	m.ObserveTree(analyzer.TreeStats{})
	m.Stage("x")()
	assert.NoError(t, m.WriteTextfile("ignored"))
}
