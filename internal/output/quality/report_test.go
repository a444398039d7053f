package quality

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatlineage/internal/analyzer"
	"threatlineage/internal/transform/telemetry"
)

func TestWriteIncludesCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", FileName)
	err := Write(path, Report{
		RunID:  "run-42",
		Marker: "###CORRUPT###",
		Drift:  "366 days",
		Clean: telemetry.CleanStats{
			Process:  telemetry.StreamStats{Stream: "process", Read: 100, Duplicates: 4, SelfParent: 2, Kept: 90},
			Network:  telemetry.StreamStats{Stream: "network", Read: 50, Kept: 50},
			File:     telemetry.StreamStats{Stream: "file", Read: 10, Kept: 9, MissingRequired: 1},
			Registry: telemetry.StreamStats{Stream: "registry", Read: 5, Kept: 5},
		},
		Lineage: analyzer.TreeStats{Cycles: 1},
		Roots:   []int64{15150, 7},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, "# Data Quality Issues and Resolutions")
	assert.Contains(t, body, "Run: `run-42`")
	assert.Contains(t, body, "| process | 100 | 4 | 0 | 0 | 0 | 0 | 0 | 2 | 90 |")
	assert.Contains(t, body, "| file | 10 | 0 | 0 | 1 | 0 | 0 | 0 | 0 | 9 |")
	assert.Contains(t, body, "1 cycle(s) and 0 unknown process(es) reported for root(s) 15150, 7")
	assert.Contains(t, body, "`###CORRUPT###` markers")
}
