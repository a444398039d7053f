package eventscsv

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatlineage/pkg/models"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteUnifiedAndEnriched(t *testing.T) {
	dir := t.TempDir()
	events := []*models.UnifiedEvent{
		{
			Timestamp: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
			ProcessID: 15150,
			EventType: models.EventProcessStart,
			Details:   "Executable: C:\\cmd.exe | User: alice",
			Summary:   "A shell, started \"interactively\".",
			Technique: models.TechniqueMatch{Technique: "Command and Scripting Interpreter", ID: "T1059", Tactic: "Execution"},
		},
	}

	require.NoError(t, WriteUnified(filepath.Join(dir, UnifiedFile), events))
	require.NoError(t, WriteEnriched(filepath.Join(dir, "nested", EnrichedFile), events))

	unified := readAll(t, filepath.Join(dir, UnifiedFile))
	require.Len(t, unified, 2)
	assert.Equal(t, []string{"timestamp", "process_id", "event_type", "event_details"}, unified[0])
	assert.Equal(t, []string{"2024-01-01 09:30:00", "15150", "process_start", "Executable: C:\\cmd.exe | User: alice"}, unified[1])

	enriched := readAll(t, filepath.Join(dir, "nested", EnrichedFile))
	require.Len(t, enriched, 2)
	assert.Equal(t, "A shell, started \"interactively\".", enriched[1][4])
	assert.Equal(t, "T1059", enriched[1][6])
}
