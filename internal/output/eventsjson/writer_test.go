package eventsjson

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatlineage/pkg/models"
)

func TestWriterWritesOneEventPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "events.jsonl")
	w, err := NewWriter(path)
	require.NoError(t, err)

	events := []*models.UnifiedEvent{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ProcessID: 7, EventType: models.EventFile, Details: "Operation: read | File: <a> | User: u", Technique: models.UnknownTechnique},
		{ProcessID: 8, EventType: models.EventNetwork, Summary: "x", Technique: models.TechniqueMatch{Technique: "Phishing", ID: "T1566", Tactic: "Initial Access"}},
	}
	require.NoError(t, w.WriteEvents(events))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "Operation: read | File: <a> | User: u", lines[0]["event_details"])
	assert.Equal(t, "T1566", lines[1]["mitre"].(map[string]interface{})["mitre_id"])
}
