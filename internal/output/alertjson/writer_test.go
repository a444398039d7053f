package alertjson

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatlineage/pkg/models"
)

func TestWriterPublishesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "alerts.jsonl")
	w, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.WriteAlerts([]*models.Alert{{AlertID: "a", ProcessID: 1, Score: 9}, {AlertID: "b", ProcessID: 2, Score: 8}}))
	assert.Equal(t, 2, w.Count())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file should not exist before close")

	require.NoError(t, w.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"alert_id":"a"`)

	assert.NoError(t, w.Close())
	assert.Error(t, w.WriteAlerts([]*models.Alert{{AlertID: "c"}}))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
