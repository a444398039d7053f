package charts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatlineage/pkg/models"
)

var t0 = time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)

func ev(pid int64, typ string, offset time.Duration) *models.UnifiedEvent {
	return &models.UnifiedEvent{ProcessID: pid, EventType: typ, Timestamp: t0.Add(offset)}
}

func sample() []*models.UnifiedEvent {
	return []*models.UnifiedEvent{
		ev(1, models.EventProcessStart, 0),
		ev(1, models.EventFile, 10*time.Second),
		ev(2, models.EventFile, 3*time.Minute),
		ev(2, models.EventNetwork, 3*time.Minute+5*time.Second),
		ev(2, models.EventFile, 3*time.Minute+6*time.Second),
	}
}

func TestEventTypeCounts(t *testing.T) {
	got := EventTypeCounts(sample())
	assert.Equal(t, []Count{
		{Label: "file", Value: 3},
		{Label: "network", Value: 1},
		{Label: "process_start", Value: 1},
	}, got)
}

func TestTopProcesses(t *testing.T) {
	var events []*models.UnifiedEvent
	for pid := int64(1); pid <= 12; pid++ {
		for i := int64(0); i < pid; i++ {
			events = append(events, ev(pid, models.EventFile, 0))
		}
	}
	got := TopProcesses(events, TopN)
	require.Len(t, got, 10)
	assert.Equal(t, Count{Label: "12", Value: 12}, got[0])
	assert.Equal(t, Count{Label: "3", Value: 3}, got[9])
}

func TestTimelineFillsGaps(t *testing.T) {
	got := Timeline(sample(), time.Minute)
	require.Len(t, got, 4)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, 0, got[1].Count)
	assert.Equal(t, 0, got[2].Count)
	assert.Equal(t, 3, got[3].Count)
	assert.Nil(t, Timeline(nil, time.Minute))
}

func TestRenderWritesPNGs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	written, err := Render(dir, sample())
	require.NoError(t, err)
	require.Len(t, written, 3)

	for _, name := range []string{EventTypeFile, TimelineFile, TopPIDsFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, []byte("\x89PNG"), data[:4], name)
	}
}

func TestRenderSkipsEmptyInput(t *testing.T) {
	written, err := Render(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, written)
}
