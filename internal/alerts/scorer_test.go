package alerts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatlineage/pkg/models"
)

var base = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func matched(pid int64, id string, offset time.Duration) *models.UnifiedEvent {
	return &models.UnifiedEvent{
		ProcessID: pid,
		Timestamp: base.Add(offset),
		Technique: models.TechniqueMatch{Technique: id + " name", ID: id, Tactic: "Execution"},
	}
}

func plain(pid int64) *models.UnifiedEvent {
	return &models.UnifiedEvent{ProcessID: pid, Timestamp: base, Technique: models.UnknownTechnique}
}

func TestScorerThresholdAndOrdering(t *testing.T) {
	s := NewScorer(Config{Threshold: 8})
	s.Add([]*models.UnifiedEvent{
		matched(10, "T1059", time.Minute),
		plain(10),
		matched(10, "T1547", 3*time.Minute),
		matched(20, "T1059", 0),
		plain(30),
		{
			ProcessID: 40,
			Timestamp: base,
			Technique: models.UnknownTechnique,
			SigmaTags: []models.TechniqueTag{{ID: "r1", Severity: "critical", Technique: "T1003"}},
		},
	})

	got := s.Alerts("run-1")
	require.Len(t, got, 2)

	// pid 10: 2*3 + 2*2 = 10, pid 40: 7 + 2 = 9, pid 20: 3 + 2 = 5
	assert.Equal(t, int64(10), got[0].ProcessID)
	assert.Equal(t, 10, got[0].Score)
	assert.Equal(t, []string{"T1059", "T1547"}, got[0].Techniques)
	assert.Equal(t, models.AlertCounts{Events: 3, MatchedEvents: 2, DistinctTechnique: 2}, got[0].Counts)
	assert.Equal(t, base.Add(time.Minute), got[0].WindowStart)
	assert.Equal(t, base.Add(3*time.Minute), got[0].WindowEnd)
	assert.Equal(t, "run-1", got[0].RunID)
	_, err := uuid.Parse(got[0].AlertID)
	assert.NoError(t, err)

	assert.Equal(t, int64(40), got[1].ProcessID)
	assert.Equal(t, 9, got[1].Score)
	assert.Equal(t, 1, got[1].Counts.SigmaHits)
}

func TestScorerDefaults(t *testing.T) {
	s := NewScorer(Config{})
	s.Add([]*models.UnifiedEvent{nil, matched(1, "T1059", 0)})
	assert.Empty(t, s.Alerts(""))
}
