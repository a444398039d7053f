package eventsclickhouse

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatlineage/pkg/models"
)

func TestWriterPostsJSONEachRow(t *testing.T) {
	var query, user string
	var rows []row
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("query")
		user = r.Header.Get("X-ClickHouse-User")
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			var rr row
			if err := json.Unmarshal(sc.Bytes(), &rr); err == nil {
				rows = append(rows, rr)
			}
		}
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL + "/", Database: "threatlineage", Username: "loader"})
	require.NoError(t, err)

	err = w.WriteEvents([]*models.UnifiedEvent{
		{
			Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 6000000, time.UTC),
			ProcessID: 15150,
			EventType: models.EventRegistry,
			Technique: models.TechniqueMatch{Technique: "Boot or Logon Autostart Execution", ID: "T1547", Tactic: "Persistence"},
			SigmaTags: []models.TechniqueTag{{ID: "rule-1"}},
		},
		nil,
	})
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO `threatlineage`.`enriched_events` FORMAT JSONEachRow", query)
	assert.Equal(t, "loader", user)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-02 03:04:05.006", rows[0].Timestamp)
	assert.Equal(t, "T1547", rows[0].MitreID)
	assert.Equal(t, []string{"rule-1"}, rows[0].SigmaRules)
}

func TestWriterReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "table missing", http.StatusNotFound)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL})
	require.NoError(t, err)
	err = w.WriteEvents([]*models.UnifiedEvent{{ProcessID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table missing")

	_, err = NewWriter(Config{})
	assert.Error(t, err)
}
