package eventshttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatlineage/pkg/models"
)

func TestWriterPostsBatch(t *testing.T) {
	var got []models.UnifiedEvent
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer t"}})
	require.NoError(t, err)
	require.NoError(t, w.WriteEvents(nil))
	require.NoError(t, w.WriteEvents([]*models.UnifiedEvent{{ProcessID: 3, EventType: models.EventFile}}))

	assert.Equal(t, "Bearer t", token)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ProcessID)
}

func TestWriterFailsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w, err := NewWriter(Config{URL: srv.URL})
	require.NoError(t, err)
	assert.Error(t, w.WriteEvents([]*models.UnifiedEvent{{ProcessID: 1}}))
}
