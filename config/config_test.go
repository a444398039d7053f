package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threatlineage.yml")
	body := `
threatlineage:
  input:
    dir: raw
  lineage:
    root_pids: [1, 2]
  summarizer:
    provider: offline
    workers: 2
  charts:
    enabled: false
  cleaning:
    drift_window: 48h
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	ApplyDefaults(cfg)

	c := cfg.ThreatLineage
	assert.Equal(t, "raw", c.Input.Dir)
	assert.Equal(t, []int64{1, 2}, c.Lineage.RootPIDs)
	assert.Equal(t, "offline", c.Summarizer.Provider)
	assert.Equal(t, 2, c.Summarizer.Workers)
	assert.True(t, c.Summarizer.Enabled)
	assert.False(t, c.Charts.Enabled)
	assert.Equal(t, 48*time.Hour, c.Cleaning.DriftWindow)
	assert.Equal(t, "process_events.csv", c.Input.ProcessFile)
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()
	ApplyDefaults(cfg)

	c := cfg.ThreatLineage
	assert.Equal(t, []int64{15150}, c.Lineage.RootPIDs)
	assert.Equal(t, "  ", c.Lineage.Indent)
	assert.Equal(t, "###CORRUPT###", c.Cleaning.CorruptMarker)
	assert.Equal(t, 366*24*time.Hour, c.Cleaning.DriftWindow)
	assert.Equal(t, "gpt-3.5-turbo", c.Summarizer.Model)
	assert.Equal(t, 0.2, c.Summarizer.Temperature)
	assert.Equal(t, filepath.Join("output", "data"), c.DataDir())
	assert.Equal(t, filepath.Join("output", "reports", "alerts.jsonl"), c.Alerts.Output.Path)
}

func TestApplyDefaultsAllRootsKeepsEmptyRootList(t *testing.T) {
	cfg := Default()
	cfg.ThreatLineage.Lineage.AllRoots = true
	ApplyDefaults(cfg)
	assert.Empty(t, cfg.ThreatLineage.Lineage.RootPIDs)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
