package config

import (
	"path/filepath"
	"time"
)

// ApplyDefaults fills every unset field.
func ApplyDefaults(cfg *Config) {
	c := &cfg.ThreatLineage

	if c.Input.Dir == "" {
		c.Input.Dir = "input"
	}
	if c.Input.ProcessFile == "" {
		c.Input.ProcessFile = "process_events.csv"
	}
	if c.Input.NetworkFile == "" {
		c.Input.NetworkFile = "network_events.csv"
	}
	if c.Input.FileFile == "" {
		c.Input.FileFile = "file_events.csv"
	}
	if c.Input.RegistryFile == "" {
		c.Input.RegistryFile = "registry_events.csv"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}

	if c.Cleaning.CorruptMarker == "" {
		c.Cleaning.CorruptMarker = "###CORRUPT###"
	}
	if c.Cleaning.DriftWindow <= 0 {
		c.Cleaning.DriftWindow = 366 * 24 * time.Hour
	}

	if len(c.Lineage.RootPIDs) == 0 && !c.Lineage.AllRoots {
		c.Lineage.RootPIDs = []int64{15150}
	}
	if c.Lineage.ReportFile == "" {
		c.Lineage.ReportFile = "process_tree.md"
	}
	if c.Lineage.Indent == "" {
		c.Lineage.Indent = "  "
	}

	if c.Summarizer.Provider == "" {
		c.Summarizer.Provider = "openai"
	}
	if c.Summarizer.Endpoint == "" {
		c.Summarizer.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if c.Summarizer.Model == "" {
		c.Summarizer.Model = "gpt-3.5-turbo"
	}
	if c.Summarizer.Temperature == 0 {
		c.Summarizer.Temperature = 0.2
	}
	if c.Summarizer.MaxTokens <= 0 {
		c.Summarizer.MaxTokens = 256
	}
	if c.Summarizer.APIKeyEnv == "" {
		c.Summarizer.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Summarizer.Timeout <= 0 {
		c.Summarizer.Timeout = 30 * time.Second
	}
	if c.Summarizer.Workers <= 0 {
		c.Summarizer.Workers = 4
	}
	if c.Summarizer.Breaker.MaxRequests == 0 {
		c.Summarizer.Breaker.MaxRequests = 3
	}
	if c.Summarizer.Breaker.Interval <= 0 {
		c.Summarizer.Breaker.Interval = 10 * time.Second
	}
	if c.Summarizer.Breaker.Timeout <= 0 {
		c.Summarizer.Breaker.Timeout = 30 * time.Second
	}
	if c.Summarizer.Breaker.ConsecutiveFailures == 0 {
		c.Summarizer.Breaker.ConsecutiveFailures = 5
	}

	if c.Cache.MemorySize <= 0 {
		c.Cache.MemorySize = 4096
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Cache.Redis.KeyPrefix == "" {
		c.Cache.Redis.KeyPrefix = "threatlineage:summary"
	}
	if c.Cache.Redis.TTL <= 0 {
		c.Cache.Redis.TTL = 7 * 24 * time.Hour
	}

	if c.Events.Output.Mode == "" {
		c.Events.Output.Mode = "file"
	}
	if c.Events.Output.File.Path == "" {
		c.Events.Output.File.Path = filepath.Join(c.Output.Dir, "data", "unified_events_enriched.jsonl")
	}
	if c.Events.Output.ClickHouse.Database == "" {
		c.Events.Output.ClickHouse.Database = "threatlineage"
	}
	if c.Events.Output.ClickHouse.Table == "" {
		c.Events.Output.ClickHouse.Table = "enriched_events"
	}

	if c.Alerts.Threshold <= 0 {
		c.Alerts.Threshold = 8
	}
	if c.Alerts.Output.Path == "" {
		c.Alerts.Output.Path = filepath.Join(c.Output.Dir, "reports", "alerts.jsonl")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// DataDir is where cleaned and unified tables are written.
func (c *ThreatLineageConfig) DataDir() string {
	return filepath.Join(c.Output.Dir, "data")
}

// ReportsDir is where the lineage report, charts and quality report are written.
func (c *ThreatLineageConfig) ReportsDir() string {
	return filepath.Join(c.Output.Dir, "reports")
}
