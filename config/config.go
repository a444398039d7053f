package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	ThreatLineage ThreatLineageConfig `yaml:"threatlineage"`
}

// ThreatLineageConfig is the project configuration.
type ThreatLineageConfig struct {
	Input      InputConfig      `yaml:"input"`
	Output     OutputConfig     `yaml:"output"`
	Cleaning   CleaningConfig   `yaml:"cleaning"`
	Lineage    LineageConfig    `yaml:"lineage"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Cache      CacheConfig      `yaml:"cache"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Rules      RulesConfig      `yaml:"rules"`
	Events     EventsConfig     `yaml:"events"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Charts     ChartsConfig     `yaml:"charts"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	TestMode   bool             `yaml:"test_mode"`
}

// InputConfig names the raw telemetry files.
type InputConfig struct {
	Dir          string `yaml:"dir"`
	ProcessFile  string `yaml:"process_file"`
	NetworkFile  string `yaml:"network_file"`
	FileFile     string `yaml:"file_file"`
	RegistryFile string `yaml:"registry_file"`
}

// OutputConfig controls where data and reports are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// CleaningConfig controls the telemetry cleaning rules.
type CleaningConfig struct {
	CorruptMarker string        `yaml:"corrupt_marker"`
	DriftWindow   time.Duration `yaml:"drift_window"`
}

// LineageConfig controls the process tree report.
type LineageConfig struct {
	RootPIDs   []int64 `yaml:"root_pids"`
	AllRoots   bool    `yaml:"all_roots"`
	ReportFile string  `yaml:"report_file"`
	Indent     string  `yaml:"indent"`
}

// SummarizerConfig controls per-event natural-language summaries.
type SummarizerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Provider    string        `yaml:"provider"` // openai|offline
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Timeout     time.Duration `yaml:"timeout"`
	Workers     int           `yaml:"workers"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker around the summarizer.
type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

// CacheConfig controls summary caching.
type CacheConfig struct {
	MemorySize int         `yaml:"memory_size"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig controls the optional Redis summary cache.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// CatalogConfig selects the technique catalog sources.
type CatalogConfig struct {
	Path     string `yaml:"path"`
	STIXPath string `yaml:"stix_path"`
}

// RulesConfig controls Sigma tagging.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EventsConfig controls the enriched event sink.
type EventsConfig struct {
	Output EventsOutputConfig `yaml:"output"`
}

// EventsOutputConfig selects the enriched event sink.
type EventsOutputConfig struct {
	Mode       string                 `yaml:"mode"` // file|clickhouse|http
	File       FileOutputConfig       `yaml:"file"`
	HTTP       HTTPOutputConfig       `yaml:"http"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
}

// AlertsConfig controls per-process alerting.
type AlertsConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Threshold int              `yaml:"threshold"`
	Output    FileOutputConfig `yaml:"output"`
}

// ChartsConfig controls chart rendering.
type ChartsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus textfile dump.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Default returns a configuration with logging, summaries, charts and alerts
// switched on. LoadConfig unmarshals on top of it.
func Default() *Config {
	return &Config{ThreatLineage: ThreatLineageConfig{
		Summarizer: SummarizerConfig{Enabled: true},
		Alerts:     AlertsConfig{Enabled: true},
		Charts:     ChartsConfig{Enabled: true},
		Logging:    LoggingConfig{Enabled: true, Console: true},
	}}
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
