package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"threatlineage/config"
	"threatlineage/internal/alerts"
	rediscache "threatlineage/internal/cache/redis"
	"threatlineage/internal/logger"
	"threatlineage/internal/metrics"
	"threatlineage/internal/output/alertjson"
	"threatlineage/internal/output/eventsclickhouse"
	"threatlineage/internal/output/eventshttp"
	"threatlineage/internal/output/eventsjson"
	"threatlineage/internal/pipeline"
	"threatlineage/internal/rules"
	"threatlineage/internal/store"
	"threatlineage/internal/summarizer"
	"threatlineage/internal/transform/telemetry"
)

const configName = "threatlineage.yml"

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat(configName); err == nil {
		return configName
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, configName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// pidList collects --root-pid values. Each value may hold several
// comma-separated pids.
type pidList []int64

func (p *pidList) String() string {
	parts := make([]string, len(*p))
	for i, v := range *p {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func (p *pidList) Set(raw string) error {
	for _, part := range strings.Split(raw, ",") {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		pid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid pid %q", v)
		}
		*p = append(*p, pid)
	}
	return nil
}

type cliFlags struct {
	config    string
	inputDir  string
	outputDir string
	testMode  bool
	allRoots  bool
	rootPIDs  pidList
}

func parseFlags(name string, args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&f.config, "config", "", "Path to "+configName)
	fs.StringVar(&f.inputDir, "input-dir", "", "Directory with the raw telemetry CSV files")
	fs.StringVar(&f.outputDir, "output-dir", "", "Directory for data/ and reports/")
	fs.BoolVar(&f.testMode, "test-mode", false, "Limit summary and technique enrichment to the first 5 events")
	fs.BoolVar(&f.allRoots, "all-roots", false, "Render the lineage of every process whose parent has no record")
	fs.Var(&f.rootPIDs, "root-pid", "Root process id for the lineage report (repeatable, comma-separated)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

func loadConfig(f *cliFlags) (*config.Config, string) {
	configPath := findConfigFile(f.config)
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	c := &cfg.ThreatLineage
	if f.inputDir != "" {
		c.Input.Dir = f.inputDir
	}
	if f.outputDir != "" {
		c.Output.Dir = f.outputDir
	}
	if f.testMode {
		c.TestMode = true
	}
	if f.allRoots {
		c.Lineage.AllRoots = true
	}
	if len(f.rootPIDs) > 0 {
		c.Lineage.RootPIDs = f.rootPIDs
	}
	config.ApplyDefaults(cfg)
	return cfg, configPath
}

func initLogging(cfg *config.Config, runID string) {
	l := cfg.ThreatLineage.Logging
	if err := logger.Init(l.Enabled, l.Level, l.File, l.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.SetRunID(runID)
}

func buildSummarizer(c *config.ThreatLineageConfig) (summarizer.Summarizer, func()) {
	closeFn := func() {}
	if !c.Summarizer.Enabled {
		logger.Infof("Summarizer disabled")
		return nil, closeFn
	}

	scfg := summarizer.Config{
		Provider:    c.Summarizer.Provider,
		Endpoint:    c.Summarizer.Endpoint,
		Model:       c.Summarizer.Model,
		Temperature: c.Summarizer.Temperature,
		MaxTokens:   c.Summarizer.MaxTokens,
		APIKey:      summarizer.APIKeyFromEnv(c.Summarizer.APIKeyEnv),
		Timeout:     c.Summarizer.Timeout,
		Breaker: summarizer.BreakerConfig{
			MaxRequests:         c.Summarizer.Breaker.MaxRequests,
			Interval:            c.Summarizer.Breaker.Interval,
			Timeout:             c.Summarizer.Breaker.Timeout,
			ConsecutiveFailures: c.Summarizer.Breaker.ConsecutiveFailures,
		},
	}
	if scfg.Provider == summarizer.ProviderOpenAI && scfg.APIKey == "" {
		logger.Warnf("%s is not set; using the offline summarizer", c.Summarizer.APIKeyEnv)
		scfg.Provider = summarizer.ProviderOffline
	}
	base, err := summarizer.New(scfg)
	if err != nil {
		logger.Errorf("Failed to create summarizer: %v", err)
		log.Fatalf("Failed to create summarizer: %v", err)
	}
	scope := scfg.Provider
	if scfg.Provider == summarizer.ProviderOpenAI {
		scope += ":" + scfg.Model
	}
	logger.Infof("Summarizer provider: %s", scope)

	var remote summarizer.RemoteCache
	if c.Cache.Redis.Enabled {
		rs, err := rediscache.NewStore(rediscache.Config{
			Addr:      c.Cache.Redis.Addr,
			Password:  c.Cache.Redis.Password,
			DB:        c.Cache.Redis.DB,
			KeyPrefix: c.Cache.Redis.KeyPrefix,
			TTL:       c.Cache.Redis.TTL,
		})
		if err != nil {
			logger.Warnf("Redis summary cache unavailable, continuing without it: %v", err)
		} else {
			remote = rs
			closeFn = func() {
				if err := rs.Close(); err != nil {
					logger.Errorf("Failed to close redis cache: %v", err)
				}
			}
			logger.Infof("Redis summary cache: %s", c.Cache.Redis.Addr)
		}
	}

	cached, err := summarizer.NewCached(base, c.Cache.MemorySize, remote, scope)
	if err != nil {
		log.Fatalf("Failed to create summary cache: %v", err)
	}
	return cached, closeFn
}

func buildRules(c *config.ThreatLineageConfig) (*rules.Matcher, rules.Engine) {
	catalog, err := rules.LoadCatalogs(c.Catalog.Path, c.Catalog.STIXPath)
	if err != nil {
		logger.Errorf("Failed to load technique catalog: %v", err)
		log.Fatalf("Failed to load technique catalog: %v", err)
	}
	matcher, err := rules.NewMatcher(catalog)
	if err != nil {
		logger.Errorf("Failed to compile technique catalog: %v", err)
		log.Fatalf("Failed to compile technique catalog: %v", err)
	}
	logger.Infof("Technique catalog loaded: techniques=%d", matcher.Len())

	var engine rules.Engine
	if c.Rules.Enabled {
		if strings.TrimSpace(c.Rules.Path) == "" {
			logger.Warnf("Rules enabled but rules.path is empty; Sigma tagging disabled")
		} else {
			sigmaEngine, stats, err := rules.NewSigmaEngine(c.Rules.Path)
			if err != nil {
				logger.Errorf("Failed to load Sigma rules from %s: %v", c.Rules.Path, err)
				log.Fatalf("Failed to load Sigma rules: %v", err)
			}
			engine = sigmaEngine
			logger.Infof("Sigma rules loaded: loaded=%d unsupported=%d other_source=%d invalid=%d files=%d",
				stats.Loaded,
				stats.Unsupported,
				stats.OtherSource,
				stats.Invalid,
				stats.Files,
			)
			if stats.Loaded == 0 {
				logger.Warnf("No compatible Sigma rules loaded; Sigma tagging is effectively disabled")
			}
		}
	}
	return matcher, engine
}

func buildEventWriter(c *config.ThreatLineageConfig) pipeline.EventWriter {
	out := c.Events.Output
	switch out.Mode {
	case "file":
		w, err := eventsjson.NewWriter(out.File.Path)
		if err != nil {
			logger.Errorf("Failed to create event file writer: %v", err)
			log.Fatalf("Failed to create event file writer: %v", err)
		}
		logger.Infof("Event output mode: file (%s)", out.File.Path)
		return w
	case "clickhouse":
		w, err := eventsclickhouse.NewWriter(eventsclickhouse.Config{
			URL:      out.ClickHouse.URL,
			Database: out.ClickHouse.Database,
			Table:    out.ClickHouse.Table,
			Username: out.ClickHouse.Username,
			Password: out.ClickHouse.Password,
			Timeout:  out.ClickHouse.Timeout,
			Headers:  out.ClickHouse.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create event ClickHouse writer: %v", err)
			log.Fatalf("Failed to create event ClickHouse writer: %v", err)
		}
		logger.Infof("Event output mode: clickhouse (%s/%s.%s)", out.ClickHouse.URL, out.ClickHouse.Database, out.ClickHouse.Table)
		return w
	case "http":
		w, err := eventshttp.NewWriter(eventshttp.Config{
			URL:     out.HTTP.URL,
			Timeout: out.HTTP.Timeout,
			Headers: out.HTTP.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create event HTTP writer: %v", err)
			log.Fatalf("Failed to create event HTTP writer: %v", err)
		}
		logger.Infof("Event output mode: http (%s)", out.HTTP.URL)
		return w
	case "none":
		return nil
	default:
		log.Fatalf("Unknown event output mode: %s", out.Mode)
	}
	return nil
}

func sources(c *config.ThreatLineageConfig) telemetry.Sources {
	return telemetry.Sources{
		Dir:          c.Input.Dir,
		ProcessFile:  c.Input.ProcessFile,
		NetworkFile:  c.Input.NetworkFile,
		FileFile:     c.Input.FileFile,
		RegistryFile: c.Input.RegistryFile,
	}
}

func cleanOptions(c *config.ThreatLineageConfig) telemetry.Options {
	return telemetry.Options{
		CorruptMarker: c.Cleaning.CorruptMarker,
		DriftWindow:   c.Cleaning.DriftWindow,
	}
}

func lineageOptions(c *config.ThreatLineageConfig) pipeline.LineageOptions {
	return pipeline.LineageOptions{
		Roots:    c.Lineage.RootPIDs,
		AllRoots: c.Lineage.AllRoots,
		Indent:   c.Lineage.Indent,
		Path:     filepath.Join(c.ReportsDir(), c.Lineage.ReportFile),
	}
}

func runPipeline(args []string) int {
	flags, err := parseFlags("run", args)
	if err != nil {
		return 2
	}
	cfg, configPath := loadConfig(flags)
	runID := uuid.NewString()
	initLogging(cfg, runID)
	defer logger.Close()

	c := &cfg.ThreatLineage
	logger.Infof("ThreatLineage starting")
	if configPath != "" {
		logger.Infof("Config loaded from: %s", configPath)
	} else {
		logger.Infof("No config file found, using defaults")
	}

	sum, closeCache := buildSummarizer(c)
	defer closeCache()
	matcher, engine := buildRules(c)
	met := metrics.New()
	enricher := pipeline.NewEnricher(sum, matcher, engine, met, c.Summarizer.Workers, runID)

	var scorer *alerts.Scorer
	var alertWriter pipeline.AlertWriter
	if c.Alerts.Enabled {
		scorer = alerts.NewScorer(alerts.Config{Threshold: c.Alerts.Threshold})
		w, err := alertjson.NewWriter(c.Alerts.Output.Path)
		if err != nil {
			logger.Errorf("Failed to create alert file writer: %v", err)
			log.Fatalf("Failed to create alert file writer: %v", err)
		}
		alertWriter = w
		logger.Infof("Alert output: %s (threshold %d)", c.Alerts.Output.Path, c.Alerts.Threshold)
	}

	batch := pipeline.NewBatch(pipeline.BatchOptions{
		Sources:     sources(c),
		Clean:       cleanOptions(c),
		DataDir:     c.DataDir(),
		ReportsDir:  c.ReportsDir(),
		TestMode:    c.TestMode,
		Lineage:     lineageOptions(c),
		Charts:      c.Charts.Enabled,
		RunID:       runID,
		MetricsPath: c.Metrics.TextfilePath,
	}, enricher, buildEventWriter(c), scorer, alertWriter, met)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, runErr := batch.Run(ctx)
	if err := batch.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		logger.Errorf("Pipeline failed: %v", runErr)
		return 1
	}

	logger.Infof("All steps completed successfully: events=%d alerts=%d charts=%d", res.Events, res.Alerts, len(res.Charts))
	fmt.Printf("  --> Enriched unified data: %s\n", filepath.Join(c.DataDir(), "unified_events_enriched.csv"))
	fmt.Printf("  --> Process tree report:   %s\n", lineageOptions(c).Path)
	fmt.Printf("  --> Error documentation:   %s\n", filepath.Join(c.ReportsDir(), "errors.md"))
	return 0
}

func runTree(args []string) int {
	flags, err := parseFlags("tree", args)
	if err != nil {
		return 2
	}
	cfg, _ := loadConfig(flags)
	initLogging(cfg, uuid.NewString())
	defer logger.Close()

	c := &cfg.ThreatLineage
	s, err := store.Load(c.DataDir(), cleanOptions(c))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load cleaned tables: %v\n", err)
		return 1
	}
	opts := lineageOptions(c)
	stats, roots, err := pipeline.RenderLineage(s, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write lineage report: %v\n", err)
		return 1
	}
	fmt.Printf("rendered roots=%d nodes=%d cycles=%d unknown=%d output=%s\n", len(roots), stats.Nodes, stats.Cycles, stats.Unknown, opts.Path)
	return 0
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			os.Exit(runPipeline(os.Args[2:]))
		case "tree":
			os.Exit(runTree(os.Args[2:]))
		}
	}
	os.Exit(runPipeline(os.Args[1:]))
}
