package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"

	"threatlineage/internal/alerts"
	"threatlineage/internal/analyzer"
	"threatlineage/internal/charts"
	"threatlineage/internal/logger"
	"threatlineage/internal/metrics"
	"threatlineage/internal/output/eventscsv"
	"threatlineage/internal/output/quality"
	"threatlineage/internal/store"
	"threatlineage/internal/transform/telemetry"
	"threatlineage/pkg/models"
)

// TestModeLimit is the number of unified events kept in test mode.
const TestModeLimit = 5

// BatchOptions configures one pipeline run.
type BatchOptions struct {
	Sources     telemetry.Sources
	Clean       telemetry.Options
	DataDir     string
	ReportsDir  string
	TestMode    bool
	Lineage     LineageOptions
	Charts      bool
	BatchSize   int
	RunID       string
	MetricsPath string
}

// Result reports what a run produced.
type Result struct {
	Clean   telemetry.CleanStats
	Events  int
	Alerts  int
	Lineage analyzer.TreeStats
	Roots   []int64
	Charts  []string
}

// Batch runs the offline pipeline: clean, unify, enrich, report.
type Batch struct {
	opts        BatchOptions
	enricher    *Enricher
	events      EventWriter
	scorer      *alerts.Scorer
	alertWriter AlertWriter
	metrics     *metrics.Metrics
}

// NewBatch creates a batch pipeline. events, scorer and alertWriter may be nil.
func NewBatch(opts BatchOptions, enricher *Enricher, events EventWriter, scorer *alerts.Scorer, alertWriter AlertWriter, met *metrics.Metrics) *Batch {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Lineage.Path == "" {
		opts.Lineage.Path = filepath.Join(opts.ReportsDir, "process_tree.md")
	}
	return &Batch{
		opts:        opts,
		enricher:    enricher,
		events:      events,
		scorer:      scorer,
		alertWriter: alertWriter,
		metrics:     met,
	}
}

// Run executes every stage once. Anomalies in the data are logged and counted;
// only resource failures and cancellation return an error.
func (b *Batch) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	for _, dir := range []string{b.opts.DataDir, b.opts.ReportsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return res, fmt.Errorf("create output dir: %w", err)
		}
	}

	logger.Infof("Cleaning all input datasets from %s", b.opts.Sources.Dir)
	done := b.metrics.Stage("clean")
	tables, stats, err := telemetry.CleanDir(b.opts.Sources, b.opts.Clean)
	done()
	if err != nil {
		return res, err
	}
	res.Clean = stats
	b.metrics.ObserveClean(stats)
	for _, s := range stats.All() {
		logger.Infof("Cleaned %s events: read=%d kept=%d", s.Stream, s.Read, s.Kept)
	}

	s := store.New(tables)
	if err := store.Save(b.opts.DataDir, s); err != nil {
		return res, err
	}

	logger.Infof("Unifying event stream")
	done = b.metrics.Stage("unify")
	unified := UnifyEventStream(s)
	done()
	if b.opts.TestMode {
		logger.Infof("Test mode enabled: limiting rows to %d for summary and technique enrichment", TestModeLimit)
		unified = Head(unified, TestModeLimit)
	}
	res.Events = len(unified)
	if b.metrics != nil {
		for typ, n := range lo.CountValuesBy(unified, func(e *models.UnifiedEvent) string { return e.EventType }) {
			b.metrics.EventsUnified.WithLabelValues(typ).Add(float64(n))
		}
	}
	if err := eventscsv.WriteUnified(filepath.Join(b.opts.DataDir, eventscsv.UnifiedFile), unified); err != nil {
		return res, err
	}

	if b.enricher != nil {
		logger.Infof("Summarizing and matching %d events", len(unified))
		done = b.metrics.Stage("enrich")
		err := b.enricher.Run(ctx, unified)
		done()
		if err != nil {
			return res, fmt.Errorf("enrich events: %w", err)
		}
	}
	if err := eventscsv.WriteEnriched(filepath.Join(b.opts.DataDir, eventscsv.EnrichedFile), unified); err != nil {
		return res, err
	}
	if err := b.writeEvents(unified); err != nil {
		return res, err
	}

	n, err := b.writeAlerts(unified)
	res.Alerts = n
	if err != nil {
		return res, err
	}

	if b.opts.Charts {
		logger.Infof("Generating visualizations")
		done = b.metrics.Stage("charts")
		written, err := charts.Render(b.opts.ReportsDir, unified)
		done()
		res.Charts = written
		if err != nil {
			return res, fmt.Errorf("render charts: %w", err)
		}
	}

	done = b.metrics.Stage("lineage")
	treeStats, roots, err := RenderLineage(s, b.opts.Lineage)
	done()
	res.Lineage = treeStats
	res.Roots = roots
	b.metrics.ObserveTree(treeStats)
	if err != nil {
		return res, err
	}

	logger.Infof("Writing error documentation")
	if err := quality.Write(filepath.Join(b.opts.ReportsDir, quality.FileName), quality.Report{
		RunID:   b.opts.RunID,
		Marker:  b.opts.Clean.CorruptMarker,
		Drift:   b.opts.Clean.DriftWindow.String(),
		Clean:   stats,
		Lineage: treeStats,
		Roots:   roots,
	}); err != nil {
		return res, err
	}

	if err := b.metrics.WriteTextfile(b.opts.MetricsPath); err != nil {
		return res, err
	}
	return res, nil
}

func (b *Batch) writeEvents(events []*models.UnifiedEvent) error {
	if b.events == nil || len(events) == 0 {
		return nil
	}
	for _, chunk := range lo.Chunk(events, b.opts.BatchSize) {
		if err := b.events.WriteEvents(chunk); err != nil {
			return fmt.Errorf("write enriched events: %w", err)
		}
	}
	logger.Infof("Wrote %d enriched events to sink", len(events))
	return nil
}

func (b *Batch) writeAlerts(events []*models.UnifiedEvent) (int, error) {
	if b.scorer == nil {
		return 0, nil
	}
	b.scorer.Add(events)
	out := b.scorer.Alerts(b.opts.RunID)
	if b.metrics != nil {
		b.metrics.Alerts.Add(float64(len(out)))
	}
	if len(out) == 0 || b.alertWriter == nil {
		return len(out), nil
	}
	if err := b.alertWriter.WriteAlerts(out); err != nil {
		return len(out), fmt.Errorf("write alerts: %w", err)
	}
	logger.Infof("Wrote %d process alerts", len(out))
	return len(out), nil
}

// Close releases sink resources.
func (b *Batch) Close() error {
	var firstErr error
	if b.alertWriter != nil {
		if err := b.alertWriter.Close(); err != nil {
			logger.Errorf("Failed to close alert writer: %v", err)
			firstErr = err
		}
	}
	if b.events != nil {
		if err := b.events.Close(); err != nil {
			logger.Errorf("Failed to close event writer: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
