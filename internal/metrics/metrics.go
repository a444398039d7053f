// Package metrics collects per-run counters and writes them in the Prometheus
// text format for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"threatlineage/internal/analyzer"
	"threatlineage/internal/transform/telemetry"
)

const namespace = "threatlineage"

// Metrics holds the counters of one pipeline run on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	RowsRead         *prometheus.CounterVec
	RowsDropped      *prometheus.CounterVec
	RowsKept         *prometheus.CounterVec
	EventsUnified    *prometheus.CounterVec
	Summaries        *prometheus.CounterVec
	TechniqueMatches *prometheus.CounterVec
	SigmaHits        prometheus.Counter
	Alerts           prometheus.Counter
	LineageLines     *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	LastRun          prometheus.Gauge
}

// New creates the metric set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RowsRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_read_total",
				Help:      "Raw telemetry rows read by stream",
			},
			[]string{"stream"},
		),
		RowsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_dropped_total",
				Help:      "Rows removed during cleaning by stream and reason",
			},
			[]string{"stream", "reason"},
		),
		RowsKept: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_kept_total",
				Help:      "Rows that survived cleaning by stream",
			},
			[]string{"stream"},
		),
		EventsUnified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_unified_total",
				Help:      "Events in the unified stream by type",
			},
			[]string{"event_type"},
		),
		Summaries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "summaries_total",
				Help:      "Event summaries by outcome",
			},
			[]string{"outcome"},
		),
		TechniqueMatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "technique_matches_total",
				Help:      "Events by matched technique id",
			},
			[]string{"technique_id"},
		),
		SigmaHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sigma_hits_total",
			Help:      "Sigma rule matches over the unified stream",
		}),
		Alerts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Process alerts emitted",
		}),
		LineageLines: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lineage_lines_total",
				Help:      "Lines written to the lineage report by kind",
			},
			[]string{"kind"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// ObserveClean records cleaning statistics.
func (m *Metrics) ObserveClean(stats telemetry.CleanStats) {
	if m == nil {
		return
	}
	for _, s := range stats.All() {
		m.RowsRead.WithLabelValues(s.Stream).Add(float64(s.Read))
		m.RowsKept.WithLabelValues(s.Stream).Add(float64(s.Kept))
		for reason, n := range s.Dropped() {
			if n > 0 {
				m.RowsDropped.WithLabelValues(s.Stream, reason).Add(float64(n))
			}
		}
	}
}

// ObserveTree records lineage report line counts.
func (m *Metrics) ObserveTree(stats analyzer.TreeStats) {
	if m == nil {
		return
	}
	m.LineageLines.WithLabelValues("node").Add(float64(stats.Nodes))
	m.LineageLines.WithLabelValues("event").Add(float64(stats.Events))
	m.LineageLines.WithLabelValues("cycle").Add(float64(stats.Cycles))
	m.LineageLines.WithLabelValues("unknown").Add(float64(stats.Unknown))
}

// Stage returns a func that records the elapsed time of a stage when called.
func (m *Metrics) Stage(name string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// WriteTextfile writes all metrics to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	m.LastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
