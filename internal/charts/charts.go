// Package charts renders summary PNG charts of the unified event stream.
package charts

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"threatlineage/internal/logger"
	"threatlineage/pkg/models"
)

// Chart file names.
const (
	EventTypeFile = "event_type_distribution.png"
	TimelineFile  = "event_timeline.png"
	TopPIDsFile   = "top_talkers.png"
)

// TopN is the number of processes on the top talkers chart.
const TopN = 10

var (
	barBlue   = color.RGBA{R: 0x4A, G: 0x90, B: 0xE2, A: 0xFF}
	barPurple = color.RGBA{R: 0x7B, G: 0x68, B: 0xEE, A: 0xFF}
)

// Count is one bar of a chart.
type Count struct {
	Label string
	Value int
}

// Render writes all charts into dir and returns the files written. Charts
// without data are skipped.
func Render(dir string, events []*models.UnifiedEvent) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}
	var written []string

	if counts := EventTypeCounts(events); len(counts) > 0 {
		path := filepath.Join(dir, EventTypeFile)
		if err := saveBars(path, "Event Type Distribution", "Event Type", "Count", counts, barBlue); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if points := Timeline(events, time.Minute); len(points) > 0 {
		path := filepath.Join(dir, TimelineFile)
		if err := saveTimeline(path, points); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if counts := TopProcesses(events, TopN); len(counts) > 0 {
		path := filepath.Join(dir, TopPIDsFile)
		if err := saveBars(path, "Top 10 Processes by Event Count", "Process ID", "Event Count", counts, barPurple); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	for _, p := range written {
		logger.Infof("Saved chart: %s", p)
	}
	return written, nil
}

// EventTypeCounts counts events per type, most frequent first.
func EventTypeCounts(events []*models.UnifiedEvent) []Count {
	byType := lo.CountValuesBy(events, func(e *models.UnifiedEvent) string { return e.EventType })
	out := make([]Count, 0, len(byType))
	for label, n := range byType {
		out = append(out, Count{Label: label, Value: n})
	}
	sortCounts(out)
	return out
}

// TopProcesses returns the n processes with the most events.
func TopProcesses(events []*models.UnifiedEvent, n int) []Count {
	byPID := lo.CountValuesBy(events, func(e *models.UnifiedEvent) int64 { return e.ProcessID })
	out := make([]Count, 0, len(byPID))
	for pid, c := range byPID {
		out = append(out, Count{Label: strconv.FormatInt(pid, 10), Value: c})
	}
	sortCounts(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Point is one timeline bucket.
type Point struct {
	Start time.Time
	Count int
}

// Timeline buckets events by step, filling empty buckets between the first
// and the last event with zero.
func Timeline(events []*models.UnifiedEvent, step time.Duration) []Point {
	stamps := lo.FilterMap(events, func(e *models.UnifiedEvent, _ int) (time.Time, bool) {
		if e == nil || e.Timestamp.IsZero() {
			return time.Time{}, false
		}
		return e.Timestamp.Truncate(step), true
	})
	if len(stamps) == 0 {
		return nil
	}
	counts := lo.CountValues(stamps)
	first := lo.MinBy(stamps, func(a, b time.Time) bool { return a.Before(b) })
	last := lo.MaxBy(stamps, func(a, b time.Time) bool { return a.After(b) })

	var out []Point
	for t := first; !t.After(last); t = t.Add(step) {
		out = append(out, Point{Start: t, Count: counts[t]})
	}
	return out
}

func sortCounts(c []Count) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Value != c[j].Value {
			return c[i].Value > c[j].Value
		}
		return c[i].Label < c[j].Label
	})
}

func saveBars(path, title, xLabel, yLabel string, counts []Count, fill color.Color) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	values := make(plotter.Values, len(counts))
	labels := make([]string, len(counts))
	for i, c := range counts {
		values[i] = float64(c.Value)
		labels[i] = c.Label
	}
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("build bar chart: %w", err)
	}
	bars.Color = fill
	bars.LineStyle.Color = color.Black
	p.Add(bars)
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}

func saveTimeline(path string, points []Point) error {
	p := plot.New()
	p.Title.Text = "Event Volume Over Time"
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Event Count"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02 15:04"}

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(pt.Start.Unix())
		xys[i].Y = float64(pt.Count)
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("build timeline: %w", err)
	}
	line.Color = barBlue
	p.Add(line)

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}
