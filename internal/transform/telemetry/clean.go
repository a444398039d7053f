package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"threatlineage/internal/logger"
	"threatlineage/pkg/models"
)

// Stream names used in stats, metrics and the quality report.
const (
	StreamProcess  = "process"
	StreamNetwork  = "network"
	StreamFile     = "file"
	StreamRegistry = "registry"
)

// Options controls the cleaning rules shared by all streams.
type Options struct {
	CorruptMarker string
	DriftWindow   time.Duration
	// Cleaned marks input written by a previous run. Duplicate removal and
	// the drift filter are skipped so saved rows load back one to one.
	Cleaned bool
}

// StreamStats counts what happened to the rows of one stream.
type StreamStats struct {
	Stream          string `json:"stream"`
	Read            int    `json:"read"`
	Duplicates      int    `json:"duplicates"`
	InvalidTime     int    `json:"invalid_time"`
	MissingRequired int    `json:"missing_required"`
	InvalidPID      int    `json:"invalid_pid"`
	InvertedTimes   int    `json:"inverted_times"`
	Drift           int    `json:"drift"`
	SelfParent      int    `json:"self_parent"`
	Kept            int    `json:"kept"`
}

// Dropped returns the number of rows removed for the given reason, keyed the
// way metrics label them.
func (s StreamStats) Dropped() map[string]int {
	return map[string]int{
		"duplicate":        s.Duplicates,
		"invalid_time":     s.InvalidTime,
		"missing_required": s.MissingRequired,
		"invalid_pid":      s.InvalidPID,
		"inverted_times":   s.InvertedTimes,
		"drift":            s.Drift,
		"self_parent":      s.SelfParent,
	}
}

// Tables holds the cleaned output of all four streams.
type Tables struct {
	Processes []models.ProcessRecord
	Network   []models.NetworkEvent
	Files     []models.FileEvent
	Registry  []models.RegistryEvent
}

// CleanStats holds per-stream statistics.
type CleanStats struct {
	Process  StreamStats `json:"process"`
	Network  StreamStats `json:"network"`
	File     StreamStats `json:"file"`
	Registry StreamStats `json:"registry"`
}

// All returns the stream stats in a fixed order.
func (c CleanStats) All() []StreamStats {
	return []StreamStats{c.Process, c.Network, c.File, c.Registry}
}

// Sources names the raw CSV files of one input directory.
type Sources struct {
	Dir          string
	ProcessFile  string
	NetworkFile  string
	FileFile     string
	RegistryFile string
}

// CleanDir reads and cleans all four raw streams from disk.
func CleanDir(src Sources, opts Options) (*Tables, CleanStats, error) {
	var out Tables
	var stats CleanStats

	err := withFile(filepath.Join(src.Dir, src.ProcessFile), func(r io.Reader) error {
		var err error
		out.Processes, stats.Process, err = CleanProcesses(r, opts)
		return err
	})
	if err != nil {
		return nil, stats, err
	}
	err = withFile(filepath.Join(src.Dir, src.NetworkFile), func(r io.Reader) error {
		var err error
		out.Network, stats.Network, err = CleanNetwork(r, opts)
		return err
	})
	if err != nil {
		return nil, stats, err
	}
	err = withFile(filepath.Join(src.Dir, src.FileFile), func(r io.Reader) error {
		var err error
		out.Files, stats.File, err = CleanFiles(r, opts)
		return err
	})
	if err != nil {
		return nil, stats, err
	}
	err = withFile(filepath.Join(src.Dir, src.RegistryFile), func(r io.Reader) error {
		var err error
		out.Registry, stats.Registry, err = CleanRegistry(r, opts)
		return err
	})
	if err != nil {
		return nil, stats, err
	}

	for _, s := range stats.All() {
		logger.Infof("Cleaned %s events: read=%d kept=%d duplicates=%d invalid_time=%d missing=%d invalid_pid=%d drift=%d",
			s.Stream, s.Read, s.Kept, s.Duplicates, s.InvalidTime, s.MissingRequired, s.InvalidPID, s.Drift)
	}
	return &out, stats, nil
}

func withFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("clean %s: %w", filepath.Base(path), err)
	}
	return nil
}

// CleanProcesses applies the process stream rules: start and end times are
// required, end may not precede start, start times are drift-filtered, and
// self-parented rows are removed.
func CleanProcesses(r io.Reader, opts Options) ([]models.ProcessRecord, StreamStats, error) {
	stats := StreamStats{Stream: StreamProcess}
	t, err := readTable(r)
	if err != nil {
		return nil, stats, err
	}
	if err := t.require("process_id", "parent_id", "executable_path", "user", "start_time", "end_time"); err != nil {
		return nil, stats, err
	}
	stats.Read = len(t.rows)
	if !opts.Cleaned {
		stats.Duplicates = t.dedupe()
	}
	c := cellReader{columns: t.columns, marker: opts.CorruptMarker}

	out := make([]models.ProcessRecord, 0, len(t.rows))
	for _, rec := range t.rows {
		start, okStart := c.timestamp(rec, "start_time")
		end, okEnd := c.timestamp(rec, "end_time")
		if !okStart || !okEnd {
			stats.InvalidTime++
			continue
		}
		if end.Before(start) {
			stats.InvertedTimes++
			continue
		}
		pid, okPID := c.pid(rec, "process_id")
		ppid, okPPID := c.pid(rec, "parent_id")
		if !okPID || !okPPID {
			stats.InvalidPID++
			continue
		}
		out = append(out, models.ProcessRecord{
			ProcessID:      pid,
			ParentID:       ppid,
			ExecutablePath: c.str(rec, "executable_path"),
			User:           c.str(rec, "user"),
			CommandLine:    c.str(rec, "command_line"),
			StartTime:      start,
			EndTime:        end,
		})
	}

	if !opts.Cleaned {
		out, stats.Drift = withinDrift(out, func(p models.ProcessRecord) time.Time { return p.StartTime }, opts.DriftWindow)
	}

	kept := out[:0]
	for _, p := range out {
		if p.ProcessID == p.ParentID {
			stats.SelfParent++
			continue
		}
		kept = append(kept, p)
	}
	stats.Kept = len(kept)
	return kept, stats, nil
}

// CleanNetwork applies the network stream rules. Rows without a source IP are
// retained as long as destination, user and timestamp are present.
func CleanNetwork(r io.Reader, opts Options) ([]models.NetworkEvent, StreamStats, error) {
	stats := StreamStats{Stream: StreamNetwork}
	t, err := readTable(r)
	if err != nil {
		return nil, stats, err
	}
	if err := t.require("process_id", "timestamp", "src_ip", "src_port", "dst_ip", "dst_port", "user"); err != nil {
		return nil, stats, err
	}
	stats.Read = len(t.rows)
	if !opts.Cleaned {
		stats.Duplicates = t.dedupe()
	}
	c := cellReader{columns: t.columns, marker: opts.CorruptMarker}

	out := make([]models.NetworkEvent, 0, len(t.rows))
	for _, rec := range t.rows {
		ts, ok := c.timestamp(rec, "timestamp")
		if !ok {
			stats.InvalidTime++
			continue
		}
		if !present(c, rec, "dst_ip", "user") {
			stats.MissingRequired++
			continue
		}
		pid, ok := c.pid(rec, "process_id")
		if !ok {
			stats.InvalidPID++
			continue
		}
		out = append(out, models.NetworkEvent{
			ProcessID: pid,
			Timestamp: ts,
			SrcIP:     c.str(rec, "src_ip"),
			SrcPort:   c.str(rec, "src_port"),
			DstIP:     c.str(rec, "dst_ip"),
			DstPort:   c.str(rec, "dst_port"),
			User:      c.str(rec, "user"),
		})
	}

	if !opts.Cleaned {
		out, stats.Drift = withinDrift(out, func(e models.NetworkEvent) time.Time { return e.Timestamp }, opts.DriftWindow)
	}
	stats.Kept = len(out)
	return out, stats, nil
}

// CleanFiles applies the file stream rules. Rows without an operation are retained.
func CleanFiles(r io.Reader, opts Options) ([]models.FileEvent, StreamStats, error) {
	stats := StreamStats{Stream: StreamFile}
	t, err := readTable(r)
	if err != nil {
		return nil, stats, err
	}
	if err := t.require("process_id", "timestamp", "operation", "file_path", "user"); err != nil {
		return nil, stats, err
	}
	stats.Read = len(t.rows)
	if !opts.Cleaned {
		stats.Duplicates = t.dedupe()
	}
	c := cellReader{columns: t.columns, marker: opts.CorruptMarker}

	out := make([]models.FileEvent, 0, len(t.rows))
	for _, rec := range t.rows {
		ts, ok := c.timestamp(rec, "timestamp")
		if !ok {
			stats.InvalidTime++
			continue
		}
		if !present(c, rec, "file_path", "user") {
			stats.MissingRequired++
			continue
		}
		pid, ok := c.pid(rec, "process_id")
		if !ok {
			stats.InvalidPID++
			continue
		}
		out = append(out, models.FileEvent{
			ProcessID: pid,
			Timestamp: ts,
			Operation: c.str(rec, "operation"),
			FilePath:  c.str(rec, "file_path"),
			User:      c.str(rec, "user"),
		})
	}

	if !opts.Cleaned {
		out, stats.Drift = withinDrift(out, func(e models.FileEvent) time.Time { return e.Timestamp }, opts.DriftWindow)
	}
	stats.Kept = len(out)
	return out, stats, nil
}

// CleanRegistry applies the registry stream rules. Value name and data stay
// sparse; no drift filter is applied to this stream.
func CleanRegistry(r io.Reader, opts Options) ([]models.RegistryEvent, StreamStats, error) {
	stats := StreamStats{Stream: StreamRegistry}
	t, err := readTable(r)
	if err != nil {
		return nil, stats, err
	}
	if err := t.require("process_id", "timestamp", "registry_key", "operation", "user"); err != nil {
		return nil, stats, err
	}
	stats.Read = len(t.rows)
	if !opts.Cleaned {
		stats.Duplicates = t.dedupe()
	}
	c := cellReader{columns: t.columns, marker: opts.CorruptMarker}

	out := make([]models.RegistryEvent, 0, len(t.rows))
	for _, rec := range t.rows {
		ts, ok := c.timestamp(rec, "timestamp")
		if !ok {
			stats.InvalidTime++
			continue
		}
		if !present(c, rec, "registry_key", "operation", "user") {
			stats.MissingRequired++
			continue
		}
		pid, ok := c.pid(rec, "process_id")
		if !ok {
			stats.InvalidPID++
			continue
		}
		out = append(out, models.RegistryEvent{
			ProcessID:   pid,
			Timestamp:   ts,
			RegistryKey: c.str(rec, "registry_key"),
			Operation:   c.str(rec, "operation"),
			ValueName:   c.optional(rec, "value_name"),
			ValueData:   c.optional(rec, "value_data"),
			User:        c.str(rec, "user"),
		})
	}
	stats.Kept = len(out)
	return out, stats, nil
}

func present(c cellReader, rec []string, names ...string) bool {
	for _, n := range names {
		v, ok := c.get(rec, n)
		if !ok || strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}
