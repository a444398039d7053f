// Package eventscsv writes the unified event stream as CSV tables.
package eventscsv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"threatlineage/pkg/models"
)

// File names inside the data directory.
const (
	UnifiedFile  = "unified_events.csv"
	EnrichedFile = "unified_events_enriched.csv"
)

var (
	unifiedHeader  = []string{"timestamp", "process_id", "event_type", "event_details"}
	enrichedHeader = []string{"timestamp", "process_id", "event_type", "event_details", "llm_summary", "mitre_technique", "mitre_id", "mitre_tactic"}
)

// WriteUnified writes events without enrichment columns.
func WriteUnified(path string, events []*models.UnifiedEvent) error {
	return write(path, unifiedHeader, events, func(e *models.UnifiedEvent) []string {
		return baseRow(e)
	})
}

// WriteEnriched writes events with summary and technique columns.
func WriteEnriched(path string, events []*models.UnifiedEvent) error {
	return write(path, enrichedHeader, events, func(e *models.UnifiedEvent) []string {
		return append(baseRow(e), e.Summary, e.Technique.Technique, e.Technique.ID, e.Technique.Tactic)
	})
}

func baseRow(e *models.UnifiedEvent) []string {
	return []string{
		models.FormatTime(e.Timestamp),
		strconv.FormatInt(e.ProcessID, 10),
		e.EventType,
		e.Details,
	}
}

func write(path string, header []string, events []*models.UnifiedEvent, row func(*models.UnifiedEvent) []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	for _, e := range events {
		if e == nil {
			continue
		}
		if err := w.Write(row(e)); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
