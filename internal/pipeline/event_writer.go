package pipeline

import "threatlineage/pkg/models"

// EventWriter writes enriched events to a sink.
type EventWriter interface {
	WriteEvents(events []*models.UnifiedEvent) error
	Close() error
}
