package models

import "time"

// Unified event types.
const (
	EventProcessStart = "process_start"
	EventNetwork      = "network"
	EventFile         = "file"
	EventRegistry     = "registry"
)

// UnifiedEvent is one entry of the merged, time-ordered event stream.
type UnifiedEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	ProcessID int64             `json:"process_id"`
	EventType string            `json:"event_type"`
	Details   string            `json:"event_details"`
	Fields    map[string]string `json:"fields,omitempty"`

	Summary   string         `json:"llm_summary,omitempty"`
	Technique TechniqueMatch `json:"mitre"`
	SigmaTags []TechniqueTag `json:"sigma_tags,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
}

// Field returns a structured field value or an empty string.
func (e *UnifiedEvent) Field(name string) string {
	if e == nil || e.Fields == nil {
		return ""
	}
	return e.Fields[name]
}
