package models

import "time"

// Alert summarizes suspicious activity attributed to one process.
type Alert struct {
	AlertID     string         `json:"alert_id"`
	RunID       string         `json:"run_id,omitempty"`
	ProcessID   int64          `json:"process_id"`
	Score       int            `json:"score"`
	WindowStart time.Time      `json:"window_start"`
	WindowEnd   time.Time      `json:"window_end"`
	Techniques  []string       `json:"techniques,omitempty"`
	Tags        []TechniqueTag `json:"sigma_tags,omitempty"`
	Counts      AlertCounts    `json:"counts"`
}

// AlertCounts summarizes signal density.
type AlertCounts struct {
	Events            int `json:"events"`
	MatchedEvents     int `json:"matched_events"`
	DistinctTechnique int `json:"distinct_techniques"`
	SigmaHits         int `json:"sigma_hits"`
}
