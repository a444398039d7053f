package models

import "time"

// ProcessRecord is one cleaned row of the process table.
type ProcessRecord struct {
	ProcessID      int64     `json:"process_id"`
	ParentID       int64     `json:"parent_id"`
	ExecutablePath string    `json:"executable_path"`
	User           string    `json:"user"`
	CommandLine    string    `json:"command_line,omitempty"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
}
