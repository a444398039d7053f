package models

import "time"

// FileEvent is one cleaned row of the file table.
type FileEvent struct {
	ProcessID int64     `json:"process_id"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	FilePath  string    `json:"file_path"`
	User      string    `json:"user"`
}

// NetworkEvent is one cleaned row of the network table.
type NetworkEvent struct {
	ProcessID int64     `json:"process_id"`
	Timestamp time.Time `json:"timestamp"`
	SrcIP     string    `json:"src_ip"`
	SrcPort   string    `json:"src_port"`
	DstIP     string    `json:"dst_ip"`
	DstPort   string    `json:"dst_port"`
	User      string    `json:"user"`
}

// RegistryEvent is one cleaned row of the registry table.
// ValueName and ValueData are nil when the source cell was empty or corrupt.
type RegistryEvent struct {
	ProcessID   int64     `json:"process_id"`
	Timestamp   time.Time `json:"timestamp"`
	RegistryKey string    `json:"registry_key"`
	Operation   string    `json:"operation"`
	ValueName   *string   `json:"value_name,omitempty"`
	ValueData   *string   `json:"value_data,omitempty"`
	User        string    `json:"user"`
}
