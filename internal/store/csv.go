package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"threatlineage/internal/transform/telemetry"
	"threatlineage/pkg/models"
)

// Cleaned table file names inside the data directory.
const (
	ProcessFile  = "cleaned_process_events.csv"
	NetworkFile  = "cleaned_network_events.csv"
	FileFile     = "cleaned_file_events.csv"
	RegistryFile = "cleaned_registry_events.csv"
)

// Save writes the cleaned tables to dir.
func Save(dir string, s *Tables) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	procRows := make([][]string, 0, len(s.Processes))
	for _, p := range s.Processes {
		procRows = append(procRows, []string{
			itoa(p.ProcessID), itoa(p.ParentID), p.ExecutablePath, p.User, p.CommandLine,
			models.FormatTime(p.StartTime), models.FormatTime(p.EndTime),
		})
	}
	netRows := make([][]string, 0, len(s.Network))
	for _, e := range s.Network {
		netRows = append(netRows, []string{
			itoa(e.ProcessID), models.FormatTime(e.Timestamp), e.SrcIP, e.SrcPort, e.DstIP, e.DstPort, e.User,
		})
	}
	fileRows := make([][]string, 0, len(s.Files))
	for _, e := range s.Files {
		fileRows = append(fileRows, []string{
			itoa(e.ProcessID), models.FormatTime(e.Timestamp), e.Operation, e.FilePath, e.User,
		})
	}
	regRows := make([][]string, 0, len(s.Registry))
	for _, e := range s.Registry {
		regRows = append(regRows, []string{
			itoa(e.ProcessID), models.FormatTime(e.Timestamp), e.RegistryKey, e.Operation,
			deref(e.ValueName), deref(e.ValueData), e.User,
		})
	}

	files := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{ProcessFile, []string{"process_id", "parent_id", "executable_path", "user", "command_line", "start_time", "end_time"}, procRows},
		{NetworkFile, []string{"process_id", "timestamp", "src_ip", "src_port", "dst_ip", "dst_port", "user"}, netRows},
		{FileFile, []string{"process_id", "timestamp", "operation", "file_path", "user"}, fileRows},
		{RegistryFile, []string{"process_id", "timestamp", "registry_key", "operation", "value_name", "value_data", "user"}, regRows},
	}
	for _, f := range files {
		if err := writeCSV(filepath.Join(dir, f.name), f.header, f.rows); err != nil {
			return err
		}
	}
	return nil
}

// Load reads tables written by Save. Rows are parsed with the cleaning rules
// but duplicates and drifted rows are kept, so every saved row comes back.
func Load(dir string, opts telemetry.Options) (*Tables, error) {
	opts.Cleaned = true
	tables, _, err := telemetry.CleanDir(telemetry.Sources{
		Dir:          dir,
		ProcessFile:  ProcessFile,
		NetworkFile:  NetworkFile,
		FileFile:     FileFile,
		RegistryFile: RegistryFile,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("load cleaned tables: %w", err)
	}
	return New(tables), nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
