package analyzer

import (
	"strings"

	"threatlineage/pkg/models"
)

// EventSource looks up the activity recorded for one process id. Rows are
// returned in table order.
type EventSource interface {
	FilesFor(pid int64) []models.FileEvent
	NetworkFor(pid int64) []models.NetworkEvent
	RegistryFor(pid int64) []models.RegistryEvent
}

// EventsFor formats every file, network and registry event of pid, grouped by
// kind in that order. It returns nil when the process has no recorded activity.
func EventsFor(pid int64, src EventSource) []string {
	if src == nil {
		return nil
	}
	var out []string
	for _, e := range src.FilesFor(pid) {
		out = append(out, FormatFileEvent(e))
	}
	for _, e := range src.NetworkFor(pid) {
		out = append(out, FormatNetworkEvent(e))
	}
	for _, e := range src.RegistryFor(pid) {
		out = append(out, FormatRegistryEvent(e))
	}
	return out
}

// FormatFileEvent renders a file event line.
func FormatFileEvent(e models.FileEvent) string {
	return "File Event: " + models.FormatTime(e.Timestamp) +
		" | Operation: " + e.Operation +
		" | Path: " + e.FilePath
}

// FormatNetworkEvent renders a network event line.
func FormatNetworkEvent(e models.NetworkEvent) string {
	return "Network Event: " + models.FormatTime(e.Timestamp) +
		" | SrcIP: " + e.SrcIP + ":" + e.SrcPort +
		" → DstIP: " + e.DstIP + ":" + e.DstPort
}

// FormatRegistryEvent renders a registry event line. The value segment is
// present only when the value name is set.
func FormatRegistryEvent(e models.RegistryEvent) string {
	var b strings.Builder
	b.WriteString("Registry Event: ")
	b.WriteString(models.FormatTime(e.Timestamp))
	b.WriteString(" | Operation: ")
	b.WriteString(e.Operation)
	b.WriteString(" | Key: ")
	b.WriteString(e.RegistryKey)
	if e.ValueName != nil {
		b.WriteString(" | Value: ")
		b.WriteString(*e.ValueName)
		b.WriteString(" = ")
		if e.ValueData != nil {
			b.WriteString(*e.ValueData)
		}
	}
	return b.String()
}
