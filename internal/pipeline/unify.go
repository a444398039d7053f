package pipeline

import (
	"sort"
	"strconv"
	"strings"

	"threatlineage/internal/store"
	"threatlineage/pkg/models"
)

// UnifyEventStream merges the four cleaned tables into one stream ordered by
// timestamp. Events with equal timestamps keep table order: processes, then
// network, file and registry rows.
func UnifyEventStream(s *store.Tables) []*models.UnifiedEvent {
	if s == nil {
		return nil
	}
	out := make([]*models.UnifiedEvent, 0, len(s.Processes)+len(s.Network)+len(s.Files)+len(s.Registry))

	for _, p := range s.Processes {
		out = append(out, &models.UnifiedEvent{
			Timestamp: p.StartTime,
			ProcessID: p.ProcessID,
			EventType: models.EventProcessStart,
			Details:   "Executable: " + p.ExecutablePath + " | User: " + p.User,
			Fields: map[string]string{
				"Image":           p.ExecutablePath,
				"User":            p.User,
				"CommandLine":     p.CommandLine,
				"ProcessId":       pidString(p.ProcessID),
				"ParentProcessId": pidString(p.ParentID),
			},
		})
	}

	for _, e := range s.Network {
		out = append(out, &models.UnifiedEvent{
			Timestamp: e.Timestamp,
			ProcessID: e.ProcessID,
			EventType: models.EventNetwork,
			Details: "SrcIP: " + e.SrcIP + ":" + e.SrcPort +
				" → DstIP: " + e.DstIP + ":" + e.DstPort +
				" | User: " + e.User,
			Fields: map[string]string{
				"SourceIp":        e.SrcIP,
				"SourcePort":      e.SrcPort,
				"DestinationIp":   e.DstIP,
				"DestinationPort": e.DstPort,
				"User":            e.User,
				"ProcessId":       pidString(e.ProcessID),
			},
		})
	}

	for _, e := range s.Files {
		out = append(out, &models.UnifiedEvent{
			Timestamp: e.Timestamp,
			ProcessID: e.ProcessID,
			EventType: models.EventFile,
			Details:   "Operation: " + e.Operation + " | File: " + e.FilePath + " | User: " + e.User,
			Fields: map[string]string{
				"TargetFilename": e.FilePath,
				"Operation":      e.Operation,
				"User":           e.User,
				"ProcessId":      pidString(e.ProcessID),
			},
		})
	}

	for _, e := range s.Registry {
		fields := map[string]string{
			"TargetObject": e.RegistryKey,
			"EventType":    e.Operation,
			"Operation":    e.Operation,
			"User":         e.User,
			"ProcessId":    pidString(e.ProcessID),
		}
		var b strings.Builder
		b.WriteString("Operation: " + e.Operation + " | Key: " + e.RegistryKey)
		if e.ValueName != nil {
			data := ""
			if e.ValueData != nil {
				data = *e.ValueData
			}
			b.WriteString(" | Value: " + *e.ValueName + " = " + data)
			fields["ValueName"] = *e.ValueName
			fields["Details"] = data
		}
		b.WriteString(" | User: " + e.User)
		out = append(out, &models.UnifiedEvent{
			Timestamp: e.Timestamp,
			ProcessID: e.ProcessID,
			EventType: models.EventRegistry,
			Details:   b.String(),
			Fields:    fields,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Head returns at most n events from the start of the stream.
func Head(events []*models.UnifiedEvent, n int) []*models.UnifiedEvent {
	if n < 0 || len(events) <= n {
		return events
	}
	return events[:n]
}

func pidString(pid int64) string {
	return strconv.FormatInt(pid, 10)
}
