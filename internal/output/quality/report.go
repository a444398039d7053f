// Package quality writes the data quality report that documents the cleaning
// rules and what they removed in this run.
package quality

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"threatlineage/internal/analyzer"
	"threatlineage/internal/transform/telemetry"
)

// FileName is the report file name inside the reports directory.
const FileName = "errors.md"

// Report is the data rendered into the template.
type Report struct {
	RunID   string
	Marker  string
	Drift   string
	Clean   telemetry.CleanStats
	Lineage analyzer.TreeStats
	Roots   []int64
}

var reportTemplate = template.Must(template.New("errors").Funcs(template.FuncMap{
	"pids": joinPIDs,
}).Parse(`# Data Quality Issues and Resolutions

This report documents the anomalies encountered during the cleaning and normalization process.
{{- if .RunID}}

Run: ` + "`{{.RunID}}`" + `
{{- end}}

---

## Common Fixes Applied Across All Datasets

- Duplicate Entries: exact duplicate rows removed, first occurrence kept.
- Corrupted Data: ` + "`{{.Marker}}`" + ` markers read as missing values and dropped where the field is required.
- Missing Timestamps: rows whose key datetime fields could not be parsed or were missing were dropped.
- Time Drift: events more than {{.Drift}} beyond the earliest timestamp removed (process, network, file).
- Whitespace: trimmed from all string fields.

| Stream | Read | Duplicates | Invalid time | Missing required | Invalid pid | Inverted times | Drift | Self-parent | Kept |
|---|---|---|---|---|---|---|---|---|---|
{{- range .Clean.All}}
| {{.Stream}} | {{.Read}} | {{.Duplicates}} | {{.InvalidTime}} | {{.MissingRequired}} | {{.InvalidPID}} | {{.InvertedTimes}} | {{.Drift}} | {{.SelfParent}} | {{.Kept}} |
{{- end}}

---

## Process Events
- Dropped inverted or corrupt timestamps
- Removed self-referential rows
- Cycle-safe DFS to prevent infinite loops: {{.Lineage.Cycles}} cycle(s) and {{.Lineage.Unknown}} unknown process(es) reported for root(s) {{pids .Roots}}

## Network Events
- Retained rows with missing ` + "`src_ip`" + ` if ` + "`dst_ip`" + ` and ` + "`user`" + ` present
- Dropped rows missing ` + "`dst_ip`" + `, ` + "`user`" + `, or ` + "`timestamp`" + `

## File Events
- Retained rows with missing ` + "`operation`" + `
- Cleaned timestamps and file path strings

## Registry Events
- Retained sparse ` + "`value_name`" + ` and ` + "`value_data`" + `
- Cleaned ` + "`registry_key`" + `, ` + "`operation`" + `, and ` + "`user`" + ` fields

---

## Summary

All datasets were cleaned and normalized using consistent rules. Anomalies are dropped or reported, never fatal.
`))

// Write renders the report to path.
func Write(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create reports dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create quality report: %w", err)
	}
	if err := reportTemplate.Execute(f, r); err != nil {
		f.Close()
		return fmt.Errorf("render quality report: %w", err)
	}
	return f.Close()
}

func joinPIDs(pids []int64) string {
	if len(pids) == 0 {
		return "(none)"
	}
	parts := make([]string, len(pids))
	for i, p := range pids {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ", ")
}
