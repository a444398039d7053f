package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// naTokens are cell values read as null, mirroring common CSV exporters.
var naTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-nan": {},
	"NULL": {}, "null": {}, "None": {}, "<NA>": {}, "#N/A": {},
}

type table struct {
	columns map[string]int
	rows    [][]string
}

func readTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &table{columns: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.columns[name] = i
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func (t *table) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := t.columns[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// dedupe drops exact duplicate raw rows, keeping the first occurrence.
func (t *table) dedupe() int {
	seen := make(map[string]struct{}, len(t.rows))
	out := t.rows[:0]
	dropped := 0
	for _, rec := range t.rows {
		key := strings.Join(rec, "\x1f")
		if _, ok := seen[key]; ok {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	t.rows = out
	return dropped
}

// cellReader resolves cells by column name, turning corrupt markers and
// NA tokens into nulls.
type cellReader struct {
	columns map[string]int
	marker  string
}

func (c cellReader) get(rec []string, name string) (string, bool) {
	idx, ok := c.columns[name]
	if !ok || idx >= len(rec) {
		return "", false
	}
	v := rec[idx]
	if c.marker != "" && v == c.marker {
		return "", false
	}
	if _, na := naTokens[v]; na {
		return "", false
	}
	return v, true
}

func (c cellReader) str(rec []string, name string) string {
	v, _ := c.get(rec, name)
	return strings.TrimSpace(v)
}

func (c cellReader) optional(rec []string, name string) *string {
	v, ok := c.get(rec, name)
	if !ok {
		return nil
	}
	return &v
}

func (c cellReader) pid(rec []string, name string) (int64, bool) {
	v, ok := c.get(rec, name)
	if !ok {
		return 0, false
	}
	return parsePID(v)
}

func parsePID(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}
