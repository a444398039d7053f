package telemetry

import (
	"strings"
	"time"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05.000000000",
	"2006-01-02 15:04:05.0000000",
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
}

// ParseTimestamp parses the timestamp formats seen in exported telemetry.
// Values without a zone are read as UTC.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

func (c cellReader) timestamp(rec []string, name string) (time.Time, bool) {
	v, ok := c.get(rec, name)
	if !ok {
		return time.Time{}, false
	}
	return ParseTimestamp(v)
}

// withinDrift keeps entries no further than window after the earliest one.
func withinDrift[T any](rows []T, ts func(T) time.Time, window time.Duration) ([]T, int) {
	if window <= 0 || len(rows) == 0 {
		return rows, 0
	}
	min := ts(rows[0])
	for _, r := range rows[1:] {
		if t := ts(r); t.Before(min) {
			min = t
		}
	}
	out := rows[:0]
	dropped := 0
	for _, r := range rows {
		if ts(r).Sub(min) > window {
			dropped++
			continue
		}
		out = append(out, r)
	}
	return out, dropped
}
