package models

import "time"

// TimeLayout is used wherever a timestamp is rendered as text. Fractional
// seconds are printed only when present.
const TimeLayout = "2006-01-02 15:04:05.999999999"

// FormatTime renders t with TimeLayout.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
