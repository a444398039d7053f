package summarizer

import (
	"context"
	"strings"
)

// Offline builds a summary from the event details without calling a model.
// Output depends only on the input.
type Offline struct{}

var interpreterNames = []string{"powershell", "cmd.exe", "bash", "wscript", "cscript", "pwsh", "python"}

// Summarize describes the event in one or two sentences.
func (Offline) Summarize(_ context.Context, details string) (string, error) {
	parts := detailFields(details)
	lower := strings.ToLower(details)

	var b strings.Builder
	switch {
	case parts["Executable"] != "":
		b.WriteString("Process started from " + parts["Executable"] + " by user " + parts["User"] + ".")
		for _, name := range interpreterNames {
			if strings.Contains(lower, name) {
				b.WriteString(" A command or script interpreter was launched.")
				break
			}
		}
	case parts["SrcIP"] != "" || strings.Contains(details, "DstIP:"):
		b.WriteString("Network connection " + strings.TrimSpace(details) + ".")
	case parts["File"] != "":
		b.WriteString("File " + orUnknown(parts["Operation"]) + " on " + parts["File"] + " by user " + parts["User"] + ".")
	case parts["Key"] != "":
		b.WriteString("Registry " + orUnknown(parts["Operation"]) + " on key " + parts["Key"] + " by user " + parts["User"] + ".")
		if strings.Contains(lower, `\currentversion\run`) {
			b.WriteString(" Writes to a run key indicate autostart persistence.")
		}
	default:
		b.WriteString("Event observed: " + strings.TrimSpace(details) + ".")
	}
	return b.String(), nil
}

// detailFields splits "Name: value | Name: value" details into a map.
func detailFields(details string) map[string]string {
	out := make(map[string]string)
	for _, seg := range strings.Split(details, "|") {
		name, value, ok := strings.Cut(seg, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if _, seen := out[name]; seen {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

func orUnknown(s string) string {
	if s == "" || s == "nan" {
		return "activity"
	}
	return s
}
