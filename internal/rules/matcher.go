package rules

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"threatlineage/pkg/models"
)

// Matcher picks the first catalog technique that fits an event summary.
type Matcher struct {
	entries []matchEntry
}

type matchEntry struct {
	technique   Technique
	name        string
	description string
	when        *vm.Program
}

// NewMatcher compiles the catalog. A catalog with a broken when expression is
// rejected.
func NewMatcher(cat *Catalog) (*Matcher, error) {
	if cat == nil {
		cat = DefaultCatalog()
	}
	m := &Matcher{entries: make([]matchEntry, 0, len(cat.Techniques))}
	for _, t := range cat.Techniques {
		entry := matchEntry{
			technique:   t,
			name:        strings.ToLower(strings.TrimSpace(t.Name)),
			description: descriptionKey(t.Description),
		}
		if src := strings.TrimSpace(t.When); src != "" {
			program, err := expr.Compile(src, expr.Env(matchEnv(nil)), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("compile when for %s: %w", t.ID, err)
			}
			entry.when = program
		}
		m.entries = append(m.entries, entry)
	}
	return m, nil
}

// Len returns the number of catalog entries.
func (m *Matcher) Len() int {
	return len(m.entries)
}

// Match returns the first technique whose keywords, name, description prefix
// or when expression fits the event, or models.UnknownTechnique.
func (m *Matcher) Match(event *models.UnifiedEvent) models.TechniqueMatch {
	if m == nil || event == nil {
		return models.UnknownTechnique
	}
	summary := strings.ToLower(event.Summary)
	var env map[string]interface{}

	for _, e := range m.entries {
		if e.matchesText(summary) {
			return e.result()
		}
		if e.when == nil {
			continue
		}
		if env == nil {
			env = matchEnv(event)
		}
		out, err := expr.Run(e.when, env)
		if err != nil {
			continue
		}
		if ok, _ := out.(bool); ok {
			return e.result()
		}
	}
	return models.UnknownTechnique
}

func (e matchEntry) matchesText(summary string) bool {
	if summary == "" {
		return false
	}
	for _, kw := range e.technique.Keywords {
		if kw != "" && strings.Contains(summary, kw) {
			return true
		}
	}
	if e.name != "" && strings.Contains(summary, e.name) {
		return true
	}
	return e.description != "" && strings.Contains(summary, e.description)
}

func (e matchEntry) result() models.TechniqueMatch {
	tactic := e.technique.Tactic
	if tactic == "" {
		tactic = "N/A"
	}
	return models.TechniqueMatch{
		Technique: e.technique.Name,
		ID:        e.technique.ID,
		Tactic:    tactic,
	}
}

func descriptionKey(desc string) string {
	desc = strings.ToLower(desc)
	if len(desc) > descriptionPrefix {
		r := []rune(desc)
		if len(r) > descriptionPrefix {
			desc = string(r[:descriptionPrefix])
		}
	}
	return strings.TrimSpace(desc)
}

func matchEnv(event *models.UnifiedEvent) map[string]interface{} {
	if event == nil {
		return map[string]interface{}{
			"event_type": "",
			"process_id": int64(0),
			"details":    "",
			"summary":    "",
			"fields":     map[string]string{},
		}
	}
	fields := event.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	return map[string]interface{}{
		"event_type": event.EventType,
		"process_id": event.ProcessID,
		"details":    event.Details,
		"summary":    event.Summary,
		"fields":     fields,
	}
}
