package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"threatlineage/internal/logger"
	"threatlineage/pkg/models"
)

var attackTechniqueTag = regexp.MustCompile(`^t\d{4}(?:\.\d{3})?$`)

// RuleLoadStats counts rule files by load outcome.
type RuleLoadStats struct {
	Files       int
	Loaded      int
	Invalid     int
	OtherSource int
	Unsupported int
}

// categoryEventTypes maps Sigma logsource categories onto unified event types.
var categoryEventTypes = map[string]string{
	"process_creation":   models.EventProcessStart,
	"network_connection": models.EventNetwork,
	"file_event":         models.EventFile,
	"file_access":        models.EventFile,
	"file_change":        models.EventFile,
	"file_delete":        models.EventFile,
	"file_rename":        models.EventFile,
	"registry_event":     models.EventRegistry,
	"registry_add":       models.EventRegistry,
	"registry_set":       models.EventRegistry,
	"registry_delete":    models.EventRegistry,
	"registry_rename":    models.EventRegistry,
}

type streamRule struct {
	file      string
	eval      *sigmaevaluator.RuleEvaluator
	tag       models.TechniqueTag
	eventType string
}

// SigmaEngine tags unified events with the Sigma rules whose logsource
// category maps to the event's stream.
type SigmaEngine struct {
	rules []streamRule
}

// NewSigmaEngine loads rules from a .yml/.yaml file or a directory tree.
// Rules for other data sources, or using features a single event cannot
// satisfy, are skipped and counted.
func NewSigmaEngine(path string) (*SigmaEngine, RuleLoadStats, error) {
	var stats RuleLoadStats
	files, err := ruleFiles(path)
	if err != nil {
		return nil, stats, err
	}
	stats.Files = len(files)

	engine := &SigmaEngine{}
	for _, file := range files {
		rule, err := readRule(file)
		if err != nil {
			logger.Debugf("Skipping Sigma rule %s: %v", file, err)
			stats.Invalid++
			continue
		}
		eventType, ok := streamFor(rule.Logsource.Product, rule.Logsource.Category)
		if !ok {
			logger.Debugf("Skipping Sigma rule %s: logsource %s/%s has no telemetry stream", file, rule.Logsource.Product, rule.Logsource.Category)
			stats.OtherSource++
			continue
		}
		if reason := unsupported(rule); reason != "" {
			logger.Debugf("Skipping Sigma rule %s: %s", file, reason)
			stats.Unsupported++
			continue
		}
		engine.rules = append(engine.rules, streamRule{
			file:      file,
			eval:      sigmaevaluator.ForRule(rule),
			tag:       tagFromRule(rule),
			eventType: eventType,
		})
		stats.Loaded++
	}
	return engine, stats, nil
}

// Len returns the number of loaded rules.
func (e *SigmaEngine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Apply returns the tags of every rule for the event's stream that matches it.
func (e *SigmaEngine) Apply(event *models.UnifiedEvent) []models.TechniqueTag {
	if e.Len() == 0 || event == nil {
		return nil
	}

	var fields map[string]interface{}
	var out []models.TechniqueTag
	for _, r := range e.rules {
		if r.eventType != event.EventType {
			continue
		}
		if fields == nil {
			fields = sigmaEventFrom(event)
		}
		res, err := r.eval.Matches(context.Background(), fields)
		if err != nil {
			logger.Debugf("Sigma rule %s failed on pid %d: %v", r.file, event.ProcessID, err)
			continue
		}
		if res.Match {
			out = append(out, r.tag)
		}
	}
	return out
}

func ruleFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat rule path: %w", err)
	}
	if !info.IsDir() {
		if !isYAMLFile(path) {
			return nil, fmt.Errorf("rule file must end with .yml or .yaml: %s", path)
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isYAMLFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory: %w", err)
	}
	return files, nil
}

func isYAMLFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

func readRule(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, err
	}
	return sigma.ParseRule(raw)
}

// streamFor maps a rule logsource onto the one unified event type it can see.
// Telemetry is Windows endpoint data, so other products never match.
func streamFor(product, category string) (string, bool) {
	product = strings.ToLower(strings.TrimSpace(product))
	if product != "" && product != "windows" {
		return "", false
	}
	eventType, ok := categoryEventTypes[strings.ToLower(strings.TrimSpace(category))]
	return eventType, ok
}

// unsupported names the first detection feature that needs more than one
// event's fields, or "" when the rule can be evaluated per event.
func unsupported(rule sigma.Rule) string {
	if rule.Detection.Timeframe > 0 {
		return "timeframe"
	}
	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return "aggregation"
		}
		if !plainSearch(cond.Search) {
			return "condition expression"
		}
	}
	for name, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return "keyword search " + name
		}
		if len(search.EventMatchers) == 0 {
			return "empty search " + name
		}
	}
	return ""
}

func plainSearch(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.Not:
		return plainSearch(e.Expr)
	case sigma.And:
		return allPlain(e)
	case sigma.Or:
		return allPlain(e)
	}
	return false
}

func allPlain(exprs []sigma.SearchExpr) bool {
	for _, e := range exprs {
		if !plainSearch(e) {
			return false
		}
	}
	return true
}

func sigmaEventFrom(event *models.UnifiedEvent) map[string]interface{} {
	buf := make(map[string]interface{}, len(event.Fields)+4)
	for k, v := range event.Fields {
		buf[k] = v
	}
	buf["EventType"] = event.EventType
	buf["event_type"] = event.EventType
	buf["Details"] = event.Details
	if _, ok := buf["ProcessId"]; !ok {
		buf["ProcessId"] = strconv.FormatInt(event.ProcessID, 10)
	}
	return buf
}

// tagFromRule builds the tag for a rule. attack.tNNNN[.NNN] becomes the
// technique (TNNNN/NNN); the first other attack.* tag is the tactic.
func tagFromRule(rule sigma.Rule) models.TechniqueTag {
	tag := models.TechniqueTag{
		ID:       strings.TrimSpace(rule.ID),
		Name:     strings.TrimSpace(rule.Title),
		Severity: strings.ToLower(strings.TrimSpace(rule.Level)),
	}
	if tag.ID == "" {
		tag.ID = tag.Name
	}
	if tag.Severity == "" {
		tag.Severity = "medium"
	}

	for _, raw := range rule.Tags {
		name, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(raw)), "attack.")
		if !ok {
			continue
		}
		switch {
		case attackTechniqueTag.MatchString(name):
			if tag.Technique == "" {
				tag.Technique = strings.ToUpper(strings.ReplaceAll(name, ".", "/"))
			}
		case tag.Tactic == "":
			tag.Tactic = strings.ReplaceAll(name, "_", "-")
		}
	}
	return tag
}
