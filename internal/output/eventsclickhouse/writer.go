package eventsclickhouse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"threatlineage/pkg/models"
)

// Config configures the ClickHouse HTTP writer.
type Config struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// Writer sends enriched events to ClickHouse via HTTP JSONEachRow.
type Writer struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// NewWriter creates a ClickHouse HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "enriched_events"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	q := fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", quoteIdent(cfg.Database), quoteIdent(cfg.Table))
	base := strings.TrimRight(cfg.URL, "/")
	endpoint := base + "/?query=" + url.QueryEscape(q)

	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	return &Writer{
		endpoint: endpoint,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// row is the flat table layout of one enriched event.
type row struct {
	Timestamp      string   `json:"timestamp"`
	ProcessID      int64    `json:"process_id"`
	EventType      string   `json:"event_type"`
	EventDetails   string   `json:"event_details"`
	LLMSummary     string   `json:"llm_summary"`
	MitreTechnique string   `json:"mitre_technique"`
	MitreID        string   `json:"mitre_id"`
	MitreTactic    string   `json:"mitre_tactic"`
	SigmaRules     []string `json:"sigma_rules"`
	RunID          string   `json:"run_id"`
}

func rowFrom(event *models.UnifiedEvent) row {
	rules := make([]string, 0, len(event.SigmaTags))
	for _, tag := range event.SigmaTags {
		rules = append(rules, tag.ID)
	}
	return row{
		Timestamp:      event.Timestamp.UTC().Format("2006-01-02 15:04:05.000"),
		ProcessID:      event.ProcessID,
		EventType:      event.EventType,
		EventDetails:   event.Details,
		LLMSummary:     event.Summary,
		MitreTechnique: event.Technique.Technique,
		MitreID:        event.Technique.ID,
		MitreTactic:    event.Technique.Tactic,
		SigmaRules:     rules,
		RunID:          event.RunID,
	}
}

// WriteEvents sends a batch of enriched events.
func (w *Writer) WriteEvents(events []*models.UnifiedEvent) error {
	if len(events) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, event := range events {
		if event == nil {
			continue
		}
		if err := enc.Encode(rowFrom(event)); err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
	}

	req, err := http.NewRequest(http.MethodPost, w.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("clickhouse request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clickhouse request failed with status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Close releases resources.
func (w *Writer) Close() error {
	return nil
}

func quoteIdent(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}
