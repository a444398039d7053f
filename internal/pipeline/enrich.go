package pipeline

import (
	"context"
	"sync"

	"threatlineage/internal/logger"
	"threatlineage/internal/metrics"
	"threatlineage/internal/rules"
	"threatlineage/internal/summarizer"
	"threatlineage/pkg/models"
)

// TechniqueMatcher maps an event summary to a catalog technique.
type TechniqueMatcher interface {
	Match(event *models.UnifiedEvent) models.TechniqueMatch
}

// Enricher summarizes, technique-matches and rule-tags events with a pool of
// workers. Events are enriched in place, so the stream order is unchanged.
type Enricher struct {
	summarizer summarizer.Summarizer
	matcher    TechniqueMatcher
	engine     rules.Engine
	metrics    *metrics.Metrics
	workers    int
	runID      string
}

type enrichResult struct {
	failed  bool
	matched bool
	tags    int
}

// NewEnricher creates an enricher. Any of s, m and engine may be nil to skip
// that step.
func NewEnricher(s summarizer.Summarizer, m TechniqueMatcher, engine rules.Engine, met *metrics.Metrics, workers int, runID string) *Enricher {
	return &Enricher{
		summarizer: s,
		matcher:    m,
		engine:     engine,
		metrics:    met,
		workers:    workers,
		runID:      runID,
	}
}

// Run enriches all events. It returns the context error if cancelled; events
// not reached by then keep empty summaries.
func (p *Enricher) Run(ctx context.Context, events []*models.UnifiedEvent) error {
	if len(events) == 0 {
		return nil
	}
	workers := p.workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(events) {
		workers = len(events)
	}
	logger.Infof("Enriching %d events with %d workers", len(events), workers)

	idxCh := make(chan int, workers*4)
	doneCh := make(chan enrichResult, workers*4)

	go func() {
		defer close(idxCh)
		p.feedLoop(ctx, len(events), idxCh)
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx, events, idxCh, doneCh)
		}()
	}
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	p.collectLoop(len(events), doneCh)
	return ctx.Err()
}

func (p *Enricher) feedLoop(ctx context.Context, n int, out chan<- int) {
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return
		case out <- i:
		}
	}
}

func (p *Enricher) workerLoop(ctx context.Context, events []*models.UnifiedEvent, in <-chan int, out chan<- enrichResult) {
	for idx := range in {
		out <- p.enrich(ctx, events[idx])
	}
}

func (p *Enricher) collectLoop(total int, in <-chan enrichResult) {
	var done, failed, matched, tags int
	for res := range in {
		done++
		if res.failed {
			failed++
		}
		if res.matched {
			matched++
		}
		tags += res.tags
		if done%100 == 0 {
			logger.Debugf("Enriched %d/%d events", done, total)
		}
	}
	logger.Infof("Enrichment finished: events=%d summary_errors=%d technique_matches=%d sigma_tags=%d", done, failed, matched, tags)
}

func (p *Enricher) enrich(ctx context.Context, ev *models.UnifiedEvent) enrichResult {
	var res enrichResult
	if ev == nil {
		return res
	}
	ev.RunID = p.runID

	if p.summarizer != nil {
		summary, err := p.summarizer.Summarize(ctx, ev.Details)
		if err != nil {
			logger.Warnf("Summary failed for pid %d (%s): %v", ev.ProcessID, ev.EventType, err)
			ev.Summary = summarizer.ErrorSummary(err)
			res.failed = true
		} else {
			ev.Summary = summary
		}
		if p.metrics != nil {
			outcome := "ok"
			if res.failed {
				outcome = "error"
			}
			p.metrics.Summaries.WithLabelValues(outcome).Inc()
		}
	}

	ev.Technique = models.UnknownTechnique
	if p.matcher != nil {
		ev.Technique = p.matcher.Match(ev)
	}
	res.matched = ev.Technique.Matched()

	if p.engine != nil {
		ev.SigmaTags = p.engine.Apply(ev)
		res.tags = len(ev.SigmaTags)
	}

	if p.metrics != nil {
		p.metrics.TechniqueMatches.WithLabelValues(ev.Technique.ID).Inc()
		p.metrics.SigmaHits.Add(float64(res.tags))
	}
	return res
}
