package alerts

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"threatlineage/pkg/models"
)

// catalogWeight scores an event matched by the technique catalog as a
// medium-severity signal.
const catalogWeight = 3

// Config controls alert scoring behavior.
type Config struct {
	Threshold int
	MaxTags   int
}

// Scorer aggregates enriched events per process and emits an alert for every
// process whose score reaches the threshold.
type Scorer struct {
	mu    sync.Mutex
	cfg   Config
	byPID map[int64]*processState
	order []int64
	newID func() string
}

type processState struct {
	events     int
	matched    int
	sigmaHits  int
	severity   int
	techniques map[string]struct{}
	ordered    []string
	tags       []models.TechniqueTag
	first      time.Time
	last       time.Time
}

// NewScorer creates a new scorer.
func NewScorer(cfg Config) *Scorer {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 8
	}
	if cfg.MaxTags <= 0 {
		cfg.MaxTags = 50
	}
	return &Scorer{
		cfg:   cfg,
		byPID: make(map[int64]*processState),
		newID: uuid.NewString,
	}
}

// Add ingests enriched events.
func (s *Scorer) Add(events []*models.UnifiedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		if ev == nil {
			continue
		}
		state := s.byPID[ev.ProcessID]
		if state == nil {
			state = &processState{techniques: make(map[string]struct{})}
			s.byPID[ev.ProcessID] = state
			s.order = append(s.order, ev.ProcessID)
		}
		state.events++

		signal := false
		if ev.Technique.Matched() {
			state.matched++
			state.severity += catalogWeight
			state.addTechnique(ev.Technique.ID)
			signal = true
		}
		for _, tag := range ev.SigmaTags {
			state.sigmaHits++
			state.severity += severityWeight(tag.Severity)
			key := tag.Technique
			if key == "" {
				key = tag.ID
			}
			if key == "" {
				key = tag.Name
			}
			state.addTechnique(key)
			if len(state.tags) < s.cfg.MaxTags {
				state.tags = append(state.tags, tag)
			}
			signal = true
		}
		if !signal {
			continue
		}
		if state.first.IsZero() || ev.Timestamp.Before(state.first) {
			state.first = ev.Timestamp
		}
		if ev.Timestamp.After(state.last) {
			state.last = ev.Timestamp
		}
	}
}

func (p *processState) addTechnique(key string) {
	if key == "" {
		return
	}
	if _, ok := p.techniques[key]; ok {
		return
	}
	p.techniques[key] = struct{}{}
	p.ordered = append(p.ordered, key)
}

func (p *processState) score() int {
	return p.severity + 2*len(p.techniques)
}

// Alerts returns alerts for processes at or above the threshold, highest
// score first, ties by process id.
func (s *Scorer) Alerts(runID string) []*models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Alert
	for _, pid := range s.order {
		state := s.byPID[pid]
		score := state.score()
		if score < s.cfg.Threshold {
			continue
		}
		out = append(out, &models.Alert{
			AlertID:     s.newID(),
			RunID:       runID,
			ProcessID:   pid,
			Score:       score,
			WindowStart: state.first,
			WindowEnd:   state.last,
			Techniques:  append([]string(nil), state.ordered...),
			Tags:        state.tags,
			Counts: models.AlertCounts{
				Events:            state.events,
				MatchedEvents:     state.matched,
				DistinctTechnique: len(state.techniques),
				SigmaHits:         state.sigmaHits,
			},
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProcessID < out[j].ProcessID
	})
	return out
}

func severityWeight(level string) int {
	switch strings.ToLower(level) {
	case "critical":
		return 7
	case "high":
		return 5
	case "medium":
		return 3
	case "low":
		return 1
	default:
		return 1
	}
}
