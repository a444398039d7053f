package rules

import "threatlineage/pkg/models"

// Engine tags unified events with rule matches.
type Engine interface {
	Apply(event *models.UnifiedEvent) []models.TechniqueTag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(event *models.UnifiedEvent) []models.TechniqueTag {
	return nil
}
