// Package store holds the cleaned telemetry tables and the per-process
// indexes the lineage renderer and the enrichment stages read from.
package store

import (
	"threatlineage/internal/transform/telemetry"
	"threatlineage/pkg/models"
)

// Tables is the read-only view over the four cleaned tables. Per-process
// lookups keep the rows in table order.
type Tables struct {
	Processes []models.ProcessRecord
	Network   []models.NetworkEvent
	Files     []models.FileEvent
	Registry  []models.RegistryEvent

	files    map[int64][]int
	network  map[int64][]int
	registry map[int64][]int
}

// New indexes the cleaned tables by process id.
func New(t *telemetry.Tables) *Tables {
	if t == nil {
		t = &telemetry.Tables{}
	}
	s := &Tables{
		Processes: t.Processes,
		Network:   t.Network,
		Files:     t.Files,
		Registry:  t.Registry,
		files:     make(map[int64][]int),
		network:   make(map[int64][]int),
		registry:  make(map[int64][]int),
	}
	for i, e := range s.Files {
		s.files[e.ProcessID] = append(s.files[e.ProcessID], i)
	}
	for i, e := range s.Network {
		s.network[e.ProcessID] = append(s.network[e.ProcessID], i)
	}
	for i, e := range s.Registry {
		s.registry[e.ProcessID] = append(s.registry[e.ProcessID], i)
	}
	return s
}

// FilesFor returns the file events of pid in table order.
func (s *Tables) FilesFor(pid int64) []models.FileEvent {
	idx := s.files[pid]
	out := make([]models.FileEvent, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Files[i])
	}
	return out
}

// NetworkFor returns the network events of pid in table order.
func (s *Tables) NetworkFor(pid int64) []models.NetworkEvent {
	idx := s.network[pid]
	out := make([]models.NetworkEvent, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Network[i])
	}
	return out
}

// RegistryFor returns the registry events of pid in table order.
func (s *Tables) RegistryFor(pid int64) []models.RegistryEvent {
	idx := s.registry[pid]
	out := make([]models.RegistryEvent, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Registry[i])
	}
	return out
}

// Telemetry returns the underlying tables without the indexes.
func (s *Tables) Telemetry() *telemetry.Tables {
	return &telemetry.Tables{
		Processes: s.Processes,
		Network:   s.Network,
		Files:     s.Files,
		Registry:  s.Registry,
	}
}
