package models

// TechniqueMatch is the catalog technique attached to a summarized event.
type TechniqueMatch struct {
	Technique string `json:"mitre_technique"`
	ID        string `json:"mitre_id"`
	Tactic    string `json:"mitre_tactic"`
}

// UnknownTechnique is attached when no catalog entry matches.
var UnknownTechnique = TechniqueMatch{Technique: "Unknown", ID: "N/A", Tactic: "N/A"}

// Matched reports whether a catalog entry was found.
func (m TechniqueMatch) Matched() bool {
	return m.ID != "" && m.ID != UnknownTechnique.ID
}

// TechniqueTag represents a rule match annotation.
type TechniqueTag struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Tactic    string `json:"tactic,omitempty"`
	Technique string `json:"technique,omitempty"`
}
