package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// descriptionPrefix is how much of a technique description has to appear in a
// summary for it to count as a match.
const descriptionPrefix = 300

type stixBundle struct {
	Objects []stixObject `json:"objects"`
}

type stixObject struct {
	Type               string               `json:"type"`
	Name               string               `json:"name"`
	Description        string               `json:"description"`
	Revoked            bool                 `json:"revoked"`
	Deprecated         bool                 `json:"x_mitre_deprecated"`
	ExternalReferences []stixExternalRef    `json:"external_references"`
	KillChainPhases    []stixKillChainPhase `json:"kill_chain_phases"`
}

type stixExternalRef struct {
	SourceName string `json:"source_name"`
	ExternalID string `json:"external_id"`
}

type stixKillChainPhase struct {
	KillChainName string `json:"kill_chain_name"`
	PhaseName     string `json:"phase_name"`
}

// LoadSTIX reads attack-pattern objects from an ATT&CK STIX bundle such as
// enterprise-attack.json. Objects without a mitre-attack external id, and
// revoked or deprecated ones, are skipped.
func LoadSTIX(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stix bundle: %w", err)
	}
	var bundle stixBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parse stix bundle %s: %w", path, err)
	}

	cat := &Catalog{}
	for _, obj := range bundle.Objects {
		if obj.Type != "attack-pattern" || obj.Revoked || obj.Deprecated {
			continue
		}
		id := attackID(obj.ExternalReferences)
		if id == "" {
			continue
		}
		cat.Techniques = append(cat.Techniques, Technique{
			ID:          id,
			Name:        obj.Name,
			Tactic:      tacticFromPhases(obj.KillChainPhases),
			Description: obj.Description,
		})
	}
	return cat, nil
}

func attackID(refs []stixExternalRef) string {
	for _, ref := range refs {
		if ref.SourceName == "mitre-attack" {
			return ref.ExternalID
		}
	}
	return ""
}

// tacticFromPhases turns the first ATT&CK phase name, e.g. "defense-evasion",
// into its display form "Defense Evasion".
func tacticFromPhases(phases []stixKillChainPhase) string {
	for _, p := range phases {
		if p.KillChainName != "mitre-attack" || p.PhaseName == "" {
			continue
		}
		words := strings.Split(p.PhaseName, "-")
		for i, w := range words {
			if w == "" {
				continue
			}
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		return strings.Join(words, " ")
	}
	return "N/A"
}
