package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yml
var defaultCatalogYAML []byte

// Technique is one catalog entry. Keywords and Description are compared
// against lower-cased summaries; When is an optional expression over the event.
type Technique struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Tactic      string   `yaml:"tactic"`
	Keywords    []string `yaml:"keywords"`
	Description string   `yaml:"description"`
	When        string   `yaml:"when"`
}

// Catalog is an ordered list of techniques. Earlier entries win.
type Catalog struct {
	Techniques []Technique `yaml:"techniques"`
}

// DefaultCatalog returns the built-in keyword catalog.
func DefaultCatalog() *Catalog {
	cat, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return cat
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return cat, nil
}

func parseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, err
	}
	for i := range cat.Techniques {
		t := &cat.Techniques[i]
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, fmt.Errorf("technique %d has no id", i)
		}
		for j, kw := range t.Keywords {
			t.Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	return &cat, nil
}

// Append adds the techniques of other after the existing ones.
func (c *Catalog) Append(other *Catalog) {
	if other == nil {
		return
	}
	c.Techniques = append(c.Techniques, other.Techniques...)
}

// LoadCatalogs builds the catalog used for matching: the YAML catalog at path
// (or the built-in one when path is empty), followed by the STIX bundle at
// stixPath when set.
func LoadCatalogs(path, stixPath string) (*Catalog, error) {
	var cat *Catalog
	if path == "" {
		cat = DefaultCatalog()
	} else {
		var err error
		if cat, err = LoadCatalog(path); err != nil {
			return nil, err
		}
	}
	if stixPath != "" {
		stix, err := LoadSTIX(stixPath)
		if err != nil {
			return nil, err
		}
		cat.Append(stix)
	}
	return cat, nil
}
