package relay

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/patrickwarner/leadrelay/internal/attribution"
)

//go:embed labels.yaml
var defaultLabels []byte

// Catalog maps raw form values to display names.
type Catalog struct {
	Sports            map[string]string `yaml:"sports"`
	IntegrationTypes  map[string]string `yaml:"integration_types"`
	UseCases          map[string]string `yaml:"use_cases"`
	StreamerTypes     map[string]string `yaml:"streamer_types"`
	Viewers           map[string]string `yaml:"viewers"`
	Budgets           map[string]string `yaml:"budgets"`
	CooperationModels map[string]string `yaml:"cooperation_models"`
	Timelines         map[string]string `yaml:"timelines"`
	Languages         map[string]string `yaml:"languages"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := parseCatalog(defaultLabels)
	if err != nil {
		panic(fmt.Sprintf("embedded labels.yaml: %v", err))
	}
	return c
}

// LoadCatalog returns the built-in catalog overlaid with the entries in
// path. An empty path returns the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	base := DefaultCatalog()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	over, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	base.overlay(over)
	return base, nil
}

func parseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) overlay(o *Catalog) {
	merge := func(dst *map[string]string, src map[string]string) {
		if *dst == nil {
			*dst = make(map[string]string, len(src))
		}
		for k, v := range src {
			(*dst)[k] = v
		}
	}
	merge(&c.Sports, o.Sports)
	merge(&c.IntegrationTypes, o.IntegrationTypes)
	merge(&c.UseCases, o.UseCases)
	merge(&c.StreamerTypes, o.StreamerTypes)
	merge(&c.Viewers, o.Viewers)
	merge(&c.Budgets, o.Budgets)
	merge(&c.CooperationModels, o.CooperationModels)
	merge(&c.Timelines, o.Timelines)
	merge(&c.Languages, o.Languages)
}

// label returns the display name for v, or v itself when unmapped.
func label(m map[string]string, v string) string {
	if l, ok := m[v]; ok {
		return l
	}
	return v
}

// SportsText renders the selected sports as a comma-separated list.
func (c *Catalog) SportsText(sports []string) string {
	out := make([]string, 0, len(sports))
	for _, s := range sports {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, label(c.Sports, s))
		}
	}
	return strings.Join(out, ", ")
}

// Language returns the display name for a language code.
func (c *Catalog) Language(code string) string {
	return attribution.LanguageName(c.Languages, code)
}
