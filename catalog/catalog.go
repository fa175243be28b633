// Package catalog holds the static scenario catalog agents pick from.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"logisticsassist/api/models"
)

//go:embed scenarios.yaml
var defaultScenarios []byte

var ErrUnknownScenario = errors.New("unknown scenario")

// Catalog is an immutable set of scenarios keyed by name. Every accessor
// returns copies, so callers can never change what later callers see.
type Catalog struct {
	byName map[string]models.Scenario
	names  []string
}

// New builds a catalog from scenarios, copying each one.
func New(scenarios []models.Scenario) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]models.Scenario, len(scenarios))}
	for _, s := range scenarios {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("scenario with empty name")
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("duplicate scenario %q", name)
		}
		if s.MocaTemplate == "" {
			return nil, fmt.Errorf("scenario %q has no moca_template", name)
		}
		s.Name = name
		c.byName[name] = clone(s)
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Parse decodes a YAML list of scenarios.
func Parse(data []byte) (*Catalog, error) {
	var scenarios []models.Scenario
	if err := yaml.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("parsing scenarios: %w", err)
	}
	return New(scenarios)
}

// Load reads the catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultScenarios)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios file %s: %w", path, err)
	}
	return Parse(data)
}

// Names returns scenario names in sorted order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

func (c *Catalog) Get(name string) (models.Scenario, error) {
	s, ok := c.byName[name]
	if !ok {
		return models.Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return clone(s), nil
}

// All returns every scenario, sorted by name.
func (c *Catalog) All() []models.Scenario {
	out := make([]models.Scenario, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, clone(c.byName[n]))
	}
	return out
}

func clone(s models.Scenario) models.Scenario {
	s.Steps = append([]string(nil), s.Steps...)
	return s
}
