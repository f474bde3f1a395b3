// Package selection implements the Selection Policy: choosing a model
// roster and round budget from a question, an optional preset name, and
// optional caller overrides.
package selection

import (
	"fmt"
	"os"
	"sync"

	"github.com/gomind-labs/debate-consensus/core"
	"gopkg.in/yaml.v3"
)

// Preset is one compiled entry of the catalog: a fixed roster, round
// budget, consensus threshold override, and whether the automatic
// categorizer may still refine the roster further.
type Preset struct {
	ID                         string         `yaml:"id"`
	Name                       string         `yaml:"name"`
	Aliases                    []string       `yaml:"aliases"`
	Instances                  map[string]int `yaml:"instances,omitempty"`
	MaxRounds                  int            `yaml:"maxRounds"`
	ConsensusThresholdOverride int            `yaml:"consensusThreshold"`
	UseIntelligentSelection    bool           `yaml:"useIntelligentSelection"`
	Note                       string         `yaml:"note,omitempty"`
}

// Roster expands the preset's aliases and per-alias instance counts into a
// concrete core.Roster, in declared alias order.
func (p Preset) Roster() core.Roster {
	var out core.Roster
	for _, alias := range p.Aliases {
		n := p.Instances[alias]
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, core.RosterEntry{Alias: core.ModelAlias(alias), Instance: i})
		}
	}
	return out
}

const (
	PresetRapid            = "rapid"
	PresetCostOptimized    = "cost-optimized"
	PresetBalanced         = "balanced"
	PresetMaximumAccuracy  = "maximum-accuracy"
	PresetDeepAnalysis     = "deep-analysis"
	PresetSecurityFocused  = "security-focused"
)

// defaultCatalog is the spec's compiled-in six-preset table. By convention
// k1 is the fastest alias, k5 the cheapest; k2/k3 are weighted toward
// analysis work and k4 toward security review.
func defaultCatalog() []Preset {
	return []Preset{
		{
			ID: PresetRapid, Name: "Rapid", Aliases: []string{"k1", "k1", "k1"},
			Instances: map[string]int{"k1": 3}, MaxRounds: 1, ConsensusThresholdOverride: 70,
			UseIntelligentSelection: false, Note: "overrides intelligent selection",
		},
		{
			ID: PresetCostOptimized, Name: "Cost Optimized", Aliases: []string{"k5"},
			MaxRounds: 1, ConsensusThresholdOverride: 60, UseIntelligentSelection: false,
			Note: "overrides intelligent selection",
		},
		{
			ID: PresetBalanced, Name: "Balanced", Aliases: []string{"k1", "k2", "k3"},
			MaxRounds: 3, ConsensusThresholdOverride: 80, UseIntelligentSelection: true,
			Note: "intelligent selection enabled",
		},
		{
			ID: PresetMaximumAccuracy, Name: "Maximum Accuracy", Aliases: []string{"k1", "k2", "k3", "k4", "k5"},
			Instances: map[string]int{"k4": 2, "k5": 2}, MaxRounds: 5, ConsensusThresholdOverride: 95,
			UseIntelligentSelection: false, Note: "fixed roster",
		},
		{
			ID: PresetDeepAnalysis, Name: "Deep Analysis", Aliases: []string{"k2", "k3", "k1", "k4"},
			MaxRounds: 5, ConsensusThresholdOverride: 90, UseIntelligentSelection: true,
			Note: "intelligent selection enabled",
		},
		{
			ID: PresetSecurityFocused, Name: "Security Focused", Aliases: []string{"k4", "k1", "k3"},
			MaxRounds: 4, ConsensusThresholdOverride: 95, UseIntelligentSelection: false,
			Note: "fixed roster",
		},
	}
}

// Catalog is the process-wide preset table: the compiled-in defaults,
// optionally overridden wholesale by LoadCatalog. Reads never block each
// other; writes (LoadCatalog) happen once at startup, but the mutex keeps
// tests and hot-reload callers honest.
type Catalog struct {
	mu      sync.RWMutex
	presets map[string]Preset
	order   []string
}

// NewCatalog returns a Catalog pre-populated with the compiled-in table.
func NewCatalog() *Catalog {
	c := &Catalog{presets: make(map[string]Preset)}
	c.replace(defaultCatalog())
	return c
}

// LoadCatalog reads a YAML override file and replaces the compiled-in
// table wholesale; a missing path is not an error and leaves the
// compiled-in defaults in place.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selection.LoadCatalog: %w", err)
	}

	var overrides struct {
		Presets []Preset `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("selection.LoadCatalog: %w", err)
	}
	if len(overrides.Presets) > 0 {
		c.replace(overrides.Presets)
	}
	return c, nil
}

func (c *Catalog) replace(presets []Preset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presets = make(map[string]Preset, len(presets))
	c.order = make([]string, 0, len(presets))
	for _, p := range presets {
		c.presets[p.ID] = p
		c.order = append(c.order, p.ID)
	}
}

// Get returns the named preset.
func (c *Catalog) Get(id string) (Preset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.presets[id]
	return p, ok
}

// List returns every preset in catalog-declared order.
func (c *Catalog) List() []Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Preset, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.presets[id])
	}
	return out
}
