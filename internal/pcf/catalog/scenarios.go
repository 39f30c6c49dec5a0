package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario parameterizes a calculation run beyond the method boundary:
// geography, energy mix, and the end-of-life assumptions that shape the
// circularity score. A run may name one explicitly; otherwise runs execute
// without scenario adjustments.
type Scenario struct {
	ID               string `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	Geography        string `json:"geography" yaml:"geography"`
	SystemBoundary   string `json:"system_boundary" yaml:"system_boundary"`
	MethodID         string `json:"method_id" yaml:"method_id"`
	EnergyMixProfile string `json:"energy_mix_profile" yaml:"energy_mix_profile"`
	EndOfLifeModel   string `json:"end_of_life_model" yaml:"end_of_life_model"`

	// End-of-life assumptions. The collection fractions cap how much of a
	// line item's recyclability is actually realized; the utility factor
	// scales the composite score for products used below or above the
	// reference intensity.
	CollectionFractionReuse     float64 `json:"collection_fraction_for_reuse" yaml:"collection_fraction_for_reuse"`
	CollectionFractionRecycling float64 `json:"collection_fraction_for_recycling" yaml:"collection_fraction_for_recycling"`
	UtilityFactor               float64 `json:"utility_factor" yaml:"utility_factor"`
}

// CollectionTotal is the realized end-of-life collection fraction, capped
// at 1.
func (s *Scenario) CollectionTotal() float64 {
	total := s.CollectionFractionReuse + s.CollectionFractionRecycling
	if total < 0 {
		return 0
	}
	if total > 1 {
		return 1
	}
	return total
}

// ScenarioRegistry is the read-only scenario catalog.
type ScenarioRegistry struct {
	scenarios []Scenario
	byID      map[string]*Scenario
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// DefaultScenarios is the built-in catalog: one EU reference scenario.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			ID:                          "eu-reference",
			Name:                        "EU Reference",
			Geography:                   "EU",
			SystemBoundary:              BoundaryCradleToGate,
			MethodID:                    "iso-basic",
			EnergyMixProfile:            "EU-avg",
			EndOfLifeModel:              "EU-2019",
			CollectionFractionReuse:     0.15,
			CollectionFractionRecycling: 0.70,
			UtilityFactor:               0.9,
		},
	}
}

// NewScenarioRegistry builds the lookup structures.
func NewScenarioRegistry(scenarios []Scenario) (*ScenarioRegistry, error) {
	byID := make(map[string]*Scenario, len(scenarios))
	for i := range scenarios {
		s := &scenarios[i]
		if s.ID == "" {
			return nil, fmt.Errorf("scenario at index %d has no id", i)
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario id %q", s.ID)
		}
		byID[s.ID] = s
	}
	return &ScenarioRegistry{scenarios: scenarios, byID: byID}, nil
}

// LoadScenarioRegistry reads a YAML scenario file. An empty path falls back
// to the built-in catalog.
func LoadScenarioRegistry(path string) (*ScenarioRegistry, error) {
	if path == "" {
		return NewScenarioRegistry(DefaultScenarios())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenario file %s: %w", path, err)
	}
	return NewScenarioRegistry(f.Scenarios)
}

// List returns the catalog in load order.
func (r *ScenarioRegistry) List() []Scenario {
	out := make([]Scenario, len(r.scenarios))
	copy(out, r.scenarios)
	return out
}

// Get looks a scenario up by id.
func (r *ScenarioRegistry) Get(id string) (*Scenario, bool) {
	s, ok := r.byID[id]
	return s, ok
}
