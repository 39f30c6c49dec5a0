package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ReferenceFactor is one entry of the impact factor index. A single entry
// carries both the emission coefficient and the circularity defaults for the
// material or process it describes.
type ReferenceFactor struct {
	ID                    string   `json:"id" yaml:"id"`
	Source                string   `json:"source" yaml:"source"`
	Name                  string   `json:"name" yaml:"name"`
	Aliases               []string `json:"aliases,omitempty" yaml:"aliases"`
	MaterialCode          string   `json:"material_code,omitempty" yaml:"material_code"`
	Unit                  string   `json:"unit" yaml:"unit"`
	LifeCycleStage        string   `json:"life_cycle_stage" yaml:"life_cycle_stage"`
	EmissionKgCO2ePerUnit float64  `json:"emission_kg_co2e_per_unit" yaml:"emission_kg_co2e_per_unit"`
	RecycledContentShare  float64  `json:"recycled_content_share" yaml:"recycled_content_share"`
	RecyclabilityRate     float64  `json:"recyclability_rate" yaml:"recyclability_rate"`
}

// FactorIndex is the read-only reference factor catalog shared by the mapping
// resolver and both calculation engines.
type FactorIndex struct {
	factors []ReferenceFactor
	byName  map[string]*ReferenceFactor
	byCode  map[string]*ReferenceFactor
	byID    map[string]*ReferenceFactor
}

type factorFile struct {
	Factors []ReferenceFactor `yaml:"factors"`
}

// DefaultFactors is the built-in demonstration index. Production deployments
// point catalog.factors_file at a real dataset export.
func DefaultFactors() []ReferenceFactor {
	return []ReferenceFactor{
		{
			ID: "steel", Source: "probas", Name: "steel", MaterialCode: "STL",
			Unit: "kg", LifeCycleStage: StageRawMaterials,
			EmissionKgCO2ePerUnit: 1.9, RecycledContentShare: 0.3, RecyclabilityRate: 0.9,
		},
		{
			ID: "steel-alt", Source: "boavizta", Name: "steel low-alloy", Aliases: []string{"low alloy steel"},
			Unit: "kg", LifeCycleStage: StageRawMaterials,
			EmissionKgCO2ePerUnit: 1.7, RecycledContentShare: 0.4, RecyclabilityRate: 0.9,
		},
		{
			ID: "aluminium", Source: "probas", Name: "aluminium", Aliases: []string{"aluminum", "alu"}, MaterialCode: "ALU",
			Unit: "kg", LifeCycleStage: StageRawMaterials,
			EmissionKgCO2ePerUnit: 8.0, RecycledContentShare: 0.35, RecyclabilityRate: 0.95,
		},
		{
			ID: "copper-wire", Source: "probas", Name: "copper wire", Aliases: []string{"copper"}, MaterialCode: "CU",
			Unit: "kg", LifeCycleStage: StageRawMaterials,
			EmissionKgCO2ePerUnit: 3.8, RecycledContentShare: 0.45, RecyclabilityRate: 0.95,
		},
		{
			ID: "abs-plastic", Source: "probas", Name: "abs plastic granulate", Aliases: []string{"abs", "abs housing"},
			Unit: "kg", LifeCycleStage: StageRawMaterials,
			EmissionKgCO2ePerUnit: 3.1, RecycledContentShare: 0.1, RecyclabilityRate: 0.6,
		},
		{
			ID: "pcb-assembly", Source: "boavizta", Name: "printed circuit board assembly", Aliases: []string{"pcb", "pcba"},
			Unit: "kg", LifeCycleStage: StageRawMaterials,
			EmissionKgCO2ePerUnit: 120.0, RecycledContentShare: 0.02, RecyclabilityRate: 0.25,
		},
		{
			ID: "injection-moulding", Source: "probas", Name: "injection moulding", Aliases: []string{"injection molding"},
			Unit: "kg", LifeCycleStage: StageOwnOperations,
			EmissionKgCO2ePerUnit: 0.9,
		},
		{
			ID: "electricity-eu", Source: "probas", Name: "electricity grid mix EU", Aliases: []string{"electricity", "grid electricity"},
			Unit: "kWh", LifeCycleStage: StagePurchasedEnergy,
			EmissionKgCO2ePerUnit: 0.28,
		},
		{
			ID: "road-freight", Source: "probas", Name: "road freight transport", Aliases: []string{"truck transport", "freight"},
			Unit: "tkm", LifeCycleStage: StageUpstreamTransport,
			EmissionKgCO2ePerUnit: 0.11,
		},
	}
}

// NewFactorIndex builds the lookup structures. Exact-name and material-code
// lookups are case-insensitive via the resolver's normalizer; the index
// stores keys verbatim and lets callers normalize.
func NewFactorIndex(factors []ReferenceFactor) (*FactorIndex, error) {
	idx := &FactorIndex{
		factors: factors,
		byName:  make(map[string]*ReferenceFactor),
		byCode:  make(map[string]*ReferenceFactor),
		byID:    make(map[string]*ReferenceFactor, len(factors)),
	}
	for i := range factors {
		f := &factors[i]
		if f.ID == "" {
			return nil, fmt.Errorf("factor at index %d has no id", i)
		}
		if _, dup := idx.byID[f.ID]; dup {
			return nil, fmt.Errorf("duplicate factor id %q", f.ID)
		}
		idx.byID[f.ID] = f
		idx.byName[f.Name] = f
		for _, alias := range f.Aliases {
			if _, taken := idx.byName[alias]; !taken {
				idx.byName[alias] = f
			}
		}
		if f.MaterialCode != "" {
			if _, taken := idx.byCode[f.MaterialCode]; !taken {
				idx.byCode[f.MaterialCode] = f
			}
		}
	}
	return idx, nil
}

// LoadFactorIndex reads a YAML factor file; an empty path uses the built-in
// demonstration index.
func LoadFactorIndex(path string) (*FactorIndex, error) {
	if path == "" {
		return NewFactorIndex(DefaultFactors())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read factor file: %w", err)
	}
	var f factorFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse factor file %s: %w", path, err)
	}
	return NewFactorIndex(f.Factors)
}

// ByID looks a factor up by id.
func (x *FactorIndex) ByID(id string) (*ReferenceFactor, bool) {
	f, ok := x.byID[id]
	return f, ok
}

// ByName returns the factor registered under an exact (pre-normalized) name
// or alias.
func (x *FactorIndex) ByName(name string) (*ReferenceFactor, bool) {
	f, ok := x.byName[name]
	return f, ok
}

// ByMaterialCode returns the factor registered for a material code.
func (x *FactorIndex) ByMaterialCode(code string) (*ReferenceFactor, bool) {
	f, ok := x.byCode[code]
	return f, ok
}

// All returns the factors sorted by id. The resolver iterates this for fuzzy
// matching; the fixed order keeps tie-breaking deterministic.
func (x *FactorIndex) All() []ReferenceFactor {
	out := make([]ReferenceFactor, len(x.factors))
	copy(out, x.factors)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports the number of indexed factors.
func (x *FactorIndex) Len() int {
	return len(x.factors)
}
