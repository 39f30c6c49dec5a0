package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Life-cycle stages a system boundary can include.
const (
	StageRawMaterials      = "raw_materials"
	StageUpstreamTransport = "upstream_transport"
	StageOwnOperations     = "own_operations"
	StagePurchasedEnergy   = "purchased_energy"
	StageUsePhase          = "use_phase"
	StageEndOfLife         = "end_of_life"
)

// System boundaries.
const (
	BoundaryCradleToGate  = "cradle-to-gate"
	BoundaryCradleToGrave = "cradle-to-grave"
	BoundaryGateToGate    = "gate-to-gate"
)

// PCFMethod describes one selectable calculation method. The catalog is
// loaded once at startup and never mutated by requests.
type PCFMethod struct {
	ID               string   `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	Standard         string   `json:"standard" yaml:"standard"`
	SystemBoundary   string   `json:"system_boundary" yaml:"system_boundary"`
	ShortDescription string   `json:"short_description" yaml:"short_description"`
	IncludedStages   []string `json:"included_stages" yaml:"included_stages"`
}

// IncludesStage reports whether the method's boundary admits a stage.
func (m *PCFMethod) IncludesStage(stage string) bool {
	for _, s := range m.IncludedStages {
		if s == stage {
			return true
		}
	}
	return false
}

// MethodRegistry is the read-only catalog of PCF methods.
type MethodRegistry struct {
	methods   []PCFMethod
	byID      map[string]*PCFMethod
	defaultID string
}

type methodFile struct {
	Default string      `yaml:"default"`
	Methods []PCFMethod `yaml:"methods"`
}

// DefaultMethods is the built-in catalog used when no method file is
// configured.
func DefaultMethods() []PCFMethod {
	return []PCFMethod{
		{
			ID:               "iso-basic",
			Name:             "ISO 14067 Basic",
			Standard:         "ISO14067",
			SystemBoundary:   BoundaryCradleToGate,
			ShortDescription: "Cradle-to-gate PCF, physical allocation, cut-off recycling",
			IncludedStages: []string{
				StageRawMaterials, StageUpstreamTransport,
				StageOwnOperations, StagePurchasedEnergy,
			},
		},
		{
			ID:               "pact-pcf",
			Name:             "PACT PCF",
			Standard:         "PACT",
			SystemBoundary:   BoundaryCradleToGrave,
			ShortDescription: "Full life cycle per PACT, market-based allocation",
			IncludedStages: []string{
				StageRawMaterials, StageUpstreamTransport, StageOwnOperations,
				StagePurchasedEnergy, StageUsePhase, StageEndOfLife,
			},
		},
		{
			ID:               "gate-internal",
			Name:             "Gate-to-Gate Internal",
			Standard:         "CUSTOM",
			SystemBoundary:   BoundaryGateToGate,
			ShortDescription: "Own operations only, excludes upstream factors",
			IncludedStages: []string{
				StageOwnOperations, StagePurchasedEnergy,
			},
		},
	}
}

// NewMethodRegistry builds a registry from the given methods. defaultID must
// name one of them; empty picks the first.
func NewMethodRegistry(methods []PCFMethod, defaultID string) (*MethodRegistry, error) {
	if len(methods) == 0 {
		return nil, fmt.Errorf("method catalog is empty")
	}
	byID := make(map[string]*PCFMethod, len(methods))
	for i := range methods {
		m := &methods[i]
		if m.ID == "" {
			return nil, fmt.Errorf("method at index %d has no id", i)
		}
		if _, dup := byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate method id %q", m.ID)
		}
		byID[m.ID] = m
	}
	if defaultID == "" {
		defaultID = methods[0].ID
	}
	if _, ok := byID[defaultID]; !ok {
		return nil, fmt.Errorf("default method %q not in catalog", defaultID)
	}
	return &MethodRegistry{methods: methods, byID: byID, defaultID: defaultID}, nil
}

// LoadMethodRegistry reads a YAML method file. An empty path falls back to
// the built-in catalog.
func LoadMethodRegistry(path string) (*MethodRegistry, error) {
	if path == "" {
		return NewMethodRegistry(DefaultMethods(), "iso-basic")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read method file: %w", err)
	}
	var f methodFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse method file %s: %w", path, err)
	}
	return NewMethodRegistry(f.Methods, f.Default)
}

// List returns the catalog in load order.
func (r *MethodRegistry) List() []PCFMethod {
	out := make([]PCFMethod, len(r.methods))
	copy(out, r.methods)
	return out
}

// Get looks a method up by id.
func (r *MethodRegistry) Get(id string) (*PCFMethod, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// Default returns the registry default method.
func (r *MethodRegistry) Default() *PCFMethod {
	return r.byID[r.defaultID]
}
