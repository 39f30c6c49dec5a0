package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/malteschaefer1/procafocia/internal/pcf/catalog"
	"github.com/malteschaefer1/procafocia/internal/pcf/entity"
	"github.com/malteschaefer1/procafocia/internal/pcf/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const runCacheTTL = 24 * time.Hour

// CalculationService executes PCF and circularity runs. Every run is
// persisted as a new immutable record; BOM and mapping state are only read.
type CalculationService struct {
	runRepo     *repository.RunRepository
	bomRepo     *repository.BOMRepository
	productRepo *repository.ProductRepository
	mappingRepo *repository.MappingRepository
	methods     *catalog.MethodRegistry
	factors     *catalog.FactorIndex
	scenarios   *catalog.ScenarioRegistry
	rdb         *redis.Client
	locks       *productLocks
	logger      *zap.Logger
}

func NewCalculationService(runRepo *repository.RunRepository, bomRepo *repository.BOMRepository, productRepo *repository.ProductRepository, mappingRepo *repository.MappingRepository, methods *catalog.MethodRegistry, factors *catalog.FactorIndex, scenarios *catalog.ScenarioRegistry, rdb *redis.Client, locks *productLocks, logger *zap.Logger) *CalculationService {
	return &CalculationService{
		runRepo:     runRepo,
		bomRepo:     bomRepo,
		productRepo: productRepo,
		mappingRepo: mappingRepo,
		methods:     methods,
		factors:     factors,
		scenarios:   scenarios,
		rdb:         rdb,
		locks:       locks,
		logger:      logger,
	}
}

// RunPCF executes a PCF run. Method precedence: the explicit id when given,
// else the scenario's method, else the registry default. Line items whose
// current mapping is unusable abort the run: it is persisted as failed with
// the offending line numbers, and no partial total is ever reported.
func (s *CalculationService) RunPCF(ctx context.Context, productID, methodID, scenarioID string) (*entity.CalculationRun, error) {
	unlock := s.locks.Lock(productID)
	defer unlock()

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	scenario, err := s.resolveScenario(scenarioID)
	if err != nil {
		return nil, err
	}

	var method *catalog.PCFMethod
	switch {
	case methodID != "":
		m, ok := s.methods.Get(methodID)
		if !ok {
			return nil, &ValidationError{Message: fmt.Sprintf("unknown PCF method %q", methodID)}
		}
		method = m
	case scenario != nil && scenario.MethodID != "":
		m, ok := s.methods.Get(scenario.MethodID)
		if !ok {
			return nil, &ValidationError{Message: fmt.Sprintf("scenario %q references unknown PCF method %q", scenario.ID, scenario.MethodID)}
		}
		method = m
	default:
		method = s.methods.Default()
	}

	items, err := s.bomRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &ValidationError{Message: "no BOM uploaded for product"}
	}
	mapping, err := s.currentMappingByLine(ctx, productID)
	if err != nil {
		return nil, err
	}

	run := &entity.CalculationRun{
		ProductID: productID,
		Version:   product.Version,
		Kind:      entity.RunKindPCF,
		MethodID:  &method.ID,
	}
	if scenario != nil {
		run.ScenarioID = &scenario.ID
	}

	var blocking []int
	for _, item := range items {
		cand, ok := mapping[item.LineNo]
		if !ok || cand.Blocking() {
			blocking = append(blocking, item.LineNo)
		}
	}
	if len(blocking) > 0 {
		sort.Ints(blocking)
		incomplete := &IncompleteMappingError{ProductID: productID, LineNos: blocking}
		run.Status = entity.RunStatusFailed
		run.Error = incomplete.Error()
		run.Result = entity.JSONB{
			"offending_line_items": toInterfaceSlice(blocking),
			"reason":               "unresolved mapping",
		}
		if err := s.runRepo.Create(ctx, run); err != nil {
			return nil, err
		}
		s.logger.Warn("PCF run blocked by unresolved mapping",
			zap.String("product_id", productID),
			zap.String("run_id", run.RunID),
			zap.Ints("line_items", blocking),
		)
		return run, incomplete
	}

	total := 0.0
	breakdown := make([]map[string]interface{}, 0, len(items))
	byStage := make(map[string]float64)
	for _, item := range items {
		cand := mapping[item.LineNo]
		factor, ok := s.factors.ByID(cand.FactorID)
		if !ok {
			// Catalog changed since resolution; the mapping no longer holds.
			run.Status = entity.RunStatusFailed
			run.Error = fmt.Sprintf("factor %q referenced by line %d is no longer in the index", cand.FactorID, item.LineNo)
			if err := s.runRepo.Create(ctx, run); err != nil {
				return nil, err
			}
			return run, &IncompleteMappingError{ProductID: productID, LineNos: []int{item.LineNo}}
		}

		line := map[string]interface{}{
			"line_no":       item.LineNo,
			"name":          item.Name,
			"factor_id":     factor.ID,
			"factor_source": factor.Source,
			"stage":         factor.LifeCycleStage,
			"auto_selected": cand.Status != entity.StatusApproved,
		}
		if !method.IncludesStage(factor.LifeCycleStage) {
			line["kg_co2e"] = 0.0
			line["excluded_by_boundary"] = true
		} else {
			kgCO2e := item.Quantity * factor.EmissionKgCO2ePerUnit
			line["kg_co2e"] = kgCO2e
			total += kgCO2e
			byStage[factor.LifeCycleStage] += kgCO2e
		}
		breakdown = append(breakdown, line)
	}

	provenance := map[string]interface{}{
		"engine":          "factor-table-v1",
		"method_id":       method.ID,
		"method_name":     method.Name,
		"system_boundary": method.SystemBoundary,
		"functional_unit": product.FunctionalUnit,
	}
	if scenario != nil {
		provenance["scenario"] = map[string]interface{}{
			"id":                 scenario.ID,
			"name":               scenario.Name,
			"geography":          scenario.Geography,
			"energy_mix_profile": scenario.EnergyMixProfile,
		}
	}

	run.Status = entity.RunStatusCompleted
	run.Result = entity.JSONB{
		"total_kg_co2e": total,
		"breakdown":     breakdown,
		"by_stage":      byStage,
		"provenance":    provenance,
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, err
	}

	s.cacheRun(ctx, run)
	s.logger.Info("PCF run completed",
		zap.String("product_id", productID),
		zap.String("run_id", run.RunID),
		zap.String("method_id", method.ID),
		zap.Float64("total_kg_co2e", total),
	)
	return run, nil
}

// RunCircularity executes a circularity run. Unlike PCF, unmapped line items
// never block: they contribute zero and the run still completes. A scenario
// discounts recyclability by its end-of-life collection fractions and the
// composite score by its utility factor.
func (s *CalculationService) RunCircularity(ctx context.Context, productID, scenarioID string) (*entity.CalculationRun, error) {
	unlock := s.locks.Lock(productID)
	defer unlock()

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	scenario, err := s.resolveScenario(scenarioID)
	if err != nil {
		return nil, err
	}
	items, err := s.bomRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &ValidationError{Message: "no BOM uploaded for product"}
	}
	mapping, err := s.currentMappingByLine(ctx, productID)
	if err != nil {
		return nil, err
	}

	// Mass-weighted composite of recycled-content share and end-of-life
	// recyclability. Line items without a usable mass fall back to quantity
	// weighting so unit-only BOMs still score.
	totalWeight := 0.0
	weights := make([]float64, len(items))
	for i := range items {
		w := items[i].EffectiveMass()
		if w <= 0 {
			w = items[i].Quantity
		}
		weights[i] = w
		totalWeight += w
	}

	recycledSum := 0.0
	recyclabilitySum := 0.0
	contributions := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		recycled, recyclability, covered := s.circularityInputs(&item, mapping[item.LineNo])
		if scenario != nil {
			// Only collected material can actually be recycled or reused.
			recyclability *= scenario.CollectionTotal()
		}
		weight := weights[i]
		share := 0.0
		if totalWeight > 0 {
			share = weight / totalWeight
		}
		recycledSum += recycled * share
		recyclabilitySum += recyclability * share
		contributions = append(contributions, map[string]interface{}{
			"line_no":          item.LineNo,
			"name":             item.Name,
			"weight":           weight,
			"weight_share":     share,
			"recycled_content": recycled,
			"recyclability":    recyclability,
			"factor_missing":   !covered,
		})
	}

	score := (recycledSum + recyclabilitySum) / 2
	if scenario != nil {
		score *= scenario.UtilityFactor
	}
	score = clamp01(score)

	provenance := map[string]interface{}{
		"engine":          "mass-weighted-composite-v1",
		"functional_unit": product.FunctionalUnit,
	}
	if scenario != nil {
		provenance["scenario"] = map[string]interface{}{
			"id":                                scenario.ID,
			"name":                              scenario.Name,
			"end_of_life_model":                 scenario.EndOfLifeModel,
			"collection_fraction_for_reuse":     scenario.CollectionFractionReuse,
			"collection_fraction_for_recycling": scenario.CollectionFractionRecycling,
			"utility_factor":                    scenario.UtilityFactor,
		}
	}

	run := &entity.CalculationRun{
		ProductID: productID,
		Version:   product.Version,
		Kind:      entity.RunKindCircularity,
		Status:    entity.RunStatusCompleted,
		Result: entity.JSONB{
			"score": score,
			"sub_scores": map[string]interface{}{
				"recycled_content_share": clamp01(recycledSum),
				"recyclability_rate":     clamp01(recyclabilitySum),
			},
			"mass_total":    totalWeight,
			"contributions": contributions,
			"provenance":    provenance,
		},
	}
	if scenario != nil {
		run.ScenarioID = &scenario.ID
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, err
	}

	s.cacheRun(ctx, run)
	s.logger.Info("Circularity run completed",
		zap.String("product_id", productID),
		zap.String("run_id", run.RunID),
		zap.Float64("score", score),
	)
	return run, nil
}

// circularityInputs resolves the two sub-indicator values for a line item.
// Explicit item values win; a mapped factor supplies defaults; neither means
// zero contribution (covered=false) without blocking the run.
func (s *CalculationService) circularityInputs(item *entity.BOMLineItem, cand *entity.MappingCandidate) (recycled, recyclability float64, covered bool) {
	var factor *catalog.ReferenceFactor
	if cand != nil && cand.FactorID != "" && !cand.Blocking() {
		if f, ok := s.factors.ByID(cand.FactorID); ok {
			factor = f
		}
	}
	if factor != nil {
		recycled = factor.RecycledContentShare
		recyclability = factor.RecyclabilityRate
		covered = true
	}
	if item.RecycledContentShare != nil {
		recycled = clamp01(*item.RecycledContentShare)
		covered = true
	}
	if item.RecyclabilityRate != nil {
		recyclability = clamp01(*item.RecyclabilityRate)
		covered = true
	}
	return recycled, recyclability, covered
}

// resolveScenario looks up an optional scenario id. Empty means no scenario:
// runs keep their unadjusted semantics.
func (s *CalculationService) resolveScenario(scenarioID string) (*catalog.Scenario, error) {
	if scenarioID == "" {
		return nil, nil
	}
	if s.scenarios == nil {
		return nil, &ValidationError{Message: "no scenario catalog configured"}
	}
	sc, ok := s.scenarios.Get(scenarioID)
	if !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown scenario %q", scenarioID)}
	}
	return sc, nil
}

// GetRun returns one run by id.
func (s *CalculationService) GetRun(ctx context.Context, runID string) (*entity.CalculationRun, error) {
	return s.runRepo.GetByID(ctx, runID)
}

// ListRuns returns a product's run history, newest first.
func (s *CalculationService) ListRuns(ctx context.Context, productID string) ([]entity.CalculationRun, error) {
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.runRepo.ListByProduct(ctx, productID)
}

// LatestRun returns the newest run of a kind, served from the Redis cache
// when possible.
func (s *CalculationService) LatestRun(ctx context.Context, productID, kind string) (*entity.CalculationRun, error) {
	if s.rdb != nil {
		if data, err := s.rdb.Get(ctx, runCacheKey(productID, kind)).Bytes(); err == nil {
			var run entity.CalculationRun
			if err := json.Unmarshal(data, &run); err == nil {
				return &run, nil
			}
		}
	}
	run, err := s.runRepo.LatestByProduct(ctx, productID, kind)
	if err != nil {
		return nil, err
	}
	s.cacheRun(ctx, run)
	return run, nil
}

// cacheRun stores the latest completed run per (product, kind). Best effort:
// cache failures are logged, never surfaced.
func (s *CalculationService) cacheRun(ctx context.Context, run *entity.CalculationRun) {
	if s.rdb == nil || run.Status != entity.RunStatusCompleted {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, runCacheKey(run.ProductID, run.Kind), data, runCacheTTL).Err(); err != nil {
		s.logger.Debug("Run cache write failed", zap.Error(err))
	}
}

func runCacheKey(productID, kind string) string {
	return "procafocia:run:" + kind + ":" + productID
}

func (s *CalculationService) currentMappingByLine(ctx context.Context, productID string) (map[int]*entity.MappingCandidate, error) {
	current, err := s.mappingRepo.Current(ctx, productID)
	if err != nil {
		return nil, err
	}
	byLine := make(map[int]*entity.MappingCandidate, len(current))
	for i := range current {
		byLine[current[i].LineNo] = &current[i]
	}
	return byLine, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toInterfaceSlice(ints []int) []interface{} {
	out := make([]interface{}, len(ints))
	for i, v := range ints {
		out[i] = v
	}
	return out
}
