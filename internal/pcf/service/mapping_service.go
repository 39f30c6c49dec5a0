package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/malteschaefer1/procafocia/internal/pcf/catalog"
	"github.com/malteschaefer1/procafocia/internal/pcf/entity"
	"github.com/malteschaefer1/procafocia/internal/pcf/repository"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// Review decisions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// MappingService resolves BOM line items against the factor index and owns
// the review workflow. Resolution is deterministic: no randomness, no clock
// inputs, ties broken by smallest factor id.
type MappingService struct {
	mappingRepo *repository.MappingRepository
	bomRepo     *repository.BOMRepository
	productRepo *repository.ProductRepository
	factors     *catalog.FactorIndex
	threshold   float64
	locks       *productLocks
	logger      *zap.Logger

	folder cases.Caser
	// normalized exact-lookup views built once at startup; the underlying
	// index is immutable so these are safe to share.
	byName map[string]*catalog.ReferenceFactor
	byCode map[string]*catalog.ReferenceFactor
}

func NewMappingService(mappingRepo *repository.MappingRepository, bomRepo *repository.BOMRepository, productRepo *repository.ProductRepository, factors *catalog.FactorIndex, threshold float64, locks *productLocks, logger *zap.Logger) *MappingService {
	s := &MappingService{
		mappingRepo: mappingRepo,
		bomRepo:     bomRepo,
		productRepo: productRepo,
		factors:     factors,
		threshold:   threshold,
		locks:       locks,
		logger:      logger,
		folder:      cases.Fold(),
		byName:      make(map[string]*catalog.ReferenceFactor),
		byCode:      make(map[string]*catalog.ReferenceFactor),
	}
	for _, f := range factors.All() {
		factor, _ := factors.ByID(f.ID)
		key := s.normalize(f.Name)
		if _, taken := s.byName[key]; !taken {
			s.byName[key] = factor
		}
		for _, alias := range f.Aliases {
			aliasKey := s.normalize(alias)
			if _, taken := s.byName[aliasKey]; !taken {
				s.byName[aliasKey] = factor
			}
		}
		if f.MaterialCode != "" {
			codeKey := s.normalize(f.MaterialCode)
			if _, taken := s.byCode[codeKey]; !taken {
				s.byCode[codeKey] = factor
			}
		}
	}
	return s
}

// unitTokens are stripped from names before matching; quantities and units on
// a BOM row say nothing about the material itself.
var unitTokens = map[string]struct{}{
	"kg": {}, "g": {}, "mg": {}, "t": {}, "pcs": {}, "pc": {}, "ea": {},
	"mm": {}, "cm": {}, "m": {}, "ml": {}, "l": {}, "kwh": {}, "tkm": {},
}

// normalize case-folds, drops punctuation and unit tokens, and collapses
// whitespace.
func (s *MappingService) normalize(name string) string {
	return strings.Join(s.tokens(name), " ")
}

func (s *MappingService) tokens(name string) []string {
	folded := s.folder.String(name)
	var b strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, tok := range fields {
		if _, isUnit := unitTokens[tok]; isUnit {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// similarity is the token-overlap (Jaccard) score of two normalized names.
func similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// resolveItem maps one line item to its best candidate.
func (s *MappingService) resolveItem(item *entity.BOMLineItem) entity.MappingCandidate {
	cand := entity.MappingCandidate{
		ProductID:  item.ProductID,
		LineNo:     item.LineNo,
		Confidence: entity.ConfidenceUnmapped,
		Status:     entity.StatusPending,
	}

	// Deterministic rules first: material code, then exact normalized name.
	if item.MaterialCode != "" {
		if f, ok := s.byCode[s.normalize(item.MaterialCode)]; ok {
			cand.FactorID = f.ID
			cand.FactorSource = f.Source
			cand.Confidence = entity.ConfidenceExact
			cand.Score = 1
			cand.Reason = fmt.Sprintf("material code %s", item.MaterialCode)
			return cand
		}
	}
	if f, ok := s.byName[s.normalize(item.Name)]; ok {
		cand.FactorID = f.ID
		cand.FactorSource = f.Source
		cand.Confidence = entity.ConfidenceExact
		cand.Score = 1
		cand.Reason = "exact name match"
		return cand
	}

	// Fuzzy: best token-overlap score over the whole index, iterated in id
	// order so equal scores resolve to the smallest factor id.
	itemTokens := s.tokens(item.Name)
	var best *catalog.ReferenceFactor
	bestScore := 0.0
	for _, f := range s.factors.All() {
		score := similarity(itemTokens, s.tokens(f.Name))
		for _, alias := range f.Aliases {
			if aliasScore := similarity(itemTokens, s.tokens(alias)); aliasScore > score {
				score = aliasScore
			}
		}
		if score > bestScore {
			factor, _ := s.factors.ByID(f.ID)
			best = factor
			bestScore = score
		}
	}
	if best != nil && bestScore >= s.threshold {
		cand.FactorID = best.ID
		cand.FactorSource = best.Source
		cand.Confidence = entity.ConfidenceFuzzy
		cand.Score = bestScore
		cand.Reason = fmt.Sprintf("fuzzy match %.2f", bestScore)
		return cand
	}

	cand.Reason = "no factor above similarity threshold; review required"
	return cand
}

// Resolve maps every line item of the given BOM and appends the resulting
// candidate generation. Prior generations stay in the log. The caller must
// hold the product lock.
func (s *MappingService) Resolve(ctx context.Context, productID string, items []entity.BOMLineItem) ([]entity.MappingCandidate, error) {
	return s.ResolveWith(ctx, s.mappingRepo, productID, items)
}

// ResolveWith is Resolve against an explicit repository, so a BOM replace
// can append the new candidate generation inside its own transaction.
func (s *MappingService) ResolveWith(ctx context.Context, repo *repository.MappingRepository, productID string, items []entity.BOMLineItem) ([]entity.MappingCandidate, error) {
	candidates := make([]entity.MappingCandidate, 0, len(items))
	for i := range items {
		candidates = append(candidates, s.resolveItem(&items[i]))
	}
	appended, err := repo.Append(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("append mapping candidates: %w", err)
	}
	unmapped := 0
	for _, c := range appended {
		if c.Confidence == entity.ConfidenceUnmapped {
			unmapped++
		}
	}
	s.logger.Info("BOM resolved",
		zap.String("product_id", productID),
		zap.Int("items", len(appended)),
		zap.Int("unmapped", unmapped),
	)
	return appended, nil
}

// Reresolve re-runs resolution on the stored BOM, superseding the current
// candidate generation. Identical inputs produce identical candidates.
func (s *MappingService) Reresolve(ctx context.Context, productID string) ([]entity.MappingCandidate, error) {
	unlock := s.locks.Lock(productID)
	defer unlock()

	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	items, err := s.bomRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &ValidationError{Message: "no BOM uploaded for product"}
	}
	return s.Resolve(ctx, productID, items)
}

// Current returns the reviewable mapping state: the newest candidate per
// line number, restricted to lines present in the current BOM. The log keeps
// rows for lines a later upload removed; surfacing those would ask reviewers
// to decide line items that no longer exist.
func (s *MappingService) Current(ctx context.Context, productID string) ([]entity.MappingCandidate, error) {
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	items, err := s.bomRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	live := make(map[int]struct{}, len(items))
	for i := range items {
		live[items[i].LineNo] = struct{}{}
	}
	rows, err := s.mappingRepo.Current(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if _, ok := live[row.LineNo]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// History returns every candidate generation, newest first, for audit.
func (s *MappingService) History(ctx context.Context, productID string) ([]entity.MappingCandidate, error) {
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.mappingRepo.History(ctx, productID)
}

// DecideInput is a review decision for one line.
type DecideInput struct {
	LineNo         int    `json:"line_no" binding:"required"`
	Decision       string `json:"decision" binding:"required"`
	ChosenFactorID string `json:"chosen_factor_id"`
	DecidedBy      string `json:"decided_by"`
}

// Decide applies a human review decision. The prior candidate row is
// retained; the decision appends a superseding row. An approval may swap in
// an explicitly chosen factor; a rejection without a replacement leaves the
// line unmapped and pending, which blocks PCF completion.
func (s *MappingService) Decide(ctx context.Context, productID string, input *DecideInput) (*entity.MappingCandidate, error) {
	unlock := s.locks.Lock(productID)
	defer unlock()

	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	current, err := s.mappingRepo.CurrentForLine(ctx, productID, input.LineNo)
	if err != nil {
		return nil, err
	}

	next := entity.MappingCandidate{
		ProductID:    productID,
		LineNo:       input.LineNo,
		FactorID:     current.FactorID,
		FactorSource: current.FactorSource,
		Confidence:   current.Confidence,
		Score:        current.Score,
		DecidedBy:    input.DecidedBy,
	}

	switch input.Decision {
	case DecisionApprove:
		if input.ChosenFactorID != "" {
			factor, ok := s.factors.ByID(input.ChosenFactorID)
			if !ok {
				return nil, &ValidationError{Message: fmt.Sprintf("unknown factor id %q", input.ChosenFactorID)}
			}
			next.FactorID = factor.ID
			next.FactorSource = factor.Source
			next.Confidence = entity.ConfidenceExact
			next.Score = 1
			next.Reason = "approved with explicit factor"
		} else {
			if current.FactorID == "" {
				return nil, &ValidationError{Message: "cannot approve an unmapped line without chosen_factor_id"}
			}
			next.Reason = "approved"
		}
		next.Status = entity.StatusApproved
	case DecisionReject:
		if input.ChosenFactorID != "" {
			factor, ok := s.factors.ByID(input.ChosenFactorID)
			if !ok {
				return nil, &ValidationError{Message: fmt.Sprintf("unknown factor id %q", input.ChosenFactorID)}
			}
			// Reject-with-replacement approves the substitute in one step.
			next.FactorID = factor.ID
			next.FactorSource = factor.Source
			next.Confidence = entity.ConfidenceExact
			next.Score = 1
			next.Status = entity.StatusApproved
			next.Reason = "rejected suggestion, replacement approved"
		} else {
			next.FactorID = ""
			next.FactorSource = ""
			next.Confidence = entity.ConfidenceUnmapped
			next.Score = 0
			next.Status = entity.StatusPending
			next.Reason = "rejected by reviewer"
		}
	default:
		return nil, &ValidationError{Message: fmt.Sprintf("unknown decision %q", input.Decision)}
	}

	appended, err := s.mappingRepo.Append(ctx, []entity.MappingCandidate{next})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Mapping decision recorded",
		zap.String("product_id", productID),
		zap.Int("line_no", input.LineNo),
		zap.String("decision", input.Decision),
		zap.String("factor_id", appended[0].FactorID),
	)
	return &appended[0], nil
}
