package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/malteschaefer1/procafocia/internal/pcf/entity"
	"github.com/malteschaefer1/procafocia/internal/pcf/repository"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// BOMService owns BOM uploads. A replace is all-or-nothing for the valid
// subset: invalid items are rejected per line, valid items and their new
// mapping generation land in one transaction, and an all-invalid submission
// leaves the prior BOM untouched.
type BOMService struct {
	repos   *repository.Repositories
	mapping *MappingService
	locks   *productLocks
	logger  *zap.Logger
}

func NewBOMService(repos *repository.Repositories, mapping *MappingService, locks *productLocks, logger *zap.Logger) *BOMService {
	return &BOMService{
		repos:   repos,
		mapping: mapping,
		locks:   locks,
		logger:  logger,
	}
}

// BOMItemInput is one uploaded line. Name accepts the wire aliases the
// clients actually send.
type BOMItemInput struct {
	LineNo               int      `json:"line_no"`
	Name                 string   `json:"material_or_process_name"`
	NameAlt              string   `json:"name"`
	Description          string   `json:"description"`
	Quantity             float64  `json:"quantity"`
	Unit                 string   `json:"unit"`
	MassKg               *float64 `json:"mass_kg"`
	MaterialCode         string   `json:"material_code"`
	RecycledContentShare *float64 `json:"recycled_content_share"`
	RecyclabilityRate    *float64 `json:"recyclability_rate"`
	CountryOfOrigin      string   `json:"country_of_origin"`
}

func (in *BOMItemInput) displayName() string {
	if in.Name != "" {
		return in.Name
	}
	if in.NameAlt != "" {
		return in.NameAlt
	}
	return in.Description
}

// ReplaceResult reports a BOM upload outcome.
type ReplaceResult struct {
	ProductID string      `json:"product_id"`
	Accepted  int         `json:"accepted"`
	Rejected  []LineError `json:"rejected"`
}

func validateItem(in *BOMItemInput, seen map[int]bool) *LineError {
	if in.LineNo <= 0 {
		return &LineError{LineNo: in.LineNo, Reason: "line_no must be a positive integer"}
	}
	if seen[in.LineNo] {
		return &LineError{LineNo: in.LineNo, Reason: "duplicate line_no"}
	}
	if strings.TrimSpace(in.displayName()) == "" {
		return &LineError{LineNo: in.LineNo, Reason: "material_or_process_name is required"}
	}
	if in.Quantity <= 0 || math.IsInf(in.Quantity, 0) || math.IsNaN(in.Quantity) {
		return &LineError{LineNo: in.LineNo, Reason: "quantity must be a positive finite number"}
	}
	if strings.TrimSpace(in.Unit) == "" {
		return &LineError{LineNo: in.LineNo, Reason: "unit is required"}
	}
	return nil
}

// Replace validates and swaps a product's BOM, then resolves the mapping for
// the new line-item set within the same request.
func (s *BOMService) Replace(ctx context.Context, productID string, inputs []BOMItemInput) (*ReplaceResult, error) {
	unlock := s.locks.Lock(productID)
	defer unlock()

	if _, err := s.repos.Product.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, &ValidationError{Message: "BOM payload is empty"}
	}

	result := &ReplaceResult{ProductID: productID, Rejected: []LineError{}}
	items := make([]entity.BOMLineItem, 0, len(inputs))
	seen := make(map[int]bool, len(inputs))
	for i := range inputs {
		in := &inputs[i]
		if lineErr := validateItem(in, seen); lineErr != nil {
			result.Rejected = append(result.Rejected, *lineErr)
			continue
		}
		seen[in.LineNo] = true
		items = append(items, entity.BOMLineItem{
			ProductID:            productID,
			LineNo:               in.LineNo,
			Name:                 strings.TrimSpace(in.displayName()),
			Quantity:             in.Quantity,
			Unit:                 strings.TrimSpace(in.Unit),
			MassKg:               in.MassKg,
			MaterialCode:         strings.TrimSpace(in.MaterialCode),
			RecycledContentShare: in.RecycledContentShare,
			RecyclabilityRate:    in.RecyclabilityRate,
			CountryOfOrigin:      strings.TrimSpace(in.CountryOfOrigin),
		})
	}

	if len(items) == 0 {
		// Prior BOM stays untouched.
		return nil, &ValidationError{Message: "all BOM line items are invalid", Lines: result.Rejected}
	}

	// The line items and their fresh mapping generation commit together: a
	// failed resolution must not leave a new BOM paired with stale mappings.
	if err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.BOM.Replace(ctx, productID, items); err != nil {
			return fmt.Errorf("replace BOM: %w", err)
		}
		_, err := s.mapping.ResolveWith(ctx, tx.Mapping, productID, items)
		return err
	}); err != nil {
		return nil, err
	}
	result.Accepted = len(items)

	s.logger.Info("BOM replaced",
		zap.String("product_id", productID),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// Get returns a product's current BOM.
func (s *BOMService) Get(ctx context.Context, productID string) ([]entity.BOMLineItem, error) {
	if _, err := s.repos.Product.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.repos.BOM.ListByProduct(ctx, productID)
}

// excel import column order; header row is skipped when it matches.
var bomImportHeaders = []string{"line_no", "material_or_process_name", "quantity", "unit", "mass_kg", "material_code", "recycled_content_share", "recyclability_rate", "country_of_origin"}

// ImportExcel parses an xlsx workbook (first sheet, columns per
// bomImportHeaders) and replaces the product's BOM with its rows.
func (s *BOMService) ImportExcel(ctx context.Context, productID string, reader io.Reader) (*ReplaceResult, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, &ValidationError{Message: "invalid xlsx file: " + err.Error()}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, &ValidationError{Message: "xlsx sheet is empty"}
	}

	start := 0
	if len(rows[0]) > 0 && strings.EqualFold(strings.TrimSpace(rows[0][0]), bomImportHeaders[0]) {
		start = 1
	}

	inputs := make([]BOMItemInput, 0, len(rows)-start)
	for rowIdx := start; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		if len(row) == 0 {
			continue
		}
		cell := func(col int) string {
			if col < len(row) {
				return strings.TrimSpace(row[col])
			}
			return ""
		}
		lineNo, _ := strconv.Atoi(cell(0))
		quantity, _ := strconv.ParseFloat(cell(2), 64)
		in := BOMItemInput{
			LineNo:          lineNo,
			Name:            cell(1),
			Quantity:        quantity,
			Unit:            cell(3),
			MaterialCode:    cell(5),
			CountryOfOrigin: cell(8),
		}
		if v, err := strconv.ParseFloat(cell(4), 64); err == nil {
			in.MassKg = &v
		}
		if v, err := strconv.ParseFloat(cell(6), 64); err == nil {
			in.RecycledContentShare = &v
		}
		if v, err := strconv.ParseFloat(cell(7), 64); err == nil {
			in.RecyclabilityRate = &v
		}
		inputs = append(inputs, in)
	}

	return s.Replace(ctx, productID, inputs)
}
