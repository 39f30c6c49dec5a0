package repository

import (
	"context"
	"errors"

	"github.com/malteschaefer1/procafocia/internal/pcf/entity"
	"gorm.io/gorm"
)

// RunRepository persists calculation runs. Insert-only: a run is immutable
// once written, re-running a product creates a new record.
type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run, assigning its id when empty.
func (r *RunRepository) Create(ctx context.Context, run *entity.CalculationRun) error {
	if run.RunID == "" {
		run.RunID = generateID()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByID returns the run or ErrNotFound.
func (r *RunRepository) GetByID(ctx context.Context, runID string) (*entity.CalculationRun, error) {
	var run entity.CalculationRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// ListByProduct returns a product's runs, newest first.
func (r *RunRepository) ListByProduct(ctx context.Context, productID string) ([]entity.CalculationRun, error) {
	var runs []entity.CalculationRun
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&runs).Error
	return runs, err
}

// LatestByProduct returns the newest run of a kind or ErrNotFound.
func (r *RunRepository) LatestByProduct(ctx context.Context, productID, kind string) (*entity.CalculationRun, error) {
	var run entity.CalculationRun
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND kind = ?", productID, kind).
		Order("created_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}
