package repository

import (
	"context"

	"github.com/malteschaefer1/procafocia/internal/pcf/entity"
	"gorm.io/gorm"
)

// BOMRepository persists BOM line items. A product's line-item set is only
// ever written as a whole, inside one transaction.
type BOMRepository struct {
	db *gorm.DB
}

func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

// ListByProduct returns a product's current BOM ordered by line number.
func (r *BOMRepository) ListByProduct(ctx context.Context, productID string) ([]entity.BOMLineItem, error) {
	var items []entity.BOMLineItem
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("line_no ASC").
		Find(&items).Error
	return items, err
}

// Replace swaps the product's line items in one transaction. Readers never
// observe a half-replaced BOM: the delete and all inserts commit together or
// not at all.
func (r *BOMRepository) Replace(ctx context.Context, productID string, items []entity.BOMLineItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&entity.BOMLineItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			if items[i].ID == "" {
				items[i].ID = generateID()
			}
			items[i].ProductID = productID
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
