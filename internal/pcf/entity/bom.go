package entity

import (
	"strings"
	"time"
)

// BOMLineItem is one row of a product's bill of materials. The full set for a
// product is replaced atomically on upload; line_no is unique per product.
type BOMLineItem struct {
	ID        string  `json:"id" gorm:"primaryKey;size:32"`
	ProductID string  `json:"product_id" gorm:"size:64;not null;index;uniqueIndex:uniq_bom_product_line,priority:1"`
	LineNo    int     `json:"line_no" gorm:"not null;uniqueIndex:uniq_bom_product_line,priority:2"`
	Name      string  `json:"material_or_process_name" gorm:"column:name;size:256;not null"`
	Quantity  float64 `json:"quantity" gorm:"type:decimal(15,4);not null"`
	Unit      string  `json:"unit" gorm:"size:16;not null"`

	// Optional enrichment used by the circularity engine. Explicit values
	// take precedence over the factor catalog defaults.
	MassKg               *float64 `json:"mass_kg,omitempty" gorm:"type:decimal(15,4)"`
	MaterialCode         string   `json:"material_code,omitempty" gorm:"size:64;index"`
	RecycledContentShare *float64 `json:"recycled_content_share,omitempty" gorm:"type:decimal(6,4)"`
	RecyclabilityRate    *float64 `json:"recyclability_rate,omitempty" gorm:"type:decimal(6,4)"`
	CountryOfOrigin      string   `json:"country_of_origin,omitempty" gorm:"size:8"`

	CreatedAt time.Time `json:"created_at"`
}

func (BOMLineItem) TableName() string {
	return "bom_line_items"
}

// EffectiveMass returns the mass used for weighting: explicit mass when set,
// else quantity for kg-denominated lines, else zero.
func (i *BOMLineItem) EffectiveMass() float64 {
	if i.MassKg != nil && *i.MassKg > 0 {
		return *i.MassKg * i.Quantity
	}
	if strings.EqualFold(i.Unit, "kg") {
		return i.Quantity
	}
	return 0
}
