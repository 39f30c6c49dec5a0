package entity

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONB maps to the PostgreSQL JSONB column type. On SQLite (tests) gorm
// falls back to a plain JSON-encoded text column via the same Valuer/Scanner.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Product is the unit of assessment. Identity (id, version) is stable once a
// BOM or run references it; descriptive fields stay editable.
type Product struct {
	ID             string    `json:"id" gorm:"primaryKey;size:64"`
	Name           string    `json:"name" gorm:"size:128;not null"`
	Version        string    `json:"version" gorm:"size:32;not null;default:1.0"`
	FunctionalUnit string    `json:"functional_unit" gorm:"size:64;not null"`
	LifetimeYears  *float64  `json:"lifetime_years,omitempty" gorm:"type:decimal(8,2)"`
	UseProfile     string    `json:"use_profile,omitempty" gorm:"size:128"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
