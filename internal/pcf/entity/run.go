package entity

import (
	"time"
)

// Calculation run kinds.
const (
	RunKindPCF         = "pcf"
	RunKindCircularity = "circularity"
)

// Calculation run states.
const (
	RunStatusPending   = "pending"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// CalculationRun is one immutable execution record. Re-running a product
// inserts a new row; prior runs are never updated, which keeps results
// auditable.
type CalculationRun struct {
	RunID      string    `json:"run_id" gorm:"primaryKey;size:32;column:run_id"`
	ProductID  string    `json:"product_id" gorm:"size:64;not null;index"`
	Version    string    `json:"version" gorm:"size:32;not null"`
	Kind       string    `json:"kind" gorm:"size:16;not null;index"`
	MethodID   *string   `json:"method_id,omitempty" gorm:"size:64"`
	ScenarioID *string   `json:"scenario_id,omitempty" gorm:"size:64"`
	Status     string    `json:"status" gorm:"size:16;not null"`
	Result     JSONB     `json:"result,omitempty" gorm:"type:jsonb"`
	Error      string    `json:"error,omitempty" gorm:"size:512"`
	CreatedAt  time.Time `json:"created_at"`
}

func (CalculationRun) TableName() string {
	return "calculation_runs"
}
