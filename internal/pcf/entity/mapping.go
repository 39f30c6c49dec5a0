package entity

import (
	"time"
)

// Mapping confidence levels.
const (
	ConfidenceExact    = "exact"
	ConfidenceFuzzy    = "fuzzy"
	ConfidenceUnmapped = "unmapped"
)

// Mapping review states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// MappingCandidate links a BOM line item to a reference factor. Rows are
// append-only: re-resolution and review decisions insert new generations, the
// current view is the newest row per (product_id, line_no). Seq orders rows
// deterministically within one request (created_at alone is too coarse).
type MappingCandidate struct {
	ID           string    `json:"id" gorm:"primaryKey;size:32"`
	ProductID    string    `json:"product_id" gorm:"size:64;not null;index:idx_mapping_product_line,priority:1"`
	LineNo       int       `json:"line_no" gorm:"not null;index:idx_mapping_product_line,priority:2"`
	Seq          int64     `json:"-" gorm:"autoIncrement:false;not null;index"`
	FactorID     string    `json:"factor_id" gorm:"size:64"`
	FactorSource string    `json:"factor_source" gorm:"size:64"`
	Confidence   string    `json:"confidence" gorm:"size:16;not null"`
	Status       string    `json:"status" gorm:"size:16;not null;default:pending"`
	Score        float64   `json:"score" gorm:"type:decimal(6,4)"`
	Reason       string    `json:"reason,omitempty" gorm:"size:256"`
	DecidedBy    string    `json:"decided_by,omitempty" gorm:"size:64"`
	CreatedAt    time.Time `json:"created_at"`
}

func (MappingCandidate) TableName() string {
	return "mapping_candidates"
}

// Calculable reports whether the candidate can feed a PCF total: exact hits
// and fuzzy auto-selections count unless a reviewer rejected them; everything
// else needs an explicit approval.
func (m *MappingCandidate) Calculable() bool {
	if m.Status == StatusApproved {
		return true
	}
	if m.Status != StatusPending {
		return false
	}
	return m.Confidence == ConfidenceExact || m.Confidence == ConfidenceFuzzy
}

// Blocking reports whether the candidate forbids PCF completion.
func (m *MappingCandidate) Blocking() bool {
	return !m.Calculable()
}
