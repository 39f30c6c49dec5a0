package repository

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"

	"github.com/malteschaefer1/procafocia/internal/pcf/entity"
	"gorm.io/gorm"
)

// MappingRepository persists mapping candidates as an append-only log.
// Nothing here updates or deletes rows; decisions and re-resolutions append
// new generations and the current view is derived.
type MappingRepository struct {
	db *gorm.DB

	// seq disambiguates rows created within the same timestamp so the
	// "newest row wins" view stays total-ordered. Seeded from the persisted
	// maximum so restarts keep the ordering monotonic; shared by pointer
	// with transaction-bound copies.
	seq *atomic.Int64
}

func NewMappingRepository(db *gorm.DB) *MappingRepository {
	r := &MappingRepository{db: db, seq: &atomic.Int64{}}
	var maxSeq int64
	r.db.Model(&entity.MappingCandidate{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq)
	r.seq.Store(maxSeq)
	return r
}

func (r *MappingRepository) withTx(tx *gorm.DB) *MappingRepository {
	return &MappingRepository{db: tx, seq: r.seq}
}

// Append inserts candidate rows, assigning ids and sequence numbers.
func (r *MappingRepository) Append(ctx context.Context, candidates []entity.MappingCandidate) ([]entity.MappingCandidate, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range candidates {
			if candidates[i].ID == "" {
				candidates[i].ID = generateID()
			}
			candidates[i].Seq = r.seq.Add(1)
			if err := tx.Create(&candidates[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// Current returns the newest candidate per line number, ordered by line_no.
func (r *MappingRepository) Current(ctx context.Context, productID string) ([]entity.MappingCandidate, error) {
	rows, err := r.History(ctx, productID)
	if err != nil {
		return nil, err
	}
	latest := make(map[int]entity.MappingCandidate)
	for _, row := range rows {
		prev, seen := latest[row.LineNo]
		if !seen || row.Seq > prev.Seq {
			latest[row.LineNo] = row
		}
	}
	lineNos := make([]int, 0, len(latest))
	for lineNo := range latest {
		lineNos = append(lineNos, lineNo)
	}
	sort.Ints(lineNos)
	out := make([]entity.MappingCandidate, 0, len(latest))
	for _, lineNo := range lineNos {
		out = append(out, latest[lineNo])
	}
	return out, nil
}

// CurrentForLine returns the newest candidate for one line or ErrNotFound.
func (r *MappingRepository) CurrentForLine(ctx context.Context, productID string, lineNo int) (*entity.MappingCandidate, error) {
	var row entity.MappingCandidate
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND line_no = ?", productID, lineNo).
		Order("seq DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// History returns every candidate generation for a product, newest first.
func (r *MappingRepository) History(ctx context.Context, productID string) ([]entity.MappingCandidate, error) {
	var rows []entity.MappingCandidate
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("seq DESC").
		Find(&rows).Error
	return rows, err
}
