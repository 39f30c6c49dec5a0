package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// generateID returns a 32-char hex id.
func generateID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:32]
}

// Repositories bundles all persistence access.
type Repositories struct {
	db *gorm.DB

	Product *ProductRepository
	BOM     *BOMRepository
	Mapping *MappingRepository
	Run     *RunRepository
}

// NewRepositories creates the repository set on a shared gorm handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:      db,
		Product: NewProductRepository(db),
		BOM:     NewBOMRepository(db),
		Mapping: NewMappingRepository(db),
		Run:     NewRunRepository(db),
	}
}

// Transaction runs fn against a repository set bound to one database
// transaction. Everything fn writes commits together or not at all.
func (r *Repositories) Transaction(ctx context.Context, fn func(*Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.withTx(tx))
	})
}

func (r *Repositories) withTx(tx *gorm.DB) *Repositories {
	return &Repositories{
		db:      tx,
		Product: &ProductRepository{db: tx},
		BOM:     &BOMRepository{db: tx},
		Mapping: r.Mapping.withTx(tx),
		Run:     &RunRepository{db: tx},
	}
}
