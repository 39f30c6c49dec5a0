package service

import (
	"context"
	"strings"

	"github.com/malteschaefer1/procafocia/internal/pcf/entity"
	"github.com/malteschaefer1/procafocia/internal/pcf/repository"
	"go.uber.org/zap"
)

// ProductService owns the product registry.
type ProductService struct {
	repo   *repository.ProductRepository
	logger *zap.Logger
}

func NewProductService(repo *repository.ProductRepository, logger *zap.Logger) *ProductService {
	return &ProductService{repo: repo, logger: logger}
}

// RegisterProductInput is the product registration payload.
type RegisterProductInput struct {
	ID             string   `json:"id" binding:"required"`
	Name           string   `json:"name" binding:"required"`
	Version        string   `json:"version"`
	FunctionalUnit string   `json:"functional_unit" binding:"required"`
	LifetimeYears  *float64 `json:"lifetime_years"`
	UseProfile     string   `json:"use_profile"`
}

// Register creates a product. Registering an identical (id, version) pair is
// a no-op that returns the stored record, matching the client's
// ignore-if-exists behavior. A new version for a known id updates the record
// in place; runs keep the version they were created with.
func (s *ProductService) Register(ctx context.Context, input *RegisterProductInput) (*entity.Product, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, &ValidationError{Message: "product id is required"}
	}
	if input.Version == "" {
		input.Version = "1.0"
	}

	existing, err := s.repo.GetByID(ctx, input.ID)
	if err != nil && err != repository.ErrNotFound {
		return nil, err
	}
	if existing != nil {
		if existing.Version == input.Version {
			return existing, nil
		}
		existing.Name = input.Name
		existing.Version = input.Version
		existing.FunctionalUnit = input.FunctionalUnit
		existing.LifetimeYears = input.LifetimeYears
		existing.UseProfile = input.UseProfile
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("Product re-registered",
			zap.String("product_id", existing.ID),
			zap.String("version", existing.Version),
		)
		return existing, nil
	}

	product := &entity.Product{
		ID:             input.ID,
		Name:           input.Name,
		Version:        input.Version,
		FunctionalUnit: input.FunctionalUnit,
		LifetimeYears:  input.LifetimeYears,
		UseProfile:     input.UseProfile,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("Product registered",
		zap.String("product_id", product.ID),
		zap.String("version", product.Version),
	)
	return product, nil
}

// Get returns a product by id.
func (s *ProductService) Get(ctx context.Context, id string) (*entity.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all registered products.
func (s *ProductService) List(ctx context.Context) ([]entity.Product, error) {
	return s.repo.List(ctx)
}
