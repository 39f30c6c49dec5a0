package service

import (
	"github.com/malteschaefer1/procafocia/internal/config"
	"github.com/malteschaefer1/procafocia/internal/pcf/catalog"
	"github.com/malteschaefer1/procafocia/internal/pcf/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services wires the domain services. The method registry and factor index
// are loaded once here and shared read-only across requests.
type Services struct {
	Product     *ProductService
	BOM         *BOMService
	Mapping     *MappingService
	Calculation *CalculationService
	Export      *ExportService

	Methods   *catalog.MethodRegistry
	Factors   *catalog.FactorIndex
	Scenarios *catalog.ScenarioRegistry
}

// NewServices builds the service set. rdb may be nil (no run cache); MinIO is
// only attached when an endpoint is configured.
func NewServices(repos *repository.Repositories, methods *catalog.MethodRegistry, factors *catalog.FactorIndex, scenarios *catalog.ScenarioRegistry, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO unavailable, run exports stay local", zap.Error(err))
			minioClient = nil
		}
	}

	locks := newProductLocks()
	mappingSvc := NewMappingService(repos.Mapping, repos.BOM, repos.Product, factors, cfg.Mapping.SimilarityThreshold, locks, logger)
	bomSvc := NewBOMService(repos, mappingSvc, locks, logger)
	calcSvc := NewCalculationService(repos.Run, repos.BOM, repos.Product, repos.Mapping, methods, factors, scenarios, rdb, locks, logger)

	return &Services{
		Product:     NewProductService(repos.Product, logger),
		BOM:         bomSvc,
		Mapping:     mappingSvc,
		Calculation: calcSvc,
		Export:      NewExportService(repos.Run, repos.Product, minioClient, cfg.MinIO.Bucket, logger),
		Methods:     methods,
		Factors:     factors,
		Scenarios:   scenarios,
	}
}
