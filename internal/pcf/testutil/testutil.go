package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/malteschaefer1/procafocia/internal/config"
	"github.com/malteschaefer1/procafocia/internal/pcf/catalog"
	"github.com/malteschaefer1/procafocia/internal/pcf/entity"
	"github.com/malteschaefer1/procafocia/internal/pcf/repository"
	"github.com/malteschaefer1/procafocia/internal/pcf/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB       *gorm.DB
	Repos    *repository.Repositories
	Services *service.Services
	Router   *gin.Engine
	T        *testing.T
}

// SetupTestDB opens an isolated in-memory SQLite database and migrates the
// domain tables. Each call gets its own database; it disappears with the
// connection, so no cleanup is needed.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&entity.Product{},
		&entity.BOMLineItem{},
		&entity.MappingCandidate{},
		&entity.CalculationRun{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	return db
}

// TestConfig returns a config with production defaults and no external
// services (no Redis, no MinIO).
func TestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Mapping.SimilarityThreshold = 0.55
	return cfg
}

// SetupEnv wires repositories and services against a fresh in-memory
// database with the built-in method, factor, and scenario catalogs.
func SetupEnv(t *testing.T) *TestEnv {
	t.Helper()

	db := SetupTestDB(t)
	repos := repository.NewRepositories(db)
	methods, err := catalog.NewMethodRegistry(catalog.DefaultMethods(), "iso-basic")
	if err != nil {
		t.Fatalf("Failed to build method registry: %v", err)
	}
	factors, err := catalog.NewFactorIndex(catalog.DefaultFactors())
	if err != nil {
		t.Fatalf("Failed to build factor index: %v", err)
	}
	scenarios, err := catalog.NewScenarioRegistry(catalog.DefaultScenarios())
	if err != nil {
		t.Fatalf("Failed to build scenario registry: %v", err)
	}
	svcs := service.NewServices(repos, methods, factors, scenarios, nil, TestConfig(), zap.NewNop())

	return &TestEnv{
		DB:       db,
		Repos:    repos,
		Services: svcs,
		Router:   SetupRouter(),
		T:        t,
	}
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedProduct creates a product row directly in the database
func SeedProduct(t *testing.T, db *gorm.DB, id, name, version string) *entity.Product {
	t.Helper()
	p := &entity.Product{
		ID:             id,
		Name:           name,
		Version:        version,
		FunctionalUnit: "1 unit",
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}
	return p
}
