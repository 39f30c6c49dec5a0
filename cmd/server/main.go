package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/malteschaefer1/procafocia/internal/config"
	"github.com/malteschaefer1/procafocia/internal/middleware"
	"github.com/malteschaefer1/procafocia/internal/pcf/catalog"
	"github.com/malteschaefer1/procafocia/internal/pcf/entity"
	"github.com/malteschaefer1/procafocia/internal/pcf/handler"
	"github.com/malteschaefer1/procafocia/internal/pcf/repository"
	"github.com/malteschaefer1/procafocia/internal/pcf/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting procafocia service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	rdb := initRedis(cfg.Redis)

	methods, err := catalog.LoadMethodRegistry(cfg.Catalog.MethodsFile)
	if err != nil {
		zapLogger.Fatal("Failed to load PCF method catalog", zap.Error(err))
	}
	factors, err := catalog.LoadFactorIndex(cfg.Catalog.FactorsFile)
	if err != nil {
		zapLogger.Fatal("Failed to load reference factor catalog", zap.Error(err))
	}
	scenarios, err := catalog.LoadScenarioRegistry(cfg.Catalog.ScenariosFile)
	if err != nil {
		zapLogger.Fatal("Failed to load scenario catalog", zap.Error(err))
	}
	zapLogger.Info("Catalogs loaded",
		zap.Int("methods", len(methods.List())),
		zap.Int("factors", factors.Len()),
		zap.Int("scenarios", len(scenarios.List())),
	)

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, methods, factors, scenarios, rdb, cfg, zapLogger)
	handlers := handler.NewHandlers(services)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.AutoMigrate(
		&entity.Product{},
		&entity.BOMLineItem{},
		&entity.MappingCandidate{},
		&entity.CalculationRun{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "procafocia"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	products := r.Group("/products")
	{
		products.POST("", h.Product.Register)
		products.GET("", h.Product.List)
		products.GET("/:id", h.Product.Get)
		products.GET("/:id/runs", h.Run.ListByProduct)
		products.GET("/:id/runs/latest", h.Run.Latest)
	}

	bom := r.Group("/bom")
	{
		bom.POST("/upload", h.BOM.Upload)
		bom.POST("/import/:id", h.BOM.Import)
		bom.GET("/:id", h.BOM.Get)
	}

	mapping := r.Group("/mapping")
	{
		mapping.GET("/review/:id", h.Mapping.Review)
		mapping.POST("/review/:id/decide", h.Mapping.Decide)
		mapping.GET("/history/:id", h.Mapping.History)
		mapping.POST("/resolve/:id", h.Mapping.Reresolve)
	}

	pcf := r.Group("/pcf")
	{
		pcf.GET("/methods", h.PCF.ListMethods)
		pcf.POST("/run", h.PCF.Run)
	}

	r.POST("/circularity/run", h.Circularity.Run)
	r.GET("/scenarios", h.Scenario.List)

	runs := r.Group("/runs")
	{
		runs.GET("/:id", h.Run.Get)
		runs.GET("/:id/export", h.Run.Export)
	}
}
