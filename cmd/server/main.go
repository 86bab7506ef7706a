package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parcelworks/siteline/internal/config"
	"github.com/parcelworks/siteline/internal/database"
	"github.com/parcelworks/siteline/internal/handlers"
	"github.com/parcelworks/siteline/internal/logger"
	"github.com/parcelworks/siteline/internal/middleware"
	"github.com/parcelworks/siteline/internal/providers"
	"github.com/parcelworks/siteline/internal/render"
	"github.com/parcelworks/siteline/internal/repository"
	"github.com/parcelworks/siteline/internal/services"
	"github.com/paulmach/orb"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting Siteline API", map[string]interface{}{
		"version":     "0.1.0",
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool and apply the schema
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal("Failed to run migrations", err, nil)
	}

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Open the report artifact bucket
	artifacts, closeBucket, err := repository.OpenArtifactStore(ctx, cfg.Storage.BucketURL)
	if err != nil {
		log.Fatal("Failed to open artifact store", err, map[string]interface{}{
			"bucket": cfg.Storage.BucketURL,
		})
	}
	defer closeBucket()

	// Wire external data providers
	creds := providers.NewStaticCredentialStore(cfg.Providers.Keys)
	timeout := time.Duration(cfg.Providers.TimeoutSeconds) * time.Second

	resolver := providers.NewHTTPAddressResolver(cfg.Providers.AddressURL, creds, timeout)
	hazard := providers.NewHTTPHazardProvider(cfg.Providers.HazardURL, creds, timeout)
	geotech := providers.NewHTTPGeotechProvider(cfg.Providers.GeotechURL, creds, timeout)
	climate := providers.NewHTTPClimateProvider(cfg.Providers.ClimateURL, creds, timeout)
	land := providers.NewHTTPLandProvider(cfg.Providers.LandURL, creds, timeout)

	// Single nationwide planning service for now. Authority-specific
	// providers register ahead of it with narrower bounds.
	nationwide := providers.NewHTTPRegionalProvider("zoning", cfg.Providers.ZoningURL, providers.Region{
		Bound: orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}},
	}, creds, timeout)
	registry := providers.NewRegionalRegistry(nationwide)

	fetchers := providers.NewFetcherSet(registry, hazard, geotech, climate, land)

	// Initialize repository and service layers
	locationRepo := repository.NewPostgresLocationRepository(db)
	jobRepo := repository.NewPostgresJobRepository(db)
	reportRepo := repository.NewPostgresReportRepository(db)

	cache := services.NewLocationCache(locationRepo, resolver, fetchers, log)
	orchestrator := services.NewJobOrchestrator(jobRepo, cache, log)
	coordinator := services.NewReportCoordinator(orchestrator, reportRepo, artifacts, render.NewJSONRenderer(), log)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Initialize handlers
	jobHandler := handlers.NewJobHandler(orchestrator)
	reportHandler := handlers.NewReportHandler(coordinator)
	addressHandler := handlers.NewAddressHandler(resolver)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.Create)
			jobs.GET("", jobHandler.List)
			jobs.GET("/:id", jobHandler.Get)
			jobs.PATCH("/:id", jobHandler.Update)
			jobs.PUT("/:id/status", jobHandler.UpdateStatus)
			jobs.POST("/:id/cancel", jobHandler.Cancel)
			jobs.POST("/:id/collect", jobHandler.Collect)
			jobs.POST("/:id/refresh", jobHandler.Refresh)

			jobs.POST("/:id/reports", reportHandler.Generate)
			jobs.GET("/:id/reports", reportHandler.List)
			jobs.GET("/:id/reports/:reportId/content", reportHandler.Content)
		}
		v1.GET("/addresses/autocomplete", addressHandler.Autocomplete)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
