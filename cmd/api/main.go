package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hana/catnip/internal/api"
	"github.com/hana/catnip/internal/api/handler"
	"github.com/hana/catnip/internal/auth"
	"github.com/hana/catnip/internal/catapi"
	"github.com/hana/catnip/internal/config"
	"github.com/hana/catnip/internal/logger"
	"github.com/hana/catnip/internal/repository"
	"github.com/hana/catnip/internal/service"
	"github.com/hana/catnip/internal/storage"
)

func main() {
	// Initialize logger first so everything below can log through it
	log := logger.NewDefault()
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn("AUTH_JWT_SECRET is not set, all requests will be treated as anonymous")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	catRepo := repository.NewCatRepository(db)
	likeRepo := repository.NewLikeRepository(db)

	// Image source client
	sourceClient := catapi.NewClient(&catapi.ClientConfig{
		BaseURL: cfg.CatAPI.BaseURL,
		APIKey:  cfg.CatAPI.APIKey,
		Timeout: cfg.CatAPI.Timeout,
	})

	// Optional image mirror (S3-compatible storage)
	var mirrorService *service.MirrorService
	var urls service.URLResolver
	if cfg.Mirror.Enabled {
		store, err := storage.NewStorage(&storage.S3Config{
			Type:      storage.StorageType(cfg.Storage.Type),
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize storage")
		}
		if s3store, ok := store.(*storage.S3Storage); ok {
			if err := s3store.EnsureBucket(context.Background()); err != nil {
				log.WithError(err).Fatal("Failed to ensure storage bucket")
			}
		}
		mirrorService = service.NewMirrorService(catRepo, sourceClient, store, cfg.Mirror.Timeout, log)
		urls = store
		log.Info("Image mirroring enabled")
	}

	// Initialize services
	ingestService := service.NewIngestService(catRepo, mirrorService, log)
	likeService := service.NewLikeService(db, catRepo, likeRepo, urls, log)

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	catHandler := handler.NewCatHandler(
		sourceClient,
		ingestService,
		likeService,
		cfg.CatAPI.DefaultLimit,
		cfg.CatAPI.MimeTypes,
	)

	// Setup router
	router := api.SetupRouter(catHandler, verifier, cfg, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}

	log.Info("Server exited")
}
