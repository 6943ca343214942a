package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hana/catnip/internal/catapi"
	"github.com/hana/catnip/internal/config"
	"github.com/hana/catnip/internal/logger"
	"github.com/hana/catnip/internal/repository"
	"github.com/hana/catnip/internal/service"
	"github.com/hana/catnip/internal/storage"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "catnip-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	pages := flag.Int("pages", 1, "Number of search pages to fetch")
	limit := flag.Int("limit", 25, "Images per page")
	mimeTypes := flag.String("mime-types", "", "Mime type filter (e.g. gif), empty for all")
	mirror := flag.Bool("mirror", false, "Mirror unmirrored images to object storage after ingesting")
	mirrorLimit := flag.Int("mirror-limit", 100, "Maximum images to mirror in one run")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		"pages":      *pages,
		"limit":      *limit,
		"mime_types": *mimeTypes,
		"mirror":     *mirror,
	}).Info("Starting backfill")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	catRepo := repository.NewCatRepository(db)

	sourceClient := catapi.NewClient(&catapi.ClientConfig{
		BaseURL: cfg.CatAPI.BaseURL,
		APIKey:  cfg.CatAPI.APIKey,
		Timeout: cfg.CatAPI.Timeout,
	})

	var mirrorService *service.MirrorService
	if *mirror {
		if !cfg.Mirror.Enabled {
			appLogger.Fatal("Mirroring requested but mirror.enabled is false in config")
		}
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
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if s3store, ok := store.(*storage.S3Storage); ok {
			if err := s3store.EnsureBucket(context.Background()); err != nil {
				appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
			}
		}
		mirrorService = service.NewMirrorService(catRepo, sourceClient, store, cfg.Mirror.Timeout, appLogger)
	}

	// Ingest synchronously; the mirror pass runs separately below so the
	// dedupe stats stay readable
	ingestService := service.NewIngestService(catRepo, nil, appLogger)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	total, inserted := 0, 0
	for page := 0; page < *pages; page++ {
		if ctx.Err() != nil {
			break
		}

		images := sourceClient.Search(ctx, *limit, *mimeTypes)
		if len(images) == 0 {
			appLogger.Warn("Image source returned no images, stopping")
			break
		}

		stats, err := ingestService.Ingest(ctx, images)
		if err != nil {
			appLogger.WithError(err).Fatal("Ingestion failed")
		}
		total += stats.Total
		inserted += stats.Inserted
	}

	appLogger.WithFields(logger.Fields{
		"fetched":  total,
		"inserted": inserted,
	}).Info("Backfill completed")

	if mirrorService != nil {
		mirrored, err := mirrorService.MirrorPending(ctx, *mirrorLimit)
		if err != nil {
			appLogger.WithError(err).Fatal("Mirror pass failed")
		}
		appLogger.WithFields(logger.Fields{
			"mirrored": mirrored,
		}).Info("Mirror pass completed")
	}
}
