package service

import (
	"context"
	"time"

	"github.com/hana/catnip/internal/catapi"
	"github.com/hana/catnip/internal/domain"
	"github.com/hana/catnip/internal/logger"
	"github.com/hana/catnip/internal/repository"
)

// detachedTimeout bounds a fire-and-forget ingestion run so a stuck store
// call cannot leak goroutines.
const detachedTimeout = 30 * time.Second

// IngestService deduplicates externally fetched images against the cats
// table and inserts the unseen ones. It never blocks or fails the request
// that triggered it: the detached entry point runs after the response is
// produced and swallows every error into the log.
type IngestService struct {
	catRepo *repository.CatRepository
	mirror  *MirrorService
	logger  *logger.Logger
}

// NewIngestService creates a new ingest service.
// Parameters:
//   - catRepo: cat repository.
//   - mirror: optional mirror service, nil to disable mirroring.
//   - log: base logger.
// Returns:
//   - *IngestService: initialized service.
func NewIngestService(catRepo *repository.CatRepository, mirror *MirrorService, log *logger.Logger) *IngestService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &IngestService{
		catRepo: catRepo,
		mirror:  mirror,
		logger:  log,
	}
}

// IngestStats holds counters for one ingestion run.
type IngestStats struct {
	Total    int
	Existing int
	Inserted int
}

// Ingest persists the unseen subset of the given images. Re-ingesting an
// already seen external id never creates a duplicate row: the batch is
// diffed against the store first, and the insert itself ignores conflicts
// on api_id so two overlapping runs cannot race each other into an error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - images: images fetched from the external source.
// Returns:
//   - *IngestStats: counters for the run.
//   - error: non-nil if a store operation fails.
func (s *IngestService) Ingest(ctx context.Context, images []catapi.Image) (*IngestStats, error) {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "ingest")
	stats := &IngestStats{Total: len(images)}

	if len(images) == 0 {
		log.Debug("No images to ingest")
		return stats, nil
	}

	apiIDs := make([]string, 0, len(images))
	for _, img := range images {
		apiIDs = append(apiIDs, img.ID)
	}

	existing, err := s.catRepo.FindByAPIIDs(ctx, apiIDs)
	if err != nil {
		return stats, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, cat := range existing {
		seen[cat.APIID] = struct{}{}
	}
	stats.Existing = len(seen)

	var missing []domain.Cat
	for _, img := range images {
		if _, ok := seen[img.ID]; ok {
			continue
		}
		// Guard against duplicate ids inside one batch
		seen[img.ID] = struct{}{}
		missing = append(missing, domain.Cat{
			APIID:    img.ID,
			ImageURL: img.URL,
			Width:    img.Width,
			Height:   img.Height,
		})
	}

	if len(missing) == 0 {
		log.WithFields(logger.Fields{logger.FieldCount: stats.Total}).
			Debug("All images already ingested")
		return stats, nil
	}

	if err := s.catRepo.InsertNew(ctx, missing); err != nil {
		return stats, err
	}
	stats.Inserted = len(missing)

	log.WithFields(logger.Fields{
		"total":    stats.Total,
		"existing": stats.Existing,
		"inserted": stats.Inserted,
	}).Info("Ingested new cat images")

	if s.mirror != nil {
		s.mirror.MirrorCats(ctx, missing)
	}

	return stats, nil
}

// IngestDetached schedules ingestion to run after the caller has moved on.
// Errors are logged and swallowed so a persistence hiccup can never block
// or fail image display.
// Parameters:
//   - images: images fetched from the external source.
// Returns: none.
func (s *IngestService) IngestDetached(images []catapi.Image) {
	if len(images) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), detachedTimeout)
		defer cancel()
		ctx = s.logger.WithField(logger.FieldComponent, "ingest").WithContext(ctx)

		if _, err := s.Ingest(ctx, images); err != nil {
			logger.FromContext(ctx).WithError(err).Error("Detached ingestion failed")
		}
	}()
}
