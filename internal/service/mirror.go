package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/hana/catnip/internal/catapi"
	"github.com/hana/catnip/internal/domain"
	"github.com/hana/catnip/internal/logger"
	"github.com/hana/catnip/internal/repository"
	"github.com/hana/catnip/internal/storage"
	_ "golang.org/x/image/webp"
)

// MirrorService copies ingested cat images into S3-compatible object
// storage. Mirroring is strictly best-effort: it runs off the request
// path, every failure is logged and swallowed, and only the storage_key
// column is ever backfilled on a cat row.
type MirrorService struct {
	catRepo *repository.CatRepository
	client  *catapi.Client
	store   storage.ObjectStorage
	timeout time.Duration
	logger  *logger.Logger
}

// NewMirrorService creates a new mirror service.
// Parameters:
//   - catRepo: cat repository for storage key backfill.
//   - client: image source client used to download originals.
//   - store: object storage destination.
//   - timeout: per-image deadline; zero uses a 60s default.
//   - log: base logger.
// Returns:
//   - *MirrorService: initialized service.
func NewMirrorService(catRepo *repository.CatRepository, client *catapi.Client, store storage.ObjectStorage, timeout time.Duration, log *logger.Logger) *MirrorService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &MirrorService{
		catRepo: catRepo,
		client:  client,
		store:   store,
		timeout: timeout,
		logger:  log,
	}
}

// MirrorCats mirrors the given cats, skipping any that already carry a
// storage key. Individual failures are logged and do not stop the batch.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - cats: cat rows to mirror.
// Returns:
//   - int: number of cats successfully mirrored.
func (s *MirrorService) MirrorCats(ctx context.Context, cats []domain.Cat) int {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "mirror")

	mirrored := 0
	for _, cat := range cats {
		if cat.StorageKey != "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if err := s.mirrorOne(ctx, cat); err != nil {
			log.WithField(logger.FieldCatAPIID, cat.APIID).
				WithError(err).Warn("Failed to mirror cat image")
			continue
		}
		mirrored++
	}

	if mirrored > 0 {
		log.WithFields(logger.Fields{logger.FieldCount: mirrored}).Info("Mirrored cat images")
	}
	return mirrored
}

// MirrorPending mirrors cats that have no storage key yet, oldest first.
// Used by the backfill CLI.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of cats to process.
// Returns:
//   - int: number of cats successfully mirrored.
//   - error: non-nil if the pending list cannot be loaded.
func (s *MirrorService) MirrorPending(ctx context.Context, limit int) (int, error) {
	cats, err := s.catRepo.ListUnmirrored(ctx, limit)
	if err != nil {
		return 0, err
	}
	return s.MirrorCats(ctx, cats), nil
}

func (s *MirrorService) mirrorOne(ctx context.Context, cat domain.Cat) error {
	// Bound each image so one slow download cannot eat the whole run
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Cat rows with a missing id come from a batch insert that did not
	// reload ids; resolve through the external id instead.
	if cat.ID == 0 {
		loaded, err := s.catRepo.GetByAPIID(ctx, cat.APIID)
		if err != nil {
			return err
		}
		if loaded == nil {
			return fmt.Errorf("cat %s not found for mirroring", cat.APIID)
		}
		cat = *loaded
	}

	data, contentType, err := s.client.Download(ctx, cat.ImageURL)
	if err != nil {
		return err
	}

	// Refuse to mirror bytes that do not decode as an image
	format, err := probeImageFormat(data)
	if err != nil {
		return fmt.Errorf("undecodable image for %s: %w", cat.APIID, err)
	}
	if contentType == "" {
		contentType = "image/" + format
	}

	key := fmt.Sprintf("cats/%s.%s", cat.APIID, formatExtension(format))

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			return err
		}
	}

	return s.catRepo.UpdateStorageKey(ctx, cat.ID, key)
}

// probeImageFormat decodes just the image header and reports the format.
// gif, jpeg, png, and webp are registered.
func probeImageFormat(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return format, nil
}

func formatExtension(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
