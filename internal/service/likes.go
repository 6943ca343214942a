package service

import (
	"context"

	"github.com/hana/catnip/internal/domain"
	"github.com/hana/catnip/internal/logger"
	"github.com/hana/catnip/internal/repository"
	"gorm.io/gorm"
)

// URLResolver maps an object storage key to a public URL. Satisfied by
// storage.ObjectStorage; nil disables mirror URLs in enriched results.
type URLResolver interface {
	GetURL(key string) string
}

// LikeService implements the like toggle, like enrichment, and popularity
// queries. Every failure is absorbed here: callers receive a structured
// false/empty outcome, never an error, and are expected to degrade to
// "zero likes, not liked" in the UI.
type LikeService struct {
	db       *gorm.DB
	catRepo  *repository.CatRepository
	likeRepo *repository.LikeRepository
	urls     URLResolver
	logger   *logger.Logger
}

// NewLikeService creates a new like service.
// Parameters:
//   - db: GORM handle used for the toggle transaction.
//   - catRepo: cat repository.
//   - likeRepo: like repository.
//   - urls: optional resolver for mirror URLs, nil to omit them.
//   - log: base logger.
// Returns:
//   - *LikeService: initialized service.
func NewLikeService(db *gorm.DB, catRepo *repository.CatRepository, likeRepo *repository.LikeRepository, urls URLResolver, log *logger.Logger) *LikeService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &LikeService{
		db:       db,
		catRepo:  catRepo,
		likeRepo: likeRepo,
		urls:     urls,
		logger:   log,
	}
}

// ToggleResult is the outcome of one like toggle.
type ToggleResult struct {
	Success   bool  `json:"success"`
	IsLiked   bool  `json:"is_liked"`
	LikeCount int64 `json:"like_count"`
}

// Toggle flips the like relation between a user and the cat resolved from
// an external id, and returns the new state with a freshly derived count.
// An unauthenticated user, an external id that was never ingested, or a
// store failure all yield Success=false; on a store failure the last
// observable state is returned where it is known.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: authenticated user id, empty when anonymous.
//   - apiID: external id of the cat image.
// Returns:
//   - ToggleResult: new liked state and like count.
func (s *LikeService) Toggle(ctx context.Context, userID, apiID string) ToggleResult {
	log := logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldComponent: "likes",
		logger.FieldCatAPIID:  apiID,
	})

	if userID == "" {
		log.Warn("Toggle without an authenticated user")
		return ToggleResult{}
	}

	cat, err := s.catRepo.GetByAPIID(ctx, apiID)
	if err != nil {
		log.WithError(err).Error("Failed to resolve cat for toggle")
		return ToggleResult{}
	}
	if cat == nil {
		log.Warn("Toggle on an external id that was never ingested")
		return ToggleResult{}
	}

	var result ToggleResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likeRepo := s.likeRepo.WithTx(tx)

		existing, err := likeRepo.Find(ctx, cat.ID, userID)
		if err != nil {
			return err
		}
		// Remember the pre-mutation state so a failed write can report it
		result.IsLiked = existing != nil

		if existing != nil {
			if err := likeRepo.Delete(ctx, cat.ID, userID); err != nil {
				return err
			}
			result.IsLiked = false
		} else {
			if err := likeRepo.Create(ctx, &domain.CatLike{CatID: cat.ID, UserID: userID}); err != nil {
				return err
			}
			result.IsLiked = true
		}

		count, err := likeRepo.CountByCat(ctx, cat.ID)
		if err != nil {
			return err
		}
		result.LikeCount = count
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Like toggle transaction failed")
		result.Success = false
		return result
	}

	result.Success = true
	return result
}

// Enrich joins externally fetched image metadata with persisted like data.
// Only external ids that exist as cat rows produce an entry; callers merge
// by external id and treat absence as "zero likes, not liked". Any store
// failure degrades to an empty result.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - apiIDs: external ids to enrich.
//   - userID: current viewer, empty when anonymous.
// Returns:
//   - []domain.EnrichedCat: one entry per resolved cat, in input order.
func (s *LikeService) Enrich(ctx context.Context, apiIDs []string, userID string) []domain.EnrichedCat {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "likes")

	cats, err := s.catRepo.FindByAPIIDs(ctx, apiIDs)
	if err != nil {
		log.WithError(err).Error("Failed to resolve cats for enrichment")
		return []domain.EnrichedCat{}
	}
	if len(cats) == 0 {
		return []domain.EnrichedCat{}
	}

	byAPIID := make(map[string]domain.Cat, len(cats))
	catIDs := make([]uint, 0, len(cats))
	for _, cat := range cats {
		byAPIID[cat.APIID] = cat
		catIDs = append(catIDs, cat.ID)
	}

	tallies, err := s.likeRepo.TallyByCatIDs(ctx, catIDs)
	if err != nil {
		log.WithError(err).Error("Failed to tally likes for enrichment")
		return []domain.EnrichedCat{}
	}
	counts := make(map[uint]int64, len(tallies))
	for _, t := range tallies {
		counts[t.CatID] = t.Count
	}

	liked := make(map[uint]struct{})
	if userID != "" {
		likedIDs, err := s.likeRepo.LikedCatIDs(ctx, userID, catIDs)
		if err != nil {
			log.WithError(err).Error("Failed to get liked cats for enrichment")
			return []domain.EnrichedCat{}
		}
		for _, id := range likedIDs {
			liked[id] = struct{}{}
		}
	}

	results := make([]domain.EnrichedCat, 0, len(cats))
	emitted := make(map[string]struct{}, len(cats))
	for _, apiID := range apiIDs {
		cat, ok := byAPIID[apiID]
		if !ok {
			continue
		}
		if _, dup := emitted[apiID]; dup {
			continue
		}
		emitted[apiID] = struct{}{}
		results = append(results, s.enrichedCat(cat, counts, liked))
	}

	return results
}

// Popular returns the top-n cats ranked by like count, most liked first,
// ties broken by internal id ascending (ingestion order). Cats that were
// never ingested cannot appear, and neither can cats without likes.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - n: maximum number of cats to return.
// Returns:
//   - []domain.EnrichedCat: ranking entries, empty on failure.
func (s *LikeService) Popular(ctx context.Context, n int) []domain.EnrichedCat {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "likes")

	if n <= 0 {
		return []domain.EnrichedCat{}
	}

	tallies, err := s.likeRepo.TopCats(ctx, n)
	if err != nil {
		log.WithError(err).Error("Failed to rank popular cats")
		return []domain.EnrichedCat{}
	}
	if len(tallies) == 0 {
		return []domain.EnrichedCat{}
	}

	catIDs := make([]uint, 0, len(tallies))
	counts := make(map[uint]int64, len(tallies))
	for _, t := range tallies {
		catIDs = append(catIDs, t.CatID)
		counts[t.CatID] = t.Count
	}

	cats, err := s.catRepo.GetByIDs(ctx, catIDs)
	if err != nil {
		log.WithError(err).Error("Failed to load popular cats")
		return []domain.EnrichedCat{}
	}
	byID := make(map[uint]domain.Cat, len(cats))
	for _, cat := range cats {
		byID[cat.ID] = cat
	}

	// Preserve the ranking order from the tally query
	results := make([]domain.EnrichedCat, 0, len(tallies))
	for _, t := range tallies {
		cat, ok := byID[t.CatID]
		if !ok {
			continue
		}
		results = append(results, s.enrichedCat(cat, counts, nil))
	}

	return results
}

// Stats returns the total cat and like row counts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of cat rows.
//   - int64: number of like rows.
//   - error: non-nil if a count query fails.
func (s *LikeService) Stats(ctx context.Context) (int64, int64, error) {
	catCount, err := s.catRepo.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	likeCount, err := s.likeRepo.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	return catCount, likeCount, nil
}

func (s *LikeService) enrichedCat(cat domain.Cat, counts map[uint]int64, liked map[uint]struct{}) domain.EnrichedCat {
	catID := cat.ID
	enriched := domain.EnrichedCat{
		APIID:     cat.APIID,
		CatID:     &catID,
		ImageURL:  cat.ImageURL,
		Width:     cat.Width,
		Height:    cat.Height,
		LikeCount: counts[cat.ID],
	}
	if liked != nil {
		_, enriched.IsLikedByUser = liked[cat.ID]
	}
	if s.urls != nil && cat.StorageKey != "" {
		enriched.MirrorURL = s.urls.GetURL(cat.StorageKey)
	}
	return enriched
}
