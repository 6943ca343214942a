package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hana/catnip/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatRepository handles persisted cat image records.
type CatRepository struct {
	db *gorm.DB
}

// NewCatRepository creates a new CatRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *CatRepository: repository instance bound to db.
func NewCatRepository(db *gorm.DB) *CatRepository {
	return &CatRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
// Parameters:
//   - tx: open GORM transaction.
// Returns:
//   - *CatRepository: repository executing against tx.
func (r *CatRepository) WithTx(tx *gorm.DB) *CatRepository {
	return &CatRepository{db: tx}
}

// FindByAPIIDs retrieves cats whose external id is in the given set.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - apiIDs: external ids to look up.
// Returns:
//   - []domain.Cat: matching cat records.
//   - error: non-nil if the query fails.
func (r *CatRepository) FindByAPIIDs(ctx context.Context, apiIDs []string) ([]domain.Cat, error) {
	if len(apiIDs) == 0 {
		return []domain.Cat{}, nil
	}
	var cats []domain.Cat
	if err := r.db.WithContext(ctx).Where("api_id IN ?", apiIDs).Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("failed to find cats by api ids: %w", err)
	}
	return cats, nil
}

// GetByAPIID retrieves a single cat by its external id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - apiID: external id assigned by the image source.
// Returns:
//   - *domain.Cat: cat record if found, nil when absent.
//   - error: non-nil if the lookup fails for reasons other than absence.
func (r *CatRepository) GetByAPIID(ctx context.Context, apiID string) (*domain.Cat, error) {
	var cat domain.Cat
	err := r.db.WithContext(ctx).First(&cat, "api_id = ?", apiID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cat by api id: %w", err)
	}
	return &cat, nil
}

// GetByIDs retrieves cats by internal ids.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: internal ids to look up.
// Returns:
//   - []domain.Cat: matching cat records.
//   - error: non-nil if the query fails.
func (r *CatRepository) GetByIDs(ctx context.Context, ids []uint) ([]domain.Cat, error) {
	if len(ids) == 0 {
		return []domain.Cat{}, nil
	}
	var cats []domain.Cat
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("failed to get cats by ids: %w", err)
	}
	return cats, nil
}

// InsertNew inserts cat rows, silently skipping external ids that already
// exist. The unique index on api_id makes this safe under concurrent
// ingestion of overlapping batches.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - cats: cat rows to insert.
// Returns:
//   - error: non-nil if the insert fails.
func (r *CatRepository) InsertNew(ctx context.Context, cats []domain.Cat) error {
	if len(cats) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "api_id"}},
		DoNothing: true,
	}).Create(&cats).Error
}

// UpdateStorageKey backfills the mirror storage key for a cat. The core
// image fields are never touched after first insert.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: internal cat id.
//   - key: object storage key of the mirrored image.
// Returns:
//   - error: non-nil if the update fails.
func (r *CatRepository) UpdateStorageKey(ctx context.Context, id uint, key string) error {
	return r.db.WithContext(ctx).Model(&domain.Cat{}).
		Where("id = ?", id).
		Update("storage_key", key).Error
}

// ListUnmirrored retrieves cats that have no mirror storage key yet.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.Cat: cats pending mirroring.
//   - error: non-nil if the query fails.
func (r *CatRepository) ListUnmirrored(ctx context.Context, limit int) ([]domain.Cat, error) {
	var cats []domain.Cat
	if err := r.db.WithContext(ctx).
		Where("storage_key = '' OR storage_key IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("failed to list unmirrored cats: %w", err)
	}
	return cats, nil
}

// Count returns the total number of cat rows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of rows.
//   - error: non-nil if the query fails.
func (r *CatRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Cat{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
