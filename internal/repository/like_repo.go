package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hana/catnip/internal/domain"
	"gorm.io/gorm"
)

// LikeRepository handles the user-to-cat like relation.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new LikeRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *LikeRepository: repository instance bound to db.
func NewLikeRepository(db *gorm.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
// Parameters:
//   - tx: open GORM transaction.
// Returns:
//   - *LikeRepository: repository executing against tx.
func (r *LikeRepository) WithTx(tx *gorm.DB) *LikeRepository {
	return &LikeRepository{db: tx}
}

// Find retrieves the like row for a (cat, user) pair.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - catID: internal cat id.
//   - userID: owning user id.
// Returns:
//   - *domain.CatLike: like row if present, nil when absent.
//   - error: non-nil if the lookup fails for reasons other than absence.
func (r *LikeRepository) Find(ctx context.Context, catID uint, userID string) (*domain.CatLike, error) {
	var like domain.CatLike
	err := r.db.WithContext(ctx).First(&like, "cat_id = ? AND user_id = ?", catID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find like: %w", err)
	}
	return &like, nil
}

// Create inserts a like row. The unique index on (cat_id, user_id) rejects
// a second like from the same user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - like: like row to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *LikeRepository) Create(ctx context.Context, like *domain.CatLike) error {
	return r.db.WithContext(ctx).Create(like).Error
}

// Delete removes the like row for a (cat, user) pair.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - catID: internal cat id.
//   - userID: owning user id.
// Returns:
//   - error: non-nil if the delete fails.
func (r *LikeRepository) Delete(ctx context.Context, catID uint, userID string) error {
	return r.db.WithContext(ctx).
		Delete(&domain.CatLike{}, "cat_id = ? AND user_id = ?", catID, userID).Error
}

// CountByCat counts like rows referencing one cat. Counts are always
// derived from the relation, never read from a stored counter.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - catID: internal cat id.
// Returns:
//   - int64: number of like rows.
//   - error: non-nil if the query fails.
func (r *LikeRepository) CountByCat(ctx context.Context, catID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.CatLike{}).
		Where("cat_id = ?", catID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// TallyByCatIDs returns the like count per cat for the given set of
// internal ids. Cats without likes produce no tally entry.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - catIDs: internal cat ids.
// Returns:
//   - []domain.LikeTally: per-cat counts.
//   - error: non-nil if the query fails.
func (r *LikeRepository) TallyByCatIDs(ctx context.Context, catIDs []uint) ([]domain.LikeTally, error) {
	if len(catIDs) == 0 {
		return []domain.LikeTally{}, nil
	}
	var tallies []domain.LikeTally
	if err := r.db.WithContext(ctx).Model(&domain.CatLike{}).
		Select("cat_id AS cat_id, COUNT(*) AS count").
		Where("cat_id IN ?", catIDs).
		Group("cat_id").
		Scan(&tallies).Error; err != nil {
		return nil, fmt.Errorf("failed to tally likes: %w", err)
	}
	return tallies, nil
}

// LikedCatIDs returns the subset of the given cats liked by a user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: user to check.
//   - catIDs: internal cat ids to filter.
// Returns:
//   - []uint: cat ids liked by the user.
//   - error: non-nil if the query fails.
func (r *LikeRepository) LikedCatIDs(ctx context.Context, userID string, catIDs []uint) ([]uint, error) {
	if userID == "" || len(catIDs) == 0 {
		return []uint{}, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&domain.CatLike{}).
		Where("user_id = ? AND cat_id IN ?", userID, catIDs).
		Pluck("cat_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get liked cat ids: %w", err)
	}
	return ids, nil
}

// TopCats returns the n most liked cats, most liked first. Equal counts
// are ordered by internal id ascending so results are stable across calls.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - n: maximum number of cats to return.
// Returns:
//   - []domain.LikeTally: per-cat counts in ranking order.
//   - error: non-nil if the query fails.
func (r *LikeRepository) TopCats(ctx context.Context, n int) ([]domain.LikeTally, error) {
	var tallies []domain.LikeTally
	if err := r.db.WithContext(ctx).Model(&domain.CatLike{}).
		Select("cat_id AS cat_id, COUNT(*) AS count").
		Group("cat_id").
		Order("count DESC, cat_id ASC").
		Limit(n).
		Scan(&tallies).Error; err != nil {
		return nil, fmt.Errorf("failed to rank cats: %w", err)
	}
	return tallies, nil
}

// Count returns the total number of like rows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of rows.
//   - error: non-nil if the query fails.
func (r *LikeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.CatLike{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
