package domain

import "time"

// CatLike is the user-to-cat like relation. At most one row exists per
// (cat, user) pair; the rows themselves are the only source of truth for
// both the per-cat like count and the per-user liked flag. No denormalized
// counter is kept anywhere.
type CatLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CatID     uint      `gorm:"column:cat_id;not null;uniqueIndex:idx_cat_likes_cat_user" json:"cat_id"`
	UserID    string    `gorm:"column:user_id;type:text;not null;uniqueIndex:idx_cat_likes_cat_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for CatLike.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (CatLike) TableName() string {
	return "cat_likes"
}

// LikeTally carries an aggregated like count for one cat, produced by the
// grouped count query in the like repository.
type LikeTally struct {
	CatID uint
	Count int64
}
