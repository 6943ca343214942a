package domain

import "time"

// Cat is a deduplicated record of an image observed from the external
// image source. Rows are created the first time an external id is seen
// and the core fields are never rewritten afterwards; only StorageKey is
// backfilled by the mirror pipeline.
type Cat struct {
	ID         uint      `gorm:"primaryKey" json:"db_id"`
	APIID      string    `gorm:"column:api_id;type:text;not null;uniqueIndex:idx_cats_api_id" json:"api_id"`
	ImageURL   string    `gorm:"column:image_url;type:text;not null" json:"image_url"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	StorageKey string    `gorm:"type:text" json:"storage_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for Cat.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Cat) TableName() string {
	return "cats"
}

// EnrichedCat is the in-memory composite served to clients: the external
// image fields joined with persisted like data. It is never stored.
// A nil CatID means the image has not been ingested yet and therefore
// cannot carry likes.
type EnrichedCat struct {
	APIID         string `json:"id"`
	CatID         *uint  `json:"db_id,omitempty"`
	ImageURL      string `json:"url"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	LikeCount     int64  `json:"like_count"`
	IsLikedByUser bool   `json:"is_liked_by_user"`
	MirrorURL     string `json:"mirror_url,omitempty"`
}
