package service

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/hana/catnip/internal/domain"
	"github.com/hana/catnip/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// newTestDB opens an isolated in-memory database with the schema migrated.
// Each call gets its own namespace so tests cannot see each other's rows.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&domain.Cat{}, &domain.CatLike{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func newTestServices(t *testing.T) (*gorm.DB, *IngestService, *LikeService) {
	t.Helper()

	db := newTestDB(t)
	catRepo := repository.NewCatRepository(db)
	likeRepo := repository.NewLikeRepository(db)

	ingest := NewIngestService(catRepo, nil, nil)
	likes := NewLikeService(db, catRepo, likeRepo, nil, nil)

	return db, ingest, likes
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var count int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}
