package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hana/catnip/internal/api"
	"github.com/hana/catnip/internal/api/handler"
	"github.com/hana/catnip/internal/auth"
	"github.com/hana/catnip/internal/catapi"
	"github.com/hana/catnip/internal/config"
	"github.com/hana/catnip/internal/domain"
	"github.com/hana/catnip/internal/logger"
	"github.com/hana/catnip/internal/repository"
	"github.com/hana/catnip/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testJWTSecret = "handler-test-secret"

var handlerDBSeq atomic.Int64

type testEnv struct {
	router  http.Handler
	db      *gorm.DB
	ingest  *service.IngestService
	likes   *service.LikeService
	catsURL string
}

// newTestEnv wires the full router against an in-memory database and a
// stubbed image source.
func newTestEnv(t *testing.T, upstream http.HandlerFunc) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:handlerdb%d?mode=memory&cache=shared", handlerDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.Cat{}, &domain.CatLike{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	catRepo := repository.NewCatRepository(db)
	likeRepo := repository.NewLikeRepository(db)

	sourceClient := catapi.NewClient(&catapi.ClientConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})

	ingestService := service.NewIngestService(catRepo, nil, nil)
	likeService := service.NewLikeService(db, catRepo, likeRepo, nil, nil)

	catHandler := handler.NewCatHandler(sourceClient, ingestService, likeService, 10, "")
	verifier := auth.NewVerifier(testJWTSecret)

	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Server.CORS.AllowAllOrigins = true

	router := api.SetupRouter(catHandler, verifier, cfg, logger.GetDefault())

	return &testEnv{
		router:  router,
		db:      db,
		ingest:  ingestService,
		likes:   likeService,
		catsURL: srv.URL,
	}
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func doRequest(env *testEnv, method, path, body, authorization string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func ingestImages(t *testing.T, env *testEnv, ids ...string) {
	t.Helper()
	images := make([]catapi.Image, 0, len(ids))
	for _, id := range ids {
		images = append(images, catapi.Image{ID: id, URL: "https://cdn.example/" + id + ".jpg", Width: 100, Height: 100})
	}
	if _, err := env.ingest.Ingest(context.Background(), images); err != nil {
		t.Fatalf("failed to ingest: %v", err)
	}
}

type catListResponse struct {
	Cats []struct {
		ID            string `json:"id"`
		DBID          *uint  `json:"db_id"`
		URL           string `json:"url"`
		LikeCount     int64  `json:"like_count"`
		IsLikedByUser bool   `json:"is_liked_by_user"`
	} `json:"cats"`
	Total int `json:"total"`
}

func TestListCatsMergesLikeData(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"a1","url":"https://cdn.example/a1.jpg","width":100,"height":100},
			{"id":"b2","url":"https://cdn.example/b2.jpg","width":200,"height":150}
		]`))
	})

	ingestImages(t, env, "a1")
	env.likes.Toggle(context.Background(), "user-1", "a1")

	w := doRequest(env, http.MethodGet, "/api/v1/cats?limit=2", "", bearerToken(t, "user-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp catListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Cats) != 2 {
		t.Fatalf("response = %+v, want 2 cats", resp)
	}

	a1 := resp.Cats[0]
	if a1.ID != "a1" || a1.LikeCount != 1 || !a1.IsLikedByUser || a1.DBID == nil {
		t.Errorf("a1 entry = %+v, want ingested, liked, count 1", a1)
	}
	// b2 is not ingested yet at response time: it degrades to zero likes
	// instead of being dropped from the feed
	b2 := resp.Cats[1]
	if b2.ID != "b2" || b2.LikeCount != 0 || b2.IsLikedByUser {
		t.Errorf("b2 entry = %+v, want zero likes, not liked", b2)
	}
}

func TestListCatsSchedulesIngestion(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"fresh","url":"https://cdn.example/fresh.jpg","width":10,"height":10}]`))
	})

	w := doRequest(env, http.MethodGet, "/api/v1/cats", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	// Ingestion is detached from the request, so give it a moment
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var count int64
		if err := env.db.Model(&domain.Cat{}).Where("api_id = ?", "fresh").Count(&count).Error; err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("detached ingestion never persisted the fetched image")
}

func TestToggleRequiresAuth(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	ingestImages(t, env, "a1")

	w := doRequest(env, http.MethodPost, "/api/v1/cats/a1/like", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", w.Code)
	}

	w = doRequest(env, http.MethodPost, "/api/v1/cats/a1/like", "", "Bearer garbage")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status with bad token = %d, want 401", w.Code)
	}
}

func TestToggleEndpoint(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	ingestImages(t, env, "a1")
	token := bearerToken(t, "user-1")

	w := doRequest(env, http.MethodPost, "/api/v1/cats/a1/like", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result service.ToggleResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Success || !result.IsLiked || result.LikeCount != 1 {
		t.Errorf("toggle result = %+v, want success liked count=1", result)
	}

	w = doRequest(env, http.MethodPost, "/api/v1/cats/a1/like", "", token)
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Success || result.IsLiked || result.LikeCount != 0 {
		t.Errorf("second toggle result = %+v, want success unliked count=0", result)
	}
}

func TestToggleUningestedReturnsFailure(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	w := doRequest(env, http.MethodPost, "/api/v1/cats/never-seen/like", "", bearerToken(t, "user-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var result service.ToggleResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Success {
		t.Errorf("toggle on un-ingested id = %+v, want success=false", result)
	}
}

func TestEnrichEndpoint(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	ingestImages(t, env, "a1")
	env.likes.Toggle(context.Background(), "user-1", "a1")

	w := doRequest(env, http.MethodPost, "/api/v1/cats/likes", `{"api_ids":["a1","unknown"]}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp catListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Cats) != 1 {
		t.Fatalf("response = %+v, want exactly one entry", resp)
	}
	if resp.Cats[0].ID != "a1" || resp.Cats[0].LikeCount != 1 || resp.Cats[0].IsLikedByUser {
		t.Errorf("entry = %+v, want a1 count 1, anonymous viewer not liked", resp.Cats[0])
	}
}

func TestEnrichEndpointRejectsMissingBody(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	w := doRequest(env, http.MethodPost, "/api/v1/cats/likes", `{}`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPopularEndpoint(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	ingestImages(t, env, "x", "y")
	env.likes.Toggle(context.Background(), "user-1", "x")
	env.likes.Toggle(context.Background(), "user-2", "x")
	env.likes.Toggle(context.Background(), "user-1", "y")

	w := doRequest(env, http.MethodGet, "/api/v1/cats/popular?limit=1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp catListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Cats) != 1 || resp.Cats[0].ID != "x" || resp.Cats[0].LikeCount != 2 {
		t.Errorf("popular = %+v, want x with count 2", resp.Cats)
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	ingestImages(t, env, "a1", "b2")
	env.likes.Toggle(context.Background(), "user-1", "a1")

	w := doRequest(env, http.MethodGet, "/api/v1/stats", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var stats struct {
		Cats  int64 `json:"cats"`
		Likes int64 `json:"likes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats.Cats != 2 || stats.Likes != 1 {
		t.Errorf("stats = %+v, want cats=2 likes=1", stats)
	}
}
