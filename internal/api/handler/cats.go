package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hana/catnip/internal/api/middleware"
	"github.com/hana/catnip/internal/catapi"
	"github.com/hana/catnip/internal/domain"
	"github.com/hana/catnip/internal/service"
)

// CatHandler handles the cat browsing, like, and popularity endpoints.
type CatHandler struct {
	source       *catapi.Client
	ingest       *service.IngestService
	likes        *service.LikeService
	defaultLimit int
	mimeTypes    string
}

// NewCatHandler creates a new cat handler.
// Parameters:
//   - source: external image source client.
//   - ingest: ingestion service.
//   - likes: like service.
//   - defaultLimit: default search batch size.
//   - mimeTypes: default mime type filter for searches.
// Returns:
//   - *CatHandler: initialized handler.
func NewCatHandler(source *catapi.Client, ingest *service.IngestService, likes *service.LikeService, defaultLimit int, mimeTypes string) *CatHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &CatHandler{
		source:       source,
		ingest:       ingest,
		likes:        likes,
		defaultLimit: defaultLimit,
		mimeTypes:    mimeTypes,
	}
}

// ListCats handles GET /api/v1/cats. It serves the live feed from the
// external source merged with persisted like data, then schedules
// ingestion of the batch after the response is written. Images that have
// not been ingested yet degrade to zero likes rather than being dropped
// from the feed.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CatHandler) ListCats(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.defaultLimit)))
	mimeTypes := c.DefaultQuery("mime_types", h.mimeTypes)

	ctx := c.Request.Context()
	images := h.source.Search(ctx, limit, mimeTypes)

	apiIDs := make([]string, 0, len(images))
	for _, img := range images {
		apiIDs = append(apiIDs, img.ID)
	}

	userID := middleware.CurrentUser(c)
	enriched := h.likes.Enrich(ctx, apiIDs, userID)
	byAPIID := make(map[string]domain.EnrichedCat, len(enriched))
	for _, e := range enriched {
		byAPIID[e.APIID] = e
	}

	cats := make([]domain.EnrichedCat, 0, len(images))
	for _, img := range images {
		if e, ok := byAPIID[img.ID]; ok {
			cats = append(cats, e)
			continue
		}
		cats = append(cats, domain.EnrichedCat{
			APIID:    img.ID,
			ImageURL: img.URL,
			Width:    img.Width,
			Height:   img.Height,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"cats":  cats,
		"total": len(cats),
	})

	// Persistence runs detached so a store hiccup can never block or fail
	// the feed the user is already looking at
	h.ingest.IngestDetached(images)
}

// ToggleLike handles POST /api/v1/cats/:api_id/like. Requires an
// authenticated user; the outcome is always a structured result, never an
// error payload, so the client can revert its optimistic state change.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CatHandler) ToggleLike(c *gin.Context) {
	apiID := c.Param("api_id")
	if apiID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "cat id is required",
		})
		return
	}

	result := h.likes.Toggle(c.Request.Context(), middleware.CurrentUser(c), apiID)
	c.JSON(http.StatusOK, result)
}

// enrichRequest is the body of POST /api/v1/cats/likes.
type enrichRequest struct {
	APIIDs []string `json:"api_ids" binding:"required"`
}

// EnrichLikes handles POST /api/v1/cats/likes. Returns like data for the
// ingested subset of the given external ids; absent ids mean "zero likes,
// not liked".
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CatHandler) EnrichLikes(c *gin.Context) {
	var req enrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "api_ids is required: " + err.Error(),
		})
		return
	}

	cats := h.likes.Enrich(c.Request.Context(), req.APIIDs, middleware.CurrentUser(c))
	c.JSON(http.StatusOK, gin.H{
		"cats":  cats,
		"total": len(cats),
	})
}

// Popular handles GET /api/v1/cats/popular.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CatHandler) Popular(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "6"))

	cats := h.likes.Popular(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{
		"cats":  cats,
		"total": len(cats),
	})
}

// Stats handles GET /api/v1/stats.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CatHandler) Stats(c *gin.Context) {
	catCount, likeCount, err := h.likes.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to load stats",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cats":  catCount,
		"likes": likeCount,
	})
}
