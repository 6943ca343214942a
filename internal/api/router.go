package api

import (
	"github.com/gin-gonic/gin"
	"github.com/hana/catnip/internal/api/handler"
	"github.com/hana/catnip/internal/api/middleware"
	"github.com/hana/catnip/internal/auth"
	"github.com/hana/catnip/internal/config"
	"github.com/hana/catnip/internal/logger"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	catHandler *handler.CatHandler,
	verifier *auth.Verifier,
	cfg *config.Config,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Browsing and enrichment work for anonymous viewers too; the
		// user id only scopes the liked-by-me flags
		v1.GET("/cats", middleware.OptionalAuth(verifier), catHandler.ListCats)
		v1.POST("/cats/likes", middleware.OptionalAuth(verifier), catHandler.EnrichLikes)
		v1.GET("/cats/popular", catHandler.Popular)

		// Toggling a like requires a signed-in user
		v1.POST("/cats/:api_id/like", middleware.RequireAuth(verifier), catHandler.ToggleLike)

		// Stats
		v1.GET("/stats", catHandler.Stats)
	}

	return r
}
