package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hana/catnip/internal/auth"
	"github.com/hana/catnip/internal/logger"
)

// userIDKey is the Gin context key holding the authenticated user id.
const userIDKey = "user_id"

// RequireAuth returns a middleware that rejects requests without a valid
// bearer token. The user id is stored in the Gin context and injected
// into the request logger.
// Parameters:
//   - verifier: token verifier for the auth provider's tokens.
// Returns:
//   - gin.HandlerFunc: middleware handler.
func RequireAuth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := bearerUserID(c, verifier)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}
		setUser(c, userID)
		c.Next()
	}
}

// OptionalAuth returns a middleware that extracts the user id when a valid
// bearer token is present and leaves the request anonymous otherwise.
// Parameters:
//   - verifier: token verifier for the auth provider's tokens.
// Returns:
//   - gin.HandlerFunc: middleware handler.
func OptionalAuth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := bearerUserID(c, verifier); ok {
			setUser(c, userID)
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user id or empty for anonymous
// requests.
// Parameters:
//   - c: Gin request context.
// Returns:
//   - string: user id, empty when unauthenticated.
func CurrentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func bearerUserID(c *gin.Context, verifier *auth.Verifier) (string, bool) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}

	userID, err := verifier.UserID(token)
	if err != nil {
		logger.CtxDebug(c.Request.Context(), "Rejected bearer token: %v", err)
		return "", false
	}
	return userID, true
}

func setUser(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
	ctx := logger.SetUserID(c.Request.Context(), userID)
	c.Request = c.Request.WithContext(ctx)
}
