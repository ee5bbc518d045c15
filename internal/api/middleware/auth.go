package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wrprafra/newsletter-project/internal/logger"
)

const userKey = "user_id"

// RequireUser resolves the caller's identity from the X-User-ID header
// set by the auth proxy in front of this service. Requests without one
// are rejected.
// Returns:
//   - gin.HandlerFunc: middleware handler.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing user identity",
			})
			return
		}
		c.Set(userKey, userID)

		ctx := logger.WithContext(c.Request.Context(),
			logger.FromContext(c.Request.Context()).WithField(logger.FieldUserID, userID))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// UserID returns the authenticated user id set by RequireUser.
// Parameters:
//   - c: Gin request context.
// Returns:
//   - string: user id, empty when unauthenticated.
func UserID(c *gin.Context) string {
	return c.GetString(userKey)
}
