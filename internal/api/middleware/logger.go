package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wrprafra/newsletter-project/internal/logger"
)

// Logger returns a Gin middleware that tags every request with an id,
// injects a request-scoped logger into the context, and logs completion
// with status and latency.
// Returns:
//   - gin.HandlerFunc: middleware handler.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := uuid.NewString()
		log := logger.Default().WithFields(logger.Fields{
			logger.FieldRequestID: requestID,
			logger.FieldComponent: "api",
		})

		ctx := logger.WithContext(c.Request.Context(), log)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)

		c.Next()

		log.WithFields(logger.Fields{
			logger.FieldStatusCode: c.Writer.Status(),
			logger.FieldDurationMS: time.Since(start).Milliseconds(),
			"method":               c.Request.Method,
			"path":                 path,
			"client_ip":            c.ClientIP(),
		}).Info("request completed")
	}
}

// GetLogger returns the request-scoped logger.
// Parameters:
//   - c: Gin request context.
// Returns:
//   - *logger.Logger: request logger or the default logger.
func GetLogger(c *gin.Context) *logger.Logger {
	return logger.FromContext(c.Request.Context())
}
