package logger

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware returns a Gin middleware function that logs requests.
// It expects the request ID under the "requestID" key (see middleware.RequestID)
// and the authenticated user under "userId".
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLogger := logger.WithRequestID(c.GetString("requestID"))

		// Store the logger for handlers and services further down the chain
		c.Set("logger", reqLogger)
		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), reqLogger))

		start := time.Now()

		c.Next()

		// The user is only known once the auth middleware has run
		done := reqLogger.WithUserID(c.GetString("userId"))
		done.LogRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}
