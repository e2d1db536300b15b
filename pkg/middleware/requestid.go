package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID adds a unique request ID to each request. The ID is echoed in
// the X-Request-ID response header and stored under "requestID" for the
// logger middleware.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Keep an ID handed over by an upstream proxy
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("requestID", requestID)

		c.Next()
	}
}
