package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"cooperative-ai/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler returns a middleware that maps the last error attached to the
// context onto a status code and JSON body. This is the only place where
// errors become HTTP responses.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := FromError(c.Errors.Last().Err)

		log := logger.FromContext(c.Request.Context())
		args := []any{
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status_code", appErr.StatusCode,
			"error_code", appErr.Code,
			"kind", string(appErr.Kind),
		}
		if appErr.Err != nil {
			log.LogError(appErr.Err, "request failed", args...)
		} else {
			log.Warn("request rejected", args...)
		}

		c.AbortWithStatusJSON(appErr.StatusCode, Body(appErr))
	}
}

// Body renders an AppError for the client. The cause is never included.
func Body(appErr *AppError) gin.H {
	body := gin.H{
		"message": appErr.Message,
		"code":    appErr.Code,
	}
	if appErr.Details != nil {
		if appErr.Kind == KindValidation {
			body["errors"] = appErr.Details
		} else {
			body["details"] = appErr.Details
		}
	}
	return body
}

// RecoveryWithLogger returns a middleware that recovers from any panics
// and logs them with the request-scoped logger
func RecoveryWithLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log := logger.FromContext(c.Request.Context())
				log.Error("Panic recovered",
					"error", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"message": MsgGeneric,
					"code":    "SERVER_ERROR",
				})
			}
		}()

		c.Next()
	}
}
