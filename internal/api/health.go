package api

import (
	"net/http"
	"time"

	"cooperative-ai/backend/pkg/health"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness and readiness
type HealthHandler struct {
	checker *health.Checker
	started time.Time
	version string
}

// LiveResponse is the liveness response
type LiveResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Version   string    `json:"version"`
}

// NewHealthHandler creates a health handler backed by checker
func NewHealthHandler(checker *health.Checker, version string) *HealthHandler {
	return &HealthHandler{checker: checker, started: time.Now(), version: version}
}

// Live always answers 200 while the process is serving
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, LiveResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   h.version,
	})
}

// RegisterRoutes registers the health routes on r
func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.checker.Handler())
	r.GET("/health/live", h.Live)
}
