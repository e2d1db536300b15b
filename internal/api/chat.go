package api

import (
	"net/http"
	"strings"

	"cooperative-ai/backend/internal/service"
	"cooperative-ai/backend/pkg/errors"
	"cooperative-ai/backend/pkg/jwt"
	"cooperative-ai/backend/pkg/logger"
	"cooperative-ai/backend/pkg/validator"

	"github.com/gin-gonic/gin"
)

// CreateChatRequest is the body of POST /chat/new. Its constraints live in
// the request schema enforced by pkg/validator.
type CreateChatRequest struct {
	Message string `json:"message"`
}

// ChatHandler serves the chat routes
type ChatHandler struct {
	chats *service.ChatService
	// legacyErrorMarker makes list and clear answer internal failures with
	// 200 {message: "ERROR"} as older frontends expect
	legacyErrorMarker bool
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chats *service.ChatService, legacyErrorMarker bool) *ChatHandler {
	return &ChatHandler{chats: chats, legacyErrorMarker: legacyErrorMarker}
}

// RegisterRoutes mounts the chat routes on group. validate runs before
// authenticate on the route that takes a body.
func (h *ChatHandler) RegisterRoutes(group *gin.RouterGroup, validate, authenticate gin.HandlerFunc) {
	group.POST("/new", validate, authenticate, h.CreateCompletion)
	group.GET("/all-chats", authenticate, h.ListChats)
	group.DELETE("/delete", authenticate, h.DeleteChats)
}

// CreateCompletion handles POST /chat/new. The schema validator has already
// rejected bad bodies on the mounted route; the blank check here is a
// fallback for when RegisterRoutes is given a validate step that lets them
// through, so an empty message never reaches the store.
func (h *ChatHandler) CreateCompletion(c *gin.Context) {
	identity, ok := identityOrAbort(c)
	if !ok {
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.Error(errors.NewValidationError([]validator.Violation{{Field: "message", Reason: "message is required"}}))
		return
	}

	chats, err := h.chats.CreateCompletion(c.Request.Context(), identity, req.Message)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// ListChats handles GET /chat/all-chats
func (h *ChatHandler) ListChats(c *gin.Context) {
	identity, ok := identityOrAbort(c)
	if !ok {
		return
	}

	chats, err := h.chats.ListHistory(c.Request.Context(), identity, c.Query("user"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "OK", "chats": chats})
}

// DeleteChats handles DELETE /chat/delete
func (h *ChatHandler) DeleteChats(c *gin.Context) {
	identity, ok := identityOrAbort(c)
	if !ok {
		return
	}

	if err := h.chats.ClearHistory(c.Request.Context(), identity, c.Query("user")); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

// fail reports list and clear errors. Client errors always go through the
// error middleware; internal ones use the legacy marker when enabled.
func (h *ChatHandler) fail(c *gin.Context, err error) {
	if !h.legacyErrorMarker || errors.IsClientError(err) {
		c.Error(err)
		return
	}

	logger.FromContext(c.Request.Context()).LogError(err, "chat request failed",
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(http.StatusOK, gin.H{"message": "ERROR", "cause": errors.MsgGeneric})
}

func identityOrAbort(c *gin.Context) (jwt.Identity, bool) {
	identity, ok := jwt.IdentityFromContext(c.Request.Context())
	if !ok {
		c.Error(errors.NewUnauthorizedError("TOKEN_MISSING", errors.MsgTokenMissing))
		c.Abort()
	}
	return identity, ok
}
