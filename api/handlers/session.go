// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codevoice/backend/internal/collab"
	"github.com/codevoice/backend/internal/model"
)

// SessionHandler handles HTTP requests for collaboration sessions.
type SessionHandler struct {
	registry *collab.Registry
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(registry *collab.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

// CreateSessionResponse is the body returned for a freshly created session.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// SessionInfoResponse describes a live session.
type SessionInfoResponse struct {
	SessionID string   `json:"session_id"`
	Users     []string `json:"users"`
	Code      string   `json:"code"`
	Language  string   `json:"language"`
	CreatedAt string   `json:"created_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// Create handles POST /api/collab/sessions - creates a new session.
func (h *SessionHandler) Create(c *gin.Context) {
	sess, _ := h.registry.Create(c.Request.Context())
	c.JSON(http.StatusCreated, CreateSessionResponse{SessionID: sess.ID})
}

// Get handles GET /api/collab/sessions/:id - describes a live session.
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.Param("id")

	info, err := h.registry.Info(sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, SessionInfoResponse{
		SessionID: info.SessionID,
		Users:     info.Users,
		Code:      info.Code,
		Language:  info.Language,
		CreatedAt: info.CreatedAt.Format(time.RFC3339),
	})
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.Create)
		sessions.GET("/:id", h.Get)
	}
}
