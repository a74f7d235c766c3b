// Package handlers provides HTTP API request handlers.
package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codevoice/backend/internal/assist"
)

// AssistHandler proxies one-shot requests to the collaborator services, for
// clients that want transcription or review outside a live session.
type AssistHandler struct {
	client *assist.Client
}

// NewAssistHandler creates a new AssistHandler.
func NewAssistHandler(client *assist.Client) *AssistHandler {
	return &AssistHandler{client: client}
}

// TranscribeProxyRequest is the body for POST /api/assist/transcribe.
type TranscribeProxyRequest struct {
	Audio  string `json:"audio" binding:"required"`
	Format string `json:"format"`
}

// GenerateProxyRequest is the body for POST /api/assist/generate.
type GenerateProxyRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	Language string `json:"language"`
}

// ReviewProxyRequest is the body for POST /api/assist/review.
type ReviewProxyRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language"`
}

// Transcribe handles POST /api/assist/transcribe.
func (h *AssistHandler) Transcribe(c *gin.Context) {
	var req TranscribeProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Audio must be base64 encoded")
		return
	}

	transcript, err := h.client.Transcribe(c.Request.Context(), audio, req.Format)
	if err != nil {
		sendError(c, http.StatusBadGateway, "UPSTREAM_ERROR", "Transcription failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"transcript": transcript})
}

// Generate handles POST /api/assist/generate.
func (h *AssistHandler) Generate(c *gin.Context) {
	var req GenerateProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	code, err := h.client.GenerateCode(c.Request.Context(), req.Prompt, req.Language)
	if err != nil {
		sendError(c, http.StatusBadGateway, "UPSTREAM_ERROR", "Code generation failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": code})
}

// Review handles POST /api/assist/review.
func (h *AssistHandler) Review(c *gin.Context) {
	var req ReviewProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	res, err := h.client.Review(c.Request.Context(), req.Code, req.Language)
	if err != nil {
		sendError(c, http.StatusBadGateway, "UPSTREAM_ERROR", "Code review failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, res)
}

// RegisterRoutes registers the assist proxy routes on a Gin router group.
func (h *AssistHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/transcribe", h.Transcribe)
	rg.POST("/generate", h.Generate)
	rg.POST("/review", h.Review)
}
