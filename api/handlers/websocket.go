// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/codevoice/backend/internal/collab"
	"github.com/codevoice/backend/internal/metrics"
	"github.com/codevoice/backend/internal/model"
	"github.com/codevoice/backend/internal/stream"
	"github.com/codevoice/backend/internal/ws"
)

// WebSocketHandler upgrades collaboration connections and wires each one to
// its session hub and speech pipeline.
type WebSocketHandler struct {
	registry *collab.Registry
	assist   stream.Assist
	metrics  *metrics.Metrics

	sendBuffer   int
	maxFrameSize int
	readLimit    int64
	audioQueue   int

	upgrader websocket.Upgrader
}

// WebSocketConfig carries the per-connection knobs.
type WebSocketConfig struct {
	SendBuffer   int
	MaxFrameSize int
	ReadLimit    int64
	AudioQueue   int
}

// NewWebSocketHandler creates a new WebSocketHandler. assist may be nil when
// no collaborator services are configured; connections then carry audio
// between members without transcription.
func NewWebSocketHandler(registry *collab.Registry, assist stream.Assist, cfg WebSocketConfig, m *metrics.Metrics) *WebSocketHandler {
	return &WebSocketHandler{
		registry:     registry,
		assist:       assist,
		metrics:      m,
		sendBuffer:   cfg.SendBuffer,
		maxFrameSize: cfg.MaxFrameSize,
		readLimit:    cfg.ReadLimit,
		audioQueue:   cfg.AudioQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Join handles GET /api/collab/ws/:id/:user - attaches a member to a session.
// Unknown sessions are rejected before the upgrade so the client sees a
// regular HTTP 404.
func (h *WebSocketHandler) Join(c *gin.Context) {
	sessionID := c.Param("id")
	userID := c.Param("user")
	if userID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "User ID is required")
		return
	}

	hub, err := h.registry.Get(sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Warn().Err(err).Str("module", "handlers").Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}

	adapter := ws.NewAdapter(conn, hub, userID, ws.Config{
		SendBuffer:   h.sendBuffer,
		MaxFrameSize: h.maxFrameSize,
		ReadLimit:    h.readLimit,
		Metrics:      h.metrics,
	})

	if h.assist != nil {
		language := func() string { return hub.Snapshot().Language }
		adapter.AttachSink(stream.NewPipeline(h.assist, adapter.Client(), language, h.audioQueue, h.metrics))
	}

	if err := adapter.Start(); err != nil {
		log.Warn().Err(err).Str("module", "handlers").
			Str("session_id", sessionID).Str("user_id", userID).Msg("member join failed")
		return
	}

	log.Info().Str("module", "handlers").
		Str("session_id", sessionID).Str("user_id", userID).Msg("member connected")
}

// RegisterRoutes registers the WebSocket handler routes on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws/:id/:user", h.Join)
}
