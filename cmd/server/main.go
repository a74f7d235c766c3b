package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codevoice/backend/api/handlers"
	"github.com/codevoice/backend/internal/assist"
	"github.com/codevoice/backend/internal/collab"
	"github.com/codevoice/backend/internal/config"
	"github.com/codevoice/backend/internal/db"
	"github.com/codevoice/backend/internal/metrics"
	"github.com/codevoice/backend/internal/repository"
	"github.com/codevoice/backend/internal/stream"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	gin.SetMode(cfg.Mode)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatal().Err(err).Msg("failed to create database directory")
	}

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.CloseDB()

	historyRepo := repository.NewHistoryRepository(database)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	registry := collab.NewRegistry(cfg.GracePeriod, historyRepo, m)
	defer registry.Close()

	var assistClient *assist.Client
	assistClient, err = assist.NewClient(assist.Config{
		TranscribeURL: cfg.TranscribeURL,
		GenerateURL:   cfg.GenerateURL,
		ReviewURL:     cfg.ReviewURL,
		Timeout:       cfg.AssistTimeout,
		MaxRetries:    cfg.AssistRetries,
	})
	if err != nil {
		log.Warn().Err(err).Msg("collaborator services not configured, voice pipeline disabled")
		assistClient = nil
	}

	sessionHandler := handlers.NewSessionHandler(registry)

	var pipelineAssist stream.Assist
	if assistClient != nil {
		pipelineAssist = assistClient
	}
	wsHandler := handlers.NewWebSocketHandler(registry, pipelineAssist, handlers.WebSocketConfig{
		SendBuffer:   cfg.SendBuffer,
		MaxFrameSize: cfg.MaxFrameSize,
		ReadLimit:    cfg.ReadLimit,
		AudioQueue:   cfg.AudioQueue,
	}, m)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "ok",
			"sessions": registry.Count(),
		})
	})

	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	{
		collabRoutes := api.Group("/collab")
		sessionHandler.RegisterRoutes(collabRoutes)
		wsHandler.RegisterRoutes(collabRoutes)

		if assistClient != nil {
			assistHandler := handlers.NewAssistHandler(assistClient)
			assistHandler.RegisterRoutes(api.Group("/assist"))
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down server")
		registry.Close()
		db.CloseDB()
		srv.Close()
	}()

	log.Info().Int("port", cfg.Port).Msg("starting server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
