// Package server
//
// @title Zoro Browser Manager Web API
// @version 1.0
// @description Releases proxy and desktop handoff endpoints
// @host localhost:3000
// @BasePath /
package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/apricopt/zoro-web/internal/config"
	"github.com/apricopt/zoro-web/internal/releases"
)

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    zerolog.Logger
	validator *validator.Validate
	releases  *releases.Service
	refresher *releases.Refresher
	closers   []io.Closer
	version   string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	gh := releases.NewGitHub(cfg.Releases.Repo, cfg.Releases.GitHubToken)

	var closers []io.Closer
	var cache releases.Cache = releases.NewMemoryCache()
	if cfg.Releases.RedisAddress != "" {
		redisCache := releases.NewRedisCache(cfg.Releases.RedisAddress)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisCache.Ping(ctx)
		cancel()
		if err != nil {
			// Fall back to the in-process cache rather than refusing to serve downloads
			zlog.Warn().Err(err).Str("address", cfg.Releases.RedisAddress).Msg("Redis unreachable - using in-memory release cache")
			_ = redisCache.Close()
		} else {
			cache = redisCache
			closers = append(closers, redisCache)
		}
	}

	releasesService := releases.NewService(gh, cache, cfg.Releases.CacheTTL, zlog)

	refresher, err := releases.NewRefresher(releasesService, cfg.Releases.Schedule, zlog)
	if err != nil {
		return nil, err
	}

	server := newServer(cfg, zlog, version, releasesService)
	server.refresher = refresher
	server.closers = closers
	return server, nil
}

// newServer wires handlers around an already built releases service
func newServer(cfg *config.Config, zlog zerolog.Logger, version string, releasesService *releases.Service) *Server {
	server := &Server{
		config:    cfg,
		logger:    zlog,
		validator: newValidator(),
		releases:  releasesService,
		version:   version,
	}

	// Setup router
	server.setupRouter()

	return server
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	// CORS middleware
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	// Releases proxy for the download pages
	s.router.GET("/api/releases", s.getLatestRelease)

	// Desktop handoff after an OAuth round trip
	s.router.GET("/auth/callback", s.authCallback)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "zoro-web",
		"version":   s.version,
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := ":" + s.config.Server.Port

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if s.refresher != nil {
		s.refresher.Start()
	}

	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
			errChan <- err
		}
	}()

	// Wait for shutdown signal or listener failure
	select {
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errChan:
		s.shutdownBackground()
		return err
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.shutdownBackground()
	s.logger.Info().Msg("Server shutdown complete")
	return nil
}

// shutdownBackground stops the refresh schedule and closes cache connections
func (s *Server) shutdownBackground() {
	if s.refresher != nil {
		s.refresher.Stop()
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing connection")
		}
	}
}
