package main

import (
	"fmt"
	"os"

	"github.com/apricopt/zoro-web/internal/config"
	"github.com/apricopt/zoro-web/internal/logger"
	"github.com/apricopt/zoro-web/internal/server"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	// Create server
	srv, err := server.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	log.Info().Str("version", version).Str("releases_repo", cfg.Releases.Repo).Msg("Starting Zoro web server...")

	// Start HTTP server (this blocks)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
