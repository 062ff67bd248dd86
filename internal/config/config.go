package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/apricopt/zoro-web/internal/cli/client"
	"github.com/apricopt/zoro-web/internal/handoff"
	"github.com/apricopt/zoro-web/internal/releases"
)

// Token store backends
const (
	TokenStoreKeyring = "keyring"
	TokenStoreFile    = "file"
	TokenStoreMemory  = "memory"
)

// Config holds all configuration for the application
type Config struct {
	// Backend API and desktop handoff
	API APIConfig

	// HTTP server
	Server ServerConfig

	// Releases proxy
	Releases ReleasesConfig

	// Logging Configuration
	Logging LoggingConfig
}

// APIConfig holds the client-side session settings
type APIConfig struct {
	BaseURL     string
	CallbackURL string
	TokenStore  string // keyring, file, memory
	StoragePath string // file store location, empty for the default
}

// ServerConfig holds web server configuration
type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

// ReleasesConfig holds releases proxy configuration
type ReleasesConfig struct {
	Repo         string
	GitHubToken  string
	CacheTTL     time.Duration
	Schedule     string
	RedisAddress string // Redis address (host:port), empty for an in-process cache
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	ttl := releases.DefaultTTL
	if raw := os.Getenv("RELEASES_CACHE_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid RELEASES_CACHE_TTL %q: %w", raw, err)
		}
		ttl = d
	}

	tokenStore := strings.ToLower(getenv("ZORO_TOKEN_STORE", TokenStoreKeyring))
	switch tokenStore {
	case TokenStoreKeyring, TokenStoreFile, TokenStoreMemory:
	default:
		return nil, fmt.Errorf("invalid ZORO_TOKEN_STORE %q, must be one of: keyring, file, memory", tokenStore)
	}

	var origins []string
	for _, o := range strings.Split(getenv("CORS_ORIGINS", "http://localhost:3000"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &Config{
		API: APIConfig{
			BaseURL:     getenv("ZORO_API_URL", getenv("NEXT_PUBLIC_API_URL", client.DefaultBaseURL)),
			CallbackURL: getenv("ZORO_CALLBACK_URL", getenv("NEXT_PUBLIC_ELECTRON_CALLBACK_URL", handoff.DefaultCallbackURL)),
			TokenStore:  tokenStore,
			StoragePath: os.Getenv("ZORO_STORAGE_PATH"),
		},
		Server: ServerConfig{
			Port:        getenv("PORT", "3000"),
			CORSOrigins: origins,
		},
		Releases: ReleasesConfig{
			Repo:         getenv("RELEASES_REPO", releases.DefaultRepo),
			GitHubToken:  os.Getenv("GH_TOKEN"),
			CacheTTL:     ttl,
			Schedule:     getenv("RELEASES_REFRESH_SCHEDULE", releases.DefaultSchedule),
			RedisAddress: os.Getenv("REDIS_ADDRESS"),
		},
		Logging: LoggingConfig{
			// Logging configuration - defaults suitable for production
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
