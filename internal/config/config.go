// Package config loads portal settings from the environment.
package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the portal and the operator CLI.
type Config struct {
	Addr       string
	CORSOrigin string

	// Remote content store.
	CMSURL     string
	CMSToken   string
	CMSTimeout time.Duration

	// Session provider.
	SessionSecret string

	// Redis backs the identity cache and the optional seat lock.
	RedisURL    string
	IdentityTTL time.Duration
	SeatLock    bool

	// DatabaseURL enables the draft save outcome journal.
	DatabaseURL string

	UploadReconcileDelay time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the process environment.
// Values already present in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:                 getenv("PORTAL_ADDR", ":8080"),
		CORSOrigin:           getenv("PORTAL_CORS_ORIGIN", "*"),
		CMSURL:               strings.TrimRight(getenv("CMS_URL", "http://localhost:1337"), "/"),
		CMSToken:             getenv("CMS_API_TOKEN", ""),
		CMSTimeout:           time.Duration(getenvInt("CMS_TIMEOUT_SECONDS", 15)) * time.Second,
		SessionSecret:        getenv("SESSION_SECRET", "portal-dev-secret"),
		RedisURL:             getenv("REDIS_URL", ""),
		IdentityTTL:          time.Duration(getenvInt("IDENTITY_CACHE_TTL_SECONDS", 300)) * time.Second,
		SeatLock:             getenvBool("SEAT_LOCK_ENABLED", false),
		DatabaseURL:          getenv("DATABASE_URL", ""),
		UploadReconcileDelay: time.Duration(getenvInt("UPLOAD_RECONCILE_DELAY_MS", 1500)) * time.Millisecond,
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogFormat:            getenv("LOG_FORMAT", "text"),
	}
}

// NewLogger builds the process logger described by cfg and writing to w.
func NewLogger(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	var h slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
