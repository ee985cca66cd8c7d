package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	APIBaseURL     string
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string
	// SessionStore selects the durable identity storage: a file path or a
	// redis:// URL.
	SessionStore string
	// SessionProfile namespaces the Redis session key so several clients can
	// share one Redis.
	SessionProfile string
	ProctorAddr    string
	GinMode        string
	// AllowedOrigins controls CORS and WebSocket origin validation on the
	// proctor bridge. Empty slice means all origins are permitted (dev default).
	AllowedOrigins    []string
	TickInterval      time.Duration
	FullscreenRetry   time.Duration
	MaxViolationFlags int
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		APIBaseURL:        strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:3301"), "/"),
		RequestTimeout:    time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "pretty"),
		SessionStore:      getEnv("SESSION_STORE", defaultSessionFile()),
		SessionProfile:    getEnv("SESSION_PROFILE", "default"),
		ProctorAddr:       getEnv("PROCTOR_ADDR", "127.0.0.1:8765"),
		GinMode:           getEnv("GIN_MODE", "release"),
		AllowedOrigins:    parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		TickInterval:      time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		FullscreenRetry:   time.Duration(getEnvInt("FULLSCREEN_RETRY_MS", 1000)) * time.Millisecond,
		MaxViolationFlags: getEnvInt("MAX_VIOLATION_FLAGS", 3),
	}
}

// UsesRedisSession reports whether the session store points at Redis.
func (c *Config) UsesRedisSession() bool {
	return strings.HasPrefix(c.SessionStore, "redis://") || strings.HasPrefix(c.SessionStore, "rediss://")
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".exstem-session.json"
	}
	return dir + string(os.PathSeparator) + "exstem" + string(os.PathSeparator) + "session.json"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
