// Package config loads the bot configuration from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Catalog backends.
const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// Config holds everything main needs to wire the services.
type Config struct {
	BotToken string
	// OwnerID is the distinguished admin who may add other admins.
	OwnerID int64
	// ChannelID is either a numeric chat id or an @username.
	ChannelID       string
	ChannelUsername string
	ChannelBaseURL  string

	CatalogBackend    string
	DatabasePath      string
	ProjectID         string
	FirestoreDatabase string
	ArchiveBucket     string

	DownloadsDir string
	Port         int
	Location     *time.Location
	SessionTTL   time.Duration

	LogLevel  slog.Level
	LogFormat string
}

// GetEnv reads an environment variable or returns fallback.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Load reads the configuration. envFile is loaded first when it exists;
// variables already present in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		BotToken:          GetEnv("BOT_TOKEN", ""),
		ChannelID:         GetEnv("CHANNEL_ID", ""),
		ChannelUsername:   strings.TrimPrefix(GetEnv("CHANNEL_USERNAME", "ish_reja_uz"), "@"),
		ChannelBaseURL:    strings.TrimSuffix(GetEnv("CHANNEL_BASE_URL", "https://t.me"), "/"),
		CatalogBackend:    strings.ToLower(GetEnv("CATALOG_BACKEND", BackendSQLite)),
		DatabasePath:      GetEnv("DATABASE_PATH", "bot_database.db"),
		ProjectID:         GetEnv("PROJECT_ID", ""),
		FirestoreDatabase: GetEnv("FIRESTORE_DATABASE", ""),
		ArchiveBucket:     GetEnv("ARCHIVE_BUCKET", ""),
		DownloadsDir:      GetEnv("DOWNLOADS_DIR", "downloads"),
		LogFormat:         strings.ToLower(GetEnv("LOG_FORMAT", "json")),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN environment variable must be set")
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("CHANNEL_ID environment variable must be set")
	}

	var err error
	if cfg.OwnerID, err = strconv.ParseInt(GetEnv("ADMIN_ID", ""), 10, 64); err != nil || cfg.OwnerID == 0 {
		return nil, fmt.Errorf("ADMIN_ID must be a non-zero numeric Telegram user id")
	}
	if cfg.Port, err = strconv.Atoi(GetEnv("PORT", "8100")); err != nil || cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT: invalid port %q", GetEnv("PORT", ""))
	}
	if cfg.Location, err = time.LoadLocation(GetEnv("TIMEZONE", "Asia/Tashkent")); err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	if cfg.SessionTTL, err = time.ParseDuration(GetEnv("SESSION_TTL", "30m")); err != nil || cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL: invalid duration %q", GetEnv("SESSION_TTL", ""))
	}
	if cfg.LogLevel, err = parseLogLevel(GetEnv("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LOG_FORMAT: unsupported format %q, want json or text", cfg.LogFormat)
	}

	switch cfg.CatalogBackend {
	case BackendSQLite:
	case BackendFirestore:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID must be set when CATALOG_BACKEND=firestore")
		}
	default:
		return nil, fmt.Errorf("CATALOG_BACKEND: unsupported backend %q", cfg.CatalogBackend)
	}

	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

// NewLogger builds the process logger for the configured format and level.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
