package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-chess-server/internal/chess"
)

type LogConfig struct {
	Level   string
	Format  string
	Console bool
	ToFile  bool
	File    string
	Caller  bool
}

type AppConfig struct {
	HTTPAddr       string
	AllowedOrigins []string
	MaxBodyBytes   int64

	RedisURL    string
	DatabaseURL string
	GameTTL     time.Duration

	DefaultTimeControl chess.TimeControl
	MessagesDir        string
	ArchiveDir         string

	Log LogConfig
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:       ":5000",
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   64 << 10,
		GameTTL:        24 * time.Hour,
		ArchiveDir:     "archive",
		Log: LogConfig{
			Level:   "info",
			Format:  "legacy",
			Console: true,
			File:    "logs/chess-server.log",
		},
	}

	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := env("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := env("MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}

	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	if v := env("GAME_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("GAME_TTL %q: want a positive duration like 24h", v)
		}
		cfg.GameTTL = d
	}

	tc, err := chess.ParseTimeControl(envDefault("DEFAULT_TIME_CONTROL", "10+0"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_TIME_CONTROL: %w", err)
	}
	cfg.DefaultTimeControl = tc

	cfg.MessagesDir = env("MESSAGES_DIR")
	if v := env("ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}

	cfg.Log.Level = envDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(envDefault("LOG_FORMAT", cfg.Log.Format))
	cfg.Log.Console = envBool("LOG_TO_CONSOLE", cfg.Log.Console)
	cfg.Log.ToFile = envBool("LOG_TO_FILE", cfg.Log.ToFile)
	cfg.Log.File = envDefault("LOG_FILE", cfg.Log.File)
	cfg.Log.Caller = envBool("LOG_CALLER", cfg.Log.Caller)

	if cfg.HTTPAddr == "" {
		return nil, errors.New("HTTP_ADDR is required")
	}
	if cfg.DatabaseURL != "" && cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required when DATABASE_URL is set")
	}
	return cfg, nil
}

// PvPEnabled reports whether the live two-player API has a store to run on.
func (c *AppConfig) PvPEnabled() bool { return c.RedisURL != "" }

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func envDefault(k, def string) string {
	if v := env(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := env(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
