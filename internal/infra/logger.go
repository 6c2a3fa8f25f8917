package infra

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the application logger from config. LOG_LEVEL and
// LOG_FORMAT environment variables override the file settings, which
// keeps one-off debug runs out of the config file.
func NewLogger(cfg *Config) *slog.Logger {
	levelName := cfg.Logging.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		levelName = env
	}

	level := new(slog.LevelVar)
	switch strings.ToLower(levelName) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	format := cfg.Logging.Format
	if env := os.Getenv("LOG_FORMAT"); env != "" {
		format = env
	}

	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(h)
}
