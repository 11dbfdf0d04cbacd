// Package logging configures colored structured logging for the anonchat
// binaries. Level comes from the LOG_LEVEL env var (debug, info, warn,
// error; default info).
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default slog handler at the level from LOG_LEVEL.
func Setup() {
	SetupWithLevel(levelFromEnv())
}

// SetupWithLevel installs the default slog handler at an explicit level.
func SetupWithLevel(level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
