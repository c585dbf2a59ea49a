// Package logging builds the process logger: log/slog on top of a
// charmbracelet/log handler.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/1broseidon/xwbridge/internal/config"
)

// LevelEnv overrides the configured level when set.
const LevelEnv = "XWBRIDGE_LOG_LEVEL"

// New returns a logger writing to stderr.
func New(cfg config.LoggingConfig) *slog.Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	level := cfg.Level
	if env := os.Getenv(LevelEnv); env != "" {
		level = env
	}

	formatter := log.TextFormatter
	if cfg.Format == "json" {
		formatter = log.JSONFormatter
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           parseLevel(level),
		ReportTimestamp: true,
		Formatter:       formatter,
	})
	return slog.New(handler)
}

func parseLevel(level string) log.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return log.DebugLevel
	case "WARN", "WARNING":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
