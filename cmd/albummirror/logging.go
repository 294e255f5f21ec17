package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/adampresley/albummirror/cmd/albummirror/internal/configuration"
)

func setupLogger(config *configuration.Config, version string) {
	slog.SetDefault(newLogger(os.Stderr, config.LogLevel, config.LogFormat).With("version", version))
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	options := &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, options))
	}

	return slog.New(slog.NewTextHandler(w, options))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
