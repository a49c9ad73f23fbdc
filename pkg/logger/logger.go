// Package logger wires slog for the control-plane binaries. The api server
// and both workers share one setup so log lines aggregate uniformly.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Setup builds the process logger and installs it as the slog default.
// Production means JSON at info; everything else gets text at debug. An
// explicit level or format (the LOG_LEVEL and LOG_FORMAT config keys)
// overrides either choice.
func Setup(env, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level, env)}

	var handler slog.Handler
	if resolveFormat(format, env) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func parseLevel(level, env string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if env == "production" {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func resolveFormat(format, env string) string {
	switch strings.ToLower(format) {
	case "json":
		return "json"
	case "text":
		return "text"
	}
	if env == "production" {
		return "json"
	}
	return "text"
}
