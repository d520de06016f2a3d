// Package slogutil wires log/slog to a rotating file sink, the same
// pattern altmount's cmd/altmount/cmd/serve.go uses before starting the
// WebDAV server.
package slogutil

import (
	"io"
	"log/slog"
	"os"

	"github.com/javi11/davgateway/internal/config"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogRotation builds a slog.Logger that writes to stdout, and
// additionally to a rotating file when cfg.File is set.
func SetupLogRotation(cfg config.LogConfig) *slog.Logger {
	var out io.Writer = os.Stdout

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}

	level := parseLevel(cfg.Level)
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
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
