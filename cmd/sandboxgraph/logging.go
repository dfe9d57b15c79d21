package main

import (
	"strings"

	"github.com/conneroisu/sandboxgraph/internal/logging"
)

func newLogger(component string) logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.Component = component
	cfg.Level = parseLevel(logLevel)
	return logging.NewLogger(cfg)
}

func parseLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
