// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"io"
	"log/slog"
	"strings"
)

// LogOptions selects the slog handler and the fields stamped on every record.
type LogOptions struct {
	Level  string // debug, info, warn, error
	Format string // text, json, discard

	Service string
	Version string
	// Command is the CLI command being run, e.g. review or mcp.
	Command string
}

// ConfigureSlog installs the process-wide logger. Every record carries the
// service, version and command fields set in opts.
func ConfigureSlog(output io.Writer, opts LogOptions) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: parseLogLevel(opts.Level)}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		handler = slog.NewJSONHandler(output, handlerOpts)
	case "discard", "none":
		handler = slog.DiscardHandler
	default:
		handler = slog.NewTextHandler(output, handlerOpts)
	}

	var attrs []slog.Attr
	if opts.Service != "" {
		attrs = append(attrs, slog.String("service", opts.Service))
	}
	if opts.Version != "" {
		attrs = append(attrs, slog.String("version", opts.Version))
	}
	if opts.Command != "" {
		attrs = append(attrs, slog.String("command", opts.Command))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ComponentLogger returns logger (or the default logger when nil) tagged
// with a component attribute: review, registry, driver, qdrant or mcp.
func ComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", component))
}

// parseLogLevel accepts the slog level names plus "warning". Unknown values
// fall back to info.
func parseLogLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
