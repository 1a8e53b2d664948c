// Package xlog is the ambient structured-logging layer for engine
// lifecycle events (start, stop, fallback waits, configuration errors).
// It mirrors cuemby-warren's pkg/log: a package-level zerolog.Logger,
// configured once via Init, with component-scoped children.
package xlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured by Init.
var Logger zerolog.Logger

// Level is a logging verbosity tier.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init configures the global logger. Call once at process start; engines
// constructed before Init use zerolog's built-in no-op default level.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// With returns a child logger tagged with the given component name, e.g.
// "sparkle", "spectrum", "aria.fallback".
func With(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithProtocol tags a child logger with the protocol name and instance
// configuration, used by each engine's Start/Stop lifecycle logs.
func WithProtocol(protocol string) zerolog.Logger {
	return Logger.With().Str("protocol", protocol).Logger()
}
