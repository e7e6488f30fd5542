// Package logging configures zerolog for the resolver and its tools.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentResolver  = "aircraftdb-resolver"
	ComponentTransport = "aircraftdb-transport"
	ComponentCache     = "aircraftdb-cache"
	ComponentFeed      = "aircraftdb-feed"
	ComponentBatch     = "aircraftdb-batch"
	ComponentServer    = "aircraftdb-server"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level. Unknown names map to
// info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: scheduler and lookup internals
//   - Shard fetch start, queue, promotion
//   - Trie steps (match, descend, not_found)
//   - Store hits and per-identifier results
//
// Info: normal operation events
//   - Type table loaded
//   - Batch resolve complete
//   - Server startup/shutdown
//
// Warn: conditions that degrade but don't stop a lookup
//   - Shard fetch failures
//   - Type table unavailable (records delivered without enrichment)
//   - Store errors (fallback to the origin)
//   - Retry attempts
//
// Error: conditions requiring attention
//   - Server failures
//   - Configuration errors
//
// Context Fields:
//   - icao: normalized identifier
//   - shard_key: shard document key
//   - path: document path below the base URL
//   - status_code: HTTP status code
//   - error_class: client, server, network, decode
//   - active, queued: scheduler occupancy
//   - duration: fetch duration
