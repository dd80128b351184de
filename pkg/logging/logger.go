// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
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
	ComponentClient     = "artic-client"
	ComponentRateLimit  = "rate-limit"
	ComponentPagination = "pagination"
	ComponentBulkSelect = "bulk-select"
	ComponentView       = "view"
	ComponentTUI        = "tui"
	ComponentServer     = "table-server"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// File, when set, replaces Output with the named file opened for append.
	File string
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
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, NoColor: cfg.File != ""}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// SetupFile is Setup with output going to cfg.File. The returned closer
// must be called on shutdown. An empty File falls back to Setup.
func SetupFile(cfg Config) (zerolog.Logger, io.Closer, error) {
	if cfg.File == "" {
		return Setup(cfg), io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	cfg.Output = f
	return Setup(cfg), f, nil
}

// ValidLevel reports whether s names a known level.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
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
// Debug: request flow
//   - Page requests (page, limit, status)
//   - Navigation generations started and discarded
//   - Rate limit header updates
//
// Info: completed operations
//   - Page loaded
//   - Bulk select complete
//   - Server startup/shutdown
//
// Warn: failures that leave state recoverable
//   - Page fetch failed, previous page kept
//   - Bulk select aborted, selection unchanged
//   - Rate limit throttling active
//
// Error: conditions requiring attention
//   - Critical rate limit blocks
//   - Configuration errors
//
// Context Fields:
//   - page: 1-based page index
//   - limit: page size sent upstream
//   - status_code: HTTP status code
//   - error_class: client, server, rate_limit, network, decode
//   - generation: navigation generation
//   - op_id: bulk select run id
//   - target: requested bulk select count
