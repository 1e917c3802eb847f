package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// parseLogLevel converts a string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogLevel returns the log level from the LOG_LEVEL environment variable.
// Defaults to INFO if not set or invalid.
func GetLogLevel() slog.Level {
	return parseLogLevel(os.Getenv("LOG_LEVEL"))
}

// NewLogger creates the process logger.
// In stdio mode stdout carries MCP traffic, so logs go to stderr as text;
// otherwise JSON goes to stdout.
func NewLogger(isStdioMode bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: GetLogLevel()}

	if isStdioMode {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// NewTextLogger creates a text logger writing to output, used by fetch mode
func NewTextLogger(output io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: GetLogLevel()}))
}

// NewTestLogger creates a logger for tests.
// If level is empty, LOG_LEVEL is used.
func NewTestLogger(output io.Writer, level string) *slog.Logger {
	logLevel := GetLogLevel()
	if level != "" {
		logLevel = parseLogLevel(level)
	}

	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
}

// Component tags every record of logger with the owning component
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger.With("component", name)
}
