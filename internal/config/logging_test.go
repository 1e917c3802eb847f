package config

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"debug lowercase", "debug", slog.LevelDebug},
		{"debug uppercase", "DEBUG", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"warning", "WARNING", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"empty string", "", slog.LevelInfo},
		{"invalid", "verbose", slog.LevelInfo},
		{"with whitespace", " DEBUG ", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	assert.Equal(t, slog.LevelWarn, GetLogLevel())

	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, slog.LevelInfo, GetLogLevel())
}

func TestNewLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")

	assert.NotNil(t, NewLogger(true))
	assert.NotNil(t, NewLogger(false))
}

func TestLogLevelIntegration(t *testing.T) {
	testCases := []struct {
		logLevel string
		messages map[string]bool
	}{
		{"DEBUG", map[string]bool{"debug": true, "info": true, "warn": true, "error": true}},
		{"INFO", map[string]bool{"debug": false, "info": true, "warn": true, "error": true}},
		{"ERROR", map[string]bool{"debug": false, "info": false, "warn": false, "error": true}},
	}

	for _, tc := range testCases {
		t.Run("log level "+tc.logLevel, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tc.logLevel)

			var buf bytes.Buffer
			logger := NewTextLogger(&buf)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")

			output := buf.String()
			for level, shouldBeLogged := range tc.messages {
				if shouldBeLogged {
					assert.Contains(t, output, level+" message")
				} else {
					assert.NotContains(t, output, level+" message")
				}
			}
		})
	}
}

func TestNewTestLogger_ExplicitLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf, "ERROR")

	logger.Debug("debug message")
	logger.Error("error message")

	assert.NotContains(t, buf.String(), "debug message")
	assert.Contains(t, buf.String(), "error message")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewTestLogger(&buf, "INFO"), "orchestrator")

	logger.Info("fetch completed")
	assert.Contains(t, buf.String(), "component=orchestrator")

	assert.NotNil(t, Component(nil, "noop"))
}
