package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty != false {
		t.Error("Expected default pretty to be false")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		logFn    func(logger zerolog.Logger, msg string)
		testMsg  string
		expected bool
	}{
		{
			name:     "info_visible_at_info",
			level:    LevelInfo,
			logFn:    func(l zerolog.Logger, m string) { l.Info().Msg(m) },
			testMsg:  "test info message",
			expected: true,
		},
		{
			name:     "debug_hidden_at_info",
			level:    LevelInfo,
			logFn:    func(l zerolog.Logger, m string) { l.Debug().Msg(m) },
			testMsg:  "test debug message",
			expected: false,
		},
		{
			name:     "debug_visible_at_debug",
			level:    LevelDebug,
			logFn:    func(l zerolog.Logger, m string) { l.Debug().Msg(m) },
			testMsg:  "test debug message",
			expected: true,
		},
		{
			name:     "info_hidden_at_warn",
			level:    LevelWarn,
			logFn:    func(l zerolog.Logger, m string) { l.Info().Msg(m) },
			testMsg:  "test info message",
			expected: false,
		},
		{
			name:     "error_visible_at_error",
			level:    LevelError,
			logFn:    func(l zerolog.Logger, m string) { l.Error().Msg(m) },
			testMsg:  "test error message",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.logFn(logger, tt.testMsg)

			got := strings.Contains(buf.String(), tt.testMsg)
			if got != tt.expected {
				t.Errorf("message visible = %v, want %v (output: %q)", got, tt.expected, buf.String())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLogger_ComponentField(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("fetch")
	logger.Info().Msg("component test")

	if !strings.Contains(buf.String(), `"component":"fetch"`) {
		t.Errorf("expected component field in output, got %q", buf.String())
	}
}

func TestSetup_PrettyOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Msg("pretty message")

	out := buf.String()
	if !strings.Contains(out, "pretty message") {
		t.Errorf("expected message in pretty output, got %q", out)
	}
	// Console output is not JSON
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("pretty output looks like JSON: %q", out)
	}
}
