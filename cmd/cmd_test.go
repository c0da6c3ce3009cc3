package cmd

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{
			name:     "debug",
			input:    "debug",
			expected: slog.LevelDebug,
		},
		{
			name:     "info",
			input:    "info",
			expected: slog.LevelInfo,
		},
		{
			name:     "warn",
			input:    "warn",
			expected: slog.LevelWarn,
		},
		{
			name:     "error",
			input:    "error",
			expected: slog.LevelError,
		},
		{
			name:     "unknown falls back to info",
			input:    "verbose",
			expected: slog.LevelInfo,
		},
		{
			name:     "empty falls back to info",
			input:    "",
			expected: slog.LevelInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	expected := []string{"serve", "link", "unlink", "schedule", "free"}
	for _, name := range expected {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q is not registered", name)
		}
	}
}
