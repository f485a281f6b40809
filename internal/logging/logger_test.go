package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readLogLines(t *testing.T, path string) []map[string]any {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entries []map[string]any
	for _, line := range splitLines(string(data)) {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("pipeline started", "tiers", 4)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := readLogLines(t, filepath.Join(dir, "debug.log"))
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0]["msg"] != "pipeline started" {
		t.Errorf("msg = %v", entries[0]["msg"])
	}
	if entries[0]["tiers"] != float64(4) {
		t.Errorf("tiers = %v", entries[0]["tiers"])
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := readLogLines(t, filepath.Join(dir, "debug.log"))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries at WARN level, got %d", len(entries))
	}
}

func TestChildLoggerAttributes(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	child := logger.WithRun("issue-42").WithStage("bold").WithTier(1)
	child.Info("dispatched")

	// The parent logger must not inherit child attributes.
	logger.Info("parent entry")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := readLogLines(t, filepath.Join(dir, "debug.log"))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0]["run"] != "issue-42" || entries[0]["stage"] != "bold" || entries[0]["tier"] != float64(1) {
		t.Errorf("child attributes missing: %v", entries[0])
	}
	if _, ok := entries[1]["stage"]; ok {
		t.Error("parent logger leaked child attributes")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Info("discarded")
	logger.Error("also discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on NopLogger: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
