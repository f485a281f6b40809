package util

import "testing"

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "short string unchanged",
			input:    "hello",
			maxLen:   10,
			expected: "hello",
		},
		{
			name:     "exact length unchanged",
			input:    "hello",
			maxLen:   5,
			expected: "hello",
		},
		{
			name:     "long string truncated",
			input:    "hello world",
			maxLen:   8,
			expected: "hello...",
		},
		{
			name:     "very small maxLen returns ellipsis",
			input:    "hello",
			maxLen:   3,
			expected: "...",
		},
		{
			name:     "empty string unchanged",
			input:    "",
			maxLen:   10,
			expected: "",
		},
		{
			name:     "unicode characters counted correctly",
			input:    "日本語テスト",
			maxLen:   5,
			expected: "日本...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateString(tt.input, tt.maxLen)
			if got != tt.expected {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single line",
			input:    "add dark mode",
			expected: "add dark mode",
		},
		{
			name:     "multi line keeps first",
			input:    "add dark mode\nwith CSS variables",
			expected: "add dark mode",
		},
		{
			name:     "leading blank lines skipped",
			input:    "\n\n  add dark mode  \nmore",
			expected: "add dark mode",
		},
		{
			name:     "interior whitespace collapsed",
			input:    "add   dark\tmode",
			expected: "add dark mode",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstLine(tt.input); got != tt.expected {
				t.Errorf("FirstLine(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFlatten(t *testing.T) {
	got := Flatten("focus on\nCSS variables\n")
	if got != "focus on CSS variables" {
		t.Errorf("Flatten = %q", got)
	}
}
