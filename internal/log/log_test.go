package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q): got %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitWriter_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn")
	t.Cleanup(func() { InitWriter(&bytes.Buffer{}, "info") })

	Info("hidden")
	Warn("shown", "trace_id", "abc")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "trace_id=abc") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug")
	t.Cleanup(func() { InitWriter(&bytes.Buffer{}, "info") })

	With("component", "search").Debug("state", "to", "done")

	if !strings.Contains(buf.String(), "component=search") {
		t.Errorf("attributes not attached: %q", buf.String())
	}
}
