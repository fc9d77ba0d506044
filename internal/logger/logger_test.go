package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestErrorAddsErrorAttribute(t *testing.T) {
	var buf bytes.Buffer
	ConfigureWriter(&buf, "debug", "json")
	defer ConfigureWriter(&bytes.Buffer{}, "info", "json")

	Error("store write failed", errors.New("disk full"), "run_id", "r1")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["error"] != "disk full" {
		t.Errorf("Expected error attribute, got %v", entry["error"])
	}
	if entry["run_id"] != "r1" {
		t.Errorf("Expected run_id attribute, got %v", entry["run_id"])
	}
}

func TestWithComponentAndTextFormat(t *testing.T) {
	var buf bytes.Buffer
	ConfigureWriter(&buf, "info", "text")
	defer ConfigureWriter(&bytes.Buffer{}, "info", "json")

	With("cleaner").Info("merged", "groups", 3)
	Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "component=cleaner") {
		t.Errorf("Expected component attribute in %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("Expected debug message to be filtered at info level")
	}
}
