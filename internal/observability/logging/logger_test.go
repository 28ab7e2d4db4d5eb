package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONLoggerToTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "rxcheck", "info")
	logger.Debug("hidden")
	logger.Info("evaluation_completed", "agreement", "high")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line must be filtered at info level: %s", out)
	}
	if !strings.Contains(out, `"service":"rxcheck"`) || !strings.Contains(out, `"msg":"evaluation_completed"`) {
		t.Fatalf("unexpected log output %s", out)
	}
}

func TestNewJSONLoggerToRedactsPatientData(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "rxcheck", "debug")
	logger.Debug("reviewer_prompt", "prompt", "Patient Ana Torres, 62 kg", "Patient_Name", "Ana Torres", "reviewer", "openai")

	out := buf.String()
	if strings.Contains(out, "Ana Torres") {
		t.Fatalf("patient data leaked into log output: %s", out)
	}
	if !strings.Contains(out, `"prompt":"[redacted]"`) || !strings.Contains(out, `"reviewer":"openai"`) {
		t.Fatalf("unexpected log output %s", out)
	}
}
