package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	log := New(&buf, "info", "json")
	log.Stage("clean", 10, 8, time.Now())

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}

	if record["stage"] != "clean" {
		t.Errorf("stage = %v, want clean", record["stage"])
	}

	if record["rows_out"] != float64(8) {
		t.Errorf("rows_out = %v, want 8", record["rows_out"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	log := New(&buf, "warn", "text")
	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}

	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %q", out)
	}

	log.SetLevel("debug")
	log.Debug("now visible")

	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug message missing after SetLevel: %q", buf.String())
	}
}

func TestLogger_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer

	log := New(&buf, "error", "text")
	child := log.With("run_id", "abc")

	log.SetLevel("info")
	child.Info("child message")

	if !strings.Contains(buf.String(), "run_id=abc") {
		t.Errorf("child logger should carry attributes and parent level: %q", buf.String())
	}
}
