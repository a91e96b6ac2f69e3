package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "debug", Format: FormatJSON, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.With(String("run_id", "abc")).Warn("failed to parse line",
		String("line", "garbage"),
		Int("line_num", 3),
		Bool("fatal", false),
	)

	events := decodeLines(t, &buf)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev["level"] != "warn" || ev["message"] != "failed to parse line" {
		t.Errorf("event = %v", ev)
	}
	if ev["run_id"] != "abc" || ev["line"] != "garbage" || ev["line_num"] != float64(3) {
		t.Errorf("fields missing from event: %v", ev)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "warn", Format: FormatJSON, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Info("dropped")
	log.Debug("dropped")
	log.Error("kept", errors.New("boom"))

	events := decodeLines(t, &buf)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0]["error"] != "boom" {
		t.Errorf("error field = %v, want boom", events[0]["error"])
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Format: FormatConsole, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.Info("hello", String("k", "v"))
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("console output = %q", buf.String())
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("New() expected error for bad level")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("New() expected error for bad format")
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info("nothing")
	log.With(String("a", "b")).Error("nothing", errors.New("x"))
}
