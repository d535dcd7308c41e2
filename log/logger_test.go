package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_JSONShape(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, DebugLevel).WithRun("run-001")

	l.Info("view completed", map[string]any{"view": "jira", "elapsed_ms": 12})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["level"] != "info" || e["message"] != "view completed" || e["run_id"] != "run-001" {
		t.Errorf("unexpected entry: %v", e)
	}
	if _, ok := e["timestamp"].(string); !ok {
		t.Error("missing timestamp")
	}
	fields, ok := e["fields"].(map[string]any)
	if !ok || fields["view"] != "jira" {
		t.Errorf("unexpected fields: %v", e["fields"])
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, WarnLevel)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", nil)
	l.Sugar().Errorf("shown %d", 2)

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(entries), entries)
	}
	if entries[1]["message"] != "shown 2" {
		t.Errorf("sugared message = %v", entries[1]["message"])
	}
}

func TestLogger_NilIsSafe(t *testing.T) {
	var l *Logger
	l.Debug("x", nil)
	l.Warn("x", nil)
	l.WithRun("r").Error("x", nil)
	l.Sugar().Infof("x")
	if err := l.Sync(); err != nil {
		t.Errorf("Sync on nil: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	if err != nil || lvl != DebugLevel {
		t.Errorf("ParseLevel(debug) = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
