package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	in := []interface{}{"course", "MAT-101", "wstoken", "abc123", "REDIS_PASSWORD", "x", "dangling"}
	out := sanitizeKVs(in)

	want := []interface{}{"course", "MAT-101", "wstoken", "[REDACTED]", "REDIS_PASSWORD", "[REDACTED]", "dangling"}
	if len(out) != len(want) {
		t.Fatalf("Expected %d values, got %d (%v)", len(want), len(out), out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("index %d: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestLoggerRedactsThroughZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("lms", "grado").Info("calling moodle", "token", "secret-value", "function", "core_course_get_contents")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["token"] != "[REDACTED]" {
		t.Errorf("Expected token to be redacted, got %v", ctx["token"])
	}
	if ctx["lms"] != "grado" {
		t.Errorf("Expected lms field to be kept, got %v", ctx["lms"])
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("dev", "loud"); err == nil {
		t.Error("Expected error for invalid level")
	}
	l, err := New("prod", "warn")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	l.Sync()
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Error("Expected a usable logger")
	}
}
