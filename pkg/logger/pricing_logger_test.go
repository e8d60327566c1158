package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf, Service: "test"})

	l.Debug("too quiet")
	l.Info("still too quiet")
	l.Warn("loud enough")

	out := buf.String()
	if strings.Contains(out, "too quiet") {
		t.Errorf("suppressed levels leaked: %s", out)
	}
	if !strings.Contains(out, "loud enough") {
		t.Errorf("warn entry missing: %s", out)
	}
}

func TestEntryShapePromotesKnownFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf, Service: "test"})

	l.WithFields(map[string]any{
		"request_id": "req-1",
		"component":  "scheduler",
	}).Info("hello %s", "world")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not valid JSON: %v", err)
	}
	if entry.RequestID != "req-1" {
		t.Errorf("request_id = %q, want req-1", entry.RequestID)
	}
	if entry.Message != "hello world" {
		t.Errorf("message = %q", entry.Message)
	}
	if entry.Service != "test" {
		t.Errorf("service = %q", entry.Service)
	}
	if entry.Fields["component"] != "scheduler" {
		t.Errorf("fields = %v, want component preserved", entry.Fields)
	}
	if _, ok := entry.Fields["request_id"]; ok {
		t.Error("request_id left in fields after promotion")
	}
}

func TestWithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf, Service: "test"})
	if got := l.WithError(nil); got != l {
		t.Error("WithError(nil) should return the receiver unchanged")
	}
}
