package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/myplaces/placemap/internal/dispatcher"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestDispatcherLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "debug"))

	dl.Debug("handling event", "command", ":MARKER:ADD:", "args", 2)

	entry := decodeLine(t, &buf)
	if entry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", entry["level"])
	}
	if entry["message"] != "handling event" {
		t.Errorf("expected message 'handling event', got %v", entry["message"])
	}
	if entry["command"] != ":MARKER:ADD:" {
		t.Errorf("expected command=':MARKER:ADD:', got %v", entry["command"])
	}
	if entry["args"] != float64(2) {
		t.Errorf("expected args=2, got %v", entry["args"])
	}
	if entry["component"] != "dispatcher" {
		t.Errorf("expected component='dispatcher', got %v", entry["component"])
	}
}

func TestDispatcherLogger_InfoFilteredByLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "error"))

	dl.Info("dropped")
	dl.Debug("dropped too")

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestDispatcherLogger_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "info"))

	dl.Error("event failed", "command", ":LOCATE:", "error", errors.New("location unavailable"))

	entry := decodeLine(t, &buf)
	if entry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", entry["level"])
	}
	if entry[zerolog.ErrorFieldName] != "location unavailable" {
		t.Errorf("expected error='location unavailable', got %v", entry[zerolog.ErrorFieldName])
	}
	if entry["command"] != ":LOCATE:" {
		t.Errorf("expected command=':LOCATE:', got %v", entry["command"])
	}
}

func TestNewZerolog_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerolog(&buf, "chatty")

	if l.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %v", l.GetLevel())
	}
}

func TestNewConsoleZerolog(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewConsoleZerolog(&buf, "info"))

	dl.Info("event complete", "command", ":STATUS:")

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("event complete")) {
		t.Errorf("expected message in console output, got %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("command=:STATUS:")) {
		t.Errorf("expected field in console output, got %q", out)
	}
}

func TestToFields(t *testing.T) {
	fields := toFields([]any{"a", 1, 2, "skipped", "tail"})

	if fields["a"] != 1 {
		t.Errorf("expected a=1, got %v", fields["a"])
	}
	if v, ok := fields["tail"]; !ok || v != nil {
		t.Errorf("expected tail=nil, got %v (present %v)", v, ok)
	}
	if len(fields) != 2 {
		t.Errorf("expected 2 fields, got %d", len(fields))
	}
}
