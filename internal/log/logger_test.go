package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func newJSONLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: ComponentApp, Output: buf, JSON: true})
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return m
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf).WithComponent(ComponentStorage)

	logger.Info("opened", FieldCount, 3)

	m := decode(t, &buf)
	if m[FieldComponent] != ComponentStorage {
		t.Errorf("component = %v, want %s", m[FieldComponent], ComponentStorage)
	}
	if m[FieldCount] != float64(3) {
		t.Errorf("count = %v, want 3", m[FieldCount])
	}
}

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

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf).With(FieldRequestID, "req_1")
	ctx := NewContext(context.Background(), logger)

	if FromContext(ctx) != logger {
		t.Fatal("FromContext did not return the stored logger")
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext should fall back to a default logger")
	}

	LogError(ctx, "delete failed", errors.New("disk full"), ComponentAttachments, OpDelete,
		NewFields().WithActor(7, "admin"))

	m := decode(t, &buf)
	if m[FieldRequestID] != "req_1" || m[FieldError] != "disk full" || m[FieldOperation] != OpDelete {
		t.Errorf("unexpected fields: %v", m)
	}
	if m[FieldComponent] != ComponentAttachments {
		t.Errorf("component = %v", m[FieldComponent])
	}
}
