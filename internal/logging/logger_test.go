package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipdraft/internal/config"
	"clipdraft/internal/services"
)

func TestPrettyHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))
	logger = NewComponentLogger(logger, "workflow")

	logger.Info("step completed", Int64(FieldItemID, 7), String(FieldStep, "research"), String("note", "two words"))

	line := buf.String()
	for _, fragment := range []string{" INFO workflow: step completed", "item_id=7", "step=research", `note="two words"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as prefix, got %q", line)
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info line should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "WARN shown") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestJSONHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newJSONHandler(&buf, new(slog.LevelVar), false))
	logger.Info("hello", String(FieldEventType, "item_transition"))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if decoded["msg"] != "hello" || decoded["level"] != "info" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
	if _, ok := decoded["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", decoded)
	}
	if decoded[FieldEventType] != "item_transition" {
		t.Fatalf("expected event_type attr, got %v", decoded)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFileAndStream(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"
	hub := NewStreamHub(16)

	logger, err := NewFromConfig(&cfg, hub)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	logger.Info("daemon started", String(FieldEventType, "daemon_start"))

	data, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "daemon started") {
		t.Fatalf("expected log line in file, got %q", string(data))
	}
	events, _ := hub.Tail(10)
	if len(events) != 1 || events[0].EventType != "daemon_start" {
		t.Fatalf("expected streamed event, got %+v", events)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	hub := NewStreamHub(8)
	logger := slog.New(newStreamHandler(NoopHandler{}, hub))

	ctx := services.WithItemID(context.Background(), 11)
	ctx = services.WithStep(ctx, "transcription")
	ctx = services.WithRequestID(ctx, "req-1")
	WithContext(ctx, logger).Info("calling gateway")

	events, _ := hub.Tail(1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.ItemID != 11 || evt.Step != "transcription" || evt.CorrelationID != "req-1" {
		t.Fatalf("unexpected event fields: %+v", evt)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	hub := NewStreamHub(8)
	logger := slog.New(newStreamHandler(NoopHandler{}, hub))

	WarnWithContext(logger, "queue full", "dispatch_rejected", String(FieldErrorHint, "raise dispatch.queue_size"))

	events, _ := hub.Tail(1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.Level != "WARN" || evt.EventType != "dispatch_rejected" {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if evt.Fields[FieldErrorHint] != "raise dispatch.queue_size" {
		t.Fatalf("caller hint should win, got %q", evt.Fields[FieldErrorHint])
	}
	if evt.Fields[FieldImpact] == "" {
		t.Fatal("expected default impact field")
	}
}
