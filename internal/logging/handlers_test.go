package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	inner := slog.NewJSONHandler(&bytes.Buffer{}, nil)
	if newFanoutHandler(nil, inner) != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestTeeLoggerWritesToEveryHandler(t *testing.T) {
	var first, second bytes.Buffer
	base := slog.New(slog.NewTextHandler(&first, nil))
	tee := TeeLogger(base, slog.NewTextHandler(&second, &slog.HandlerOptions{Level: slog.LevelWarn}))

	tee.With(String(FieldComponent, "api")).Info("info line")
	tee.Warn("warn line")

	if !strings.Contains(first.String(), "info line") || !strings.Contains(first.String(), "warn line") {
		t.Fatalf("base handler missing lines: %q", first.String())
	}
	if strings.Contains(second.String(), "info line") {
		t.Fatalf("warn-level handler should skip info: %q", second.String())
	}
	if !strings.Contains(second.String(), "warn line") {
		t.Fatalf("warn-level handler missing warn: %q", second.String())
	}
}

func TestFanoutEnabledWhenAnyHandlerEnabled(t *testing.T) {
	h := newFanoutHandler(
		slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout enabled for debug")
	}
}
