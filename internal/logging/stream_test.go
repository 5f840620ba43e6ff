package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestStreamHandlerCarriesNestedAttrs(t *testing.T) {
	hub := NewStreamHub(100)
	logger := slog.New(newStreamHandler(NoopHandler{}, hub)).
		With(String(FieldComponent, "workflow")).
		With(Int64(FieldItemID, 99)).
		WithGroup("g").
		With(String(FieldStep, "research"))

	logger.Info("research started")

	events, _ := hub.Tail(10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.ItemID != 99 || evt.Component != "workflow" || evt.Step != "research" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestStreamHubEvictsOldest(t *testing.T) {
	hub := NewStreamHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(LogEvent{Message: "line"})
	}
	events, next := hub.Tail(10)
	if len(events) != 3 {
		t.Fatalf("expected 3 buffered events, got %d", len(events))
	}
	if events[0].Sequence != 3 || next != 5 {
		t.Fatalf("unexpected sequences: first=%d next=%d", events[0].Sequence, next)
	}
	if hub.FirstSequence() != 3 {
		t.Fatalf("unexpected first sequence %d", hub.FirstSequence())
	}
}

func TestStreamHubFetchFiltersByItem(t *testing.T) {
	hub := NewStreamHub(10)
	hub.Publish(LogEvent{Message: "a", ItemID: 1})
	hub.Publish(LogEvent{Message: "b", ItemID: 2})
	hub.Publish(LogEvent{Message: "c", ItemID: 1})

	events, next, err := hub.Fetch(context.Background(), StreamQuery{ItemID: 1})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(events) != 2 || events[0].Message != "a" || events[1].Message != "c" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if next != 3 {
		t.Fatalf("expected cursor 3, got %d", next)
	}
}

func TestStreamHubFetchLimitReturnsResumableCursor(t *testing.T) {
	hub := NewStreamHub(10)
	for i := 0; i < 4; i++ {
		hub.Publish(LogEvent{Message: "line"})
	}
	events, next, err := hub.Fetch(context.Background(), StreamQuery{Limit: 2})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(events) != 2 || next != 2 {
		t.Fatalf("expected 2 events and cursor 2, got %d events cursor %d", len(events), next)
	}
	events, next, _ = hub.Fetch(context.Background(), StreamQuery{Since: next})
	if len(events) != 2 || next != 4 {
		t.Fatalf("expected remaining 2 events, got %d cursor %d", len(events), next)
	}
}

func TestStreamHubFetchWaitsForEvent(t *testing.T) {
	hub := NewStreamHub(10)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan []LogEvent, 1)
	go func() {
		events, _, _ := hub.Fetch(ctx, StreamQuery{Wait: true})
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(LogEvent{Message: "wake"})

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Message != "wake" {
			t.Fatalf("unexpected events: %+v", events)
		}
	case <-ctx.Done():
		t.Fatal("Fetch did not wake up")
	}
}

func TestStreamHubFetchWaitHonoursCancel(t *testing.T) {
	hub := NewStreamHub(10)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := hub.Fetch(ctx, StreamQuery{Wait: true})
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not return after cancel")
	}
}
