package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent represents a structured log line published to the streaming hub.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	Step          string            `json:"step,omitempty"`
	ItemID        int64             `json:"item_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	EventType     string            `json:"event_type,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// StreamQuery selects events from a StreamHub.
type StreamQuery struct {
	// Since returns only events with a greater sequence number.
	Since uint64
	Limit int
	// Wait blocks until at least one matching event exists or the context ends.
	Wait bool
	// ItemID restricts results to one video item when non-zero.
	ItemID int64
}

// StreamHub stores recent log events and wakes waiters when new events arrive.
type StreamHub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []LogEvent
	nextSeq  uint64
}

// NewStreamHub constructs a bounded in-memory log buffer.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &StreamHub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends a new log event to the hub, evicting the oldest when full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
}

// Fetch returns events matching q along with the cursor to pass as the next
// Since value.
func (h *StreamHub) Fetch(ctx context.Context, q StreamQuery) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, q.Since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	limit := q.Limit
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	stop := make(chan struct{})
	defer close(stop)
	if q.Wait && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-stop:
			}
		}()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	since := q.Since
	for {
		events, next := h.snapshotLocked(since, limit, q.ItemID)
		if len(events) > 0 || !q.Wait {
			return events, next, nil
		}
		since = next
		if err := ctx.Err(); err != nil {
			return nil, since, err
		}
		h.cond.Wait()
		if err := ctx.Err(); err != nil {
			return nil, since, err
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := len(h.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := make([]LogEvent, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// FirstSequence reports the smallest sequence number still buffered.
func (h *StreamHub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextSeq
	}
	return h.buffer[0].Sequence
}

func (h *StreamHub) snapshotLocked(since uint64, limit int, itemID int64) ([]LogEvent, uint64) {
	var out []LogEvent
	for _, evt := range h.buffer {
		if evt.Sequence <= since {
			continue
		}
		if itemID != 0 && evt.ItemID != itemID {
			continue
		}
		out = append(out, evt)
		if len(out) == limit {
			return out, evt.Sequence
		}
	}
	return out, h.nextSeq
}

func eventFromRecord(record slog.Record, preAttrs []slog.Attr) LogEvent {
	event := LogEvent{
		Timestamp: record.Time,
		Level:     levelLabel(record.Level),
		Message:   strings.TrimSpace(record.Message),
	}

	apply := func(attr slog.Attr) {
		key := strings.TrimSpace(attr.Key)
		if key == "" {
			return
		}
		value := attr.Value.Resolve()
		switch key {
		case FieldItemID:
			if value.Kind() == slog.KindInt64 {
				event.ItemID = value.Int64()
			}
		case FieldStep:
			event.Step = attrString(value)
		case FieldCorrelationID:
			event.CorrelationID = attrString(value)
		case FieldComponent:
			event.Component = attrString(value)
		case FieldEventType:
			event.EventType = attrString(value)
		default:
			if event.Fields == nil {
				event.Fields = make(map[string]string)
			}
			event.Fields[key] = attrString(value)
		}
	}

	for _, attr := range preAttrs {
		apply(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		apply(attr)
		return true
	})
	return event
}
