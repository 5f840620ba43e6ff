// Package events publishes persisted item transitions to an optional Redis
// stream so other processes can follow the pipeline.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Transition is one persisted state change.
type Transition struct {
	ItemID        int64     `json:"item_id"`
	Event         string    `json:"event"`
	PreviousState string    `json:"previous_state"`
	NextState     string    `json:"next_state"`
	Note          string    `json:"note,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	At            time.Time `json:"at"`
}

// Publisher receives every persisted transition.
type Publisher interface {
	Publish(ctx context.Context, transition Transition) error
}

// Noop discards transitions.
type Noop struct{}

func (Noop) Publish(context.Context, Transition) error { return nil }

const publishTimeout = 2 * time.Second

// RedisStream appends transitions to a Redis stream with XADD, trimming it to
// roughly maxLen entries.
type RedisStream struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisStream constructs a stream publisher.
func NewRedisStream(client redis.UniversalClient, stream string, maxLen int64) *RedisStream {
	return &RedisStream{client: client, stream: strings.TrimSpace(stream), maxLen: maxLen}
}

func (r *RedisStream) Publish(ctx context.Context, transition Transition) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	payload, err := json.Marshal(transition)
	if err != nil {
		return fmt.Errorf("encode transition: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"item_id":    strconv.FormatInt(transition.ItemID, 10),
			"event":      transition.Event,
			"next_state": transition.NextState,
			"data":       payload,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}
