package redisconn_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"clipdraft/internal/config"
	"clipdraft/internal/redisconn"
)

func TestNewDisabled(t *testing.T) {
	cfg := config.Default()
	client, err := redisconn.New(&cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client without redis.url")
	}
	if err := redisconn.Ping(context.Background(), nil); err != nil {
		t.Fatalf("Ping(nil) failed: %v", err)
	}
}

func TestNewAndPing(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.URL = "redis://" + mr.Addr() + "/0"

	client, err := redisconn.New(&cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer client.Close()
	if err := redisconn.Ping(context.Background(), client); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.URL = "redis://host:notaport"
	if _, err := redisconn.New(&cfg); err == nil {
		t.Fatal("expected parse error")
	}
}
