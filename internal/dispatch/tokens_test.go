package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"clipdraft/internal/dispatch"
)

func TestMemoryTokensExclusive(t *testing.T) {
	ctx := context.Background()
	tokens := dispatch.NewMemoryTokens()
	first, ok, err := tokens.Acquire(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("first Acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := tokens.Acquire(ctx, 1); ok {
		t.Fatal("second Acquire should fail while held")
	}
	if _, ok, _ := tokens.Acquire(ctx, 2); !ok {
		t.Fatal("other items must be independent")
	}
	if err := tokens.Release(ctx, dispatch.Token{ItemID: 1, Owner: "someone-else"}); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, ok, _ := tokens.Acquire(ctx, 1); ok {
		t.Fatal("foreign release must not free the token")
	}
	if err := tokens.Release(ctx, first); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, ok, _ := tokens.Acquire(ctx, 1); !ok {
		t.Fatal("Acquire after release should succeed")
	}
}

func newRedisTokens(t *testing.T, ttl time.Duration) (*dispatch.RedisTokens, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tokens, err := dispatch.NewRedisTokens(client, "test:", ttl)
	if err != nil {
		t.Fatalf("NewRedisTokens failed: %v", err)
	}
	return tokens, mr
}

func TestRedisTokensExclusiveAcrossStores(t *testing.T) {
	ctx := context.Background()
	tokens, mr := newRedisTokens(t, time.Minute)

	other, err := dispatch.NewRedisTokens(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisTokens failed: %v", err)
	}

	held, ok, err := tokens.Acquire(ctx, 5)
	if err != nil || !ok {
		t.Fatalf("Acquire: ok=%v err=%v", ok, err)
	}
	if !mr.Exists("test:token:5") {
		t.Fatal("expected token key in redis")
	}
	if got := mr.TTL("test:token:5"); got != time.Minute {
		t.Fatalf("unexpected ttl %v", got)
	}
	if _, ok, err := other.Acquire(ctx, 5); err != nil || ok {
		t.Fatalf("second store should be refused: ok=%v err=%v", ok, err)
	}
	if err := other.Release(ctx, dispatch.Token{ItemID: 5, Owner: "impostor"}); err != nil {
		t.Fatalf("foreign Release failed: %v", err)
	}
	if !mr.Exists("test:token:5") {
		t.Fatal("foreign release must not delete the key")
	}
	if err := tokens.Release(ctx, held); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if mr.Exists("test:token:5") {
		t.Fatal("expected key deleted after release")
	}
	if _, ok, _ := other.Acquire(ctx, 5); !ok {
		t.Fatal("Acquire after release should succeed")
	}
}

func TestRedisTokensExpire(t *testing.T) {
	ctx := context.Background()
	tokens, mr := newRedisTokens(t, 30*time.Second)
	if _, ok, err := tokens.Acquire(ctx, 1); err != nil || !ok {
		t.Fatalf("Acquire: ok=%v err=%v", ok, err)
	}
	mr.FastForward(31 * time.Second)
	if _, ok, err := tokens.Acquire(ctx, 1); err != nil || !ok {
		t.Fatalf("expired token should be reacquirable: ok=%v err=%v", ok, err)
	}
}

func TestRedisTokensUnavailable(t *testing.T) {
	tokens, mr := newRedisTokens(t, time.Minute)
	mr.Close()
	if _, _, err := tokens.Acquire(context.Background(), 1); err == nil {
		t.Fatal("expected error with redis down")
	}
}

func TestNewRedisTokensValidates(t *testing.T) {
	if _, err := dispatch.NewRedisTokens(nil, "x", time.Second); err == nil {
		t.Fatal("expected error for nil client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := dispatch.NewRedisTokens(client, "x", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
