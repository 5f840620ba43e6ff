package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Token is a held per-item execution right.
type Token struct {
	ItemID int64
	Owner  string
}

// TokenStore grants at most one holder per item at a time.
type TokenStore interface {
	// Acquire returns ok=false when another holder has the item.
	Acquire(ctx context.Context, itemID int64) (Token, bool, error)
	Release(ctx context.Context, token Token) error
}

// MemoryTokens is a process-local TokenStore.
type MemoryTokens struct {
	mu     sync.Mutex
	owners map[int64]string
}

// NewMemoryTokens returns an empty in-process token store.
func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{owners: make(map[int64]string)}
}

func (m *MemoryTokens) Acquire(_ context.Context, itemID int64) (Token, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.owners[itemID]; held {
		return Token{}, false, nil
	}
	token := Token{ItemID: itemID, Owner: uuid.NewString()}
	m.owners[itemID] = token.Owner
	return token, true, nil
}

func (m *MemoryTokens) Release(_ context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owners[token.ItemID] == token.Owner {
		delete(m.owners, token.ItemID)
	}
	return nil
}

// releaseScript deletes the key only while it still names the caller, so a
// holder whose token expired cannot free someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTokens shares execution tokens between processes. Keys expire after
// ttl so a crashed holder cannot wedge an item.
type RedisTokens struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisTokens constructs a Redis-backed token store.
func NewRedisTokens(client redis.UniversalClient, prefix string, ttl time.Duration) (*RedisTokens, error) {
	if client == nil {
		return nil, errors.New("redis tokens: client required")
	}
	if ttl <= 0 {
		return nil, errors.New("redis tokens: ttl must be positive")
	}
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "clipdraft"
	}
	return &RedisTokens{client: client, prefix: prefix, ttl: ttl}, nil
}

func (r *RedisTokens) key(itemID int64) string {
	return fmt.Sprintf("%s:token:%d", r.prefix, itemID)
}

func (r *RedisTokens) Acquire(ctx context.Context, itemID int64) (Token, bool, error) {
	token := Token{ItemID: itemID, Owner: uuid.NewString()}
	ok, err := r.client.SetNX(ctx, r.key(itemID), token.Owner, r.ttl).Result()
	if err != nil {
		return Token{}, false, fmt.Errorf("acquire token for item %d: %w", itemID, err)
	}
	if !ok {
		return Token{}, false, nil
	}
	return token, true, nil
}

func (r *RedisTokens) Release(ctx context.Context, token Token) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(token.ItemID)}, token.Owner).Err(); err != nil {
		return fmt.Errorf("release token for item %d: %w", token.ItemID, err)
	}
	return nil
}
