// Package redisconn builds the optional Redis client shared by the execution
// token store and the transition feed.
package redisconn

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"clipdraft/internal/config"
)

// New returns a client for cfg.Redis.URL, or nil when Redis is not configured.
func New(cfg *config.Config) (*redis.Client, error) {
	if cfg == nil || !cfg.RedisEnabled() {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return redis.NewClient(opts), nil
}

// Ping validates the connection with a short deadline.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}
