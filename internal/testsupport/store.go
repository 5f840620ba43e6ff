package testsupport

import (
	"context"
	"testing"

	"clipdraft/internal/config"
	"clipdraft/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem creates a pending item for tests using the provided store.
func NewItem(t testing.TB, store *queue.Store, sourceURL string) *queue.Item {
	t.Helper()

	item, err := store.Create(context.Background(), sourceURL)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return item
}
