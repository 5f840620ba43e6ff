package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"clipdraft/internal/config"
	"clipdraft/internal/dispatch"
	"clipdraft/internal/lifecycle"
	"clipdraft/internal/queue"
	"clipdraft/internal/services/researcher"
	"clipdraft/internal/testsupport"
)

type countingTranscriber struct {
	calls atomic.Int32
	delay time.Duration
}

func (c *countingTranscriber) Transcribe(ctx context.Context, _ string) (string, error) {
	c.calls.Add(1)
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "transcript", nil
}

type fixedResearcher struct{}

func (fixedResearcher) Research(context.Context, string) (researcher.Result, error) {
	return researcher.Result{Notes: "notes", DraftTweets: []string{"draft"}}, nil
}

func startRacer(t *testing.T, cfg *config.Config, store *queue.Store, tr Transcriber, tokens dispatch.TokenStore) *Manager {
	t.Helper()
	m, err := NewManager(cfg, store, nil, Dependencies{
		Transcriber: tr,
		Researcher:  fixedResearcher{},
		Tokens:      tokens,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

func TestConcurrentDispatchRunsStepOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cases := []struct {
		name   string
		tokens func() (dispatch.TokenStore, dispatch.TokenStore)
	}{
		{
			name: "shared memory tokens",
			tokens: func() (dispatch.TokenStore, dispatch.TokenStore) {
				shared := dispatch.NewMemoryTokens()
				return shared, shared
			},
		},
		{
			name: "redis tokens",
			tokens: func() (dispatch.TokenStore, dispatch.TokenStore) {
				a, err := dispatch.NewRedisTokens(client, "race", time.Minute)
				if err != nil {
					t.Fatalf("NewRedisTokens: %v", err)
				}
				b, err := dispatch.NewRedisTokens(client, "race", time.Minute)
				if err != nil {
					t.Fatalf("NewRedisTokens: %v", err)
				}
				return a, b
			},
		},
		{
			name: "separate tokens",
			tokens: func() (dispatch.TokenStore, dispatch.TokenStore) {
				return dispatch.NewMemoryTokens(), dispatch.NewMemoryTokens()
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			store := testsupport.MustOpenStore(t, cfg)
			tr := &countingTranscriber{delay: 50 * time.Millisecond}
			tokensA, tokensB := tc.tokens()
			a := startRacer(t, cfg, store, tr, tokensA)
			b := startRacer(t, cfg, store, tr, tokensB)

			item := testsupport.NewItem(t, store, "https://x.test/race")
			var wg sync.WaitGroup
			for _, m := range []*Manager{a, b} {
				wg.Add(1)
				go func(m *Manager) {
					defer wg.Done()
					m.submit(item.ID, lifecycle.StepTranscription, "race")
				}(m)
			}
			wg.Wait()

			deadline := time.Now().Add(5 * time.Second)
			for {
				current, err := store.Get(context.Background(), item.ID)
				if err != nil {
					t.Fatalf("Get: %v", err)
				}
				if current.State == lifecycle.Drafted {
					break
				}
				if current.State == lifecycle.Failed || time.Now().After(deadline) {
					t.Fatalf("item state = %s (last error %+v)", current.State, current.LastError)
				}
				time.Sleep(10 * time.Millisecond)
			}
			if got := tr.calls.Load(); got != 1 {
				t.Fatalf("transcription calls = %d, want 1", got)
			}

			history, err := store.Events(context.Background(), item.ID)
			if err != nil {
				t.Fatalf("Events: %v", err)
			}
			starts := 0
			for _, tr := range history {
				if tr.Event == lifecycle.EventStartTranscription {
					starts++
				}
			}
			if starts != 1 {
				t.Fatalf("start_transcription recorded %d times", starts)
			}
		})
	}
}

func TestRecoverySkipsItemsRunningElsewhere(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewItem(t, store, "https://x.test/elsewhere")
	if _, err := store.UpdateIf(ctx, item.ID, lifecycle.Pending, lifecycle.EventStartTranscription, nil); err != nil {
		t.Fatalf("UpdateIf: %v", err)
	}
	tokens := dispatch.NewMemoryTokens()
	held, ok, err := tokens.Acquire(ctx, item.ID)
	if err != nil || !ok {
		t.Fatalf("Acquire: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { _ = tokens.Release(ctx, held) })

	startRacer(t, cfg, store, &countingTranscriber{}, tokens)

	current, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if current.State != lifecycle.Transcribing {
		t.Fatalf("state = %s, want transcribing left alone", current.State)
	}
}

func TestRequeueRestingStopsAtFullQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Dispatch.QueueSize = 1
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	oldest := testsupport.NewItem(t, store, "https://x.test/oldest")
	middle := testsupport.NewItem(t, store, "https://x.test/middle")
	testsupport.NewItem(t, store, "https://x.test/newest")

	m, err := NewManager(cfg, store, nil, Dependencies{Transcriber: &countingTranscriber{}, Researcher: fixedResearcher{}})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.dispatcher.Stop)

	requeued, err := m.requeueResting(ctx)
	if err != nil {
		t.Fatalf("requeueResting: %v", err)
	}
	if requeued != 1 || !m.dispatcher.Scheduled(oldest.ID) {
		t.Fatalf("requeued = %d, oldest scheduled = %v", requeued, m.dispatcher.Scheduled(oldest.ID))
	}
	if m.dispatcher.Scheduled(middle.ID) {
		t.Fatal("item beyond queue capacity marked scheduled")
	}

	requeued, err = m.requeueResting(ctx)
	if err != nil {
		t.Fatalf("second requeueResting: %v", err)
	}
	if requeued != 0 {
		t.Fatalf("second pass requeued %d, want 0 while the queue is full", requeued)
	}
}
