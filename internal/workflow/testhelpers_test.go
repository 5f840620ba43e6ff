package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"clipdraft/internal/config"
	"clipdraft/internal/events"
	"clipdraft/internal/lifecycle"
	"clipdraft/internal/queue"
	"clipdraft/internal/services/researcher"
	"clipdraft/internal/testsupport"
	"clipdraft/internal/workflow"
)

type transcriberFunc func(ctx context.Context, sourceURL string) (string, error)

func (f transcriberFunc) Transcribe(ctx context.Context, sourceURL string) (string, error) {
	return f(ctx, sourceURL)
}

type researcherFunc func(ctx context.Context, transcript string) (researcher.Result, error)

func (f researcherFunc) Research(ctx context.Context, transcript string) (researcher.Result, error) {
	return f(ctx, transcript)
}

func okTranscriber(transcript string) transcriberFunc {
	return func(context.Context, string) (string, error) { return transcript, nil }
}

func okResearcher() researcherFunc {
	return func(_ context.Context, transcript string) (researcher.Result, error) {
		return researcher.Result{
			Notes:       "notes about " + transcript,
			Citations:   []researcher.Citation{{Source: "https://a.test", Excerpt: "A"}},
			DraftTweets: []string{"tweet1"},
		}, nil
	}
}

type notification struct {
	kind   string
	itemID int64
	step   string
	fkind  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (r *recordingNotifier) NotifyDrafted(_ context.Context, itemID int64, _ string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notification{kind: "drafted", itemID: itemID})
	return nil
}

func (r *recordingNotifier) NotifyFailed(_ context.Context, itemID int64, _, step, kind, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notification{kind: "failed", itemID: itemID, step: step, fkind: kind})
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func (r *recordingNotifier) snapshot() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification(nil), r.sent...)
}

type recordingPublisher struct {
	mu          sync.Mutex
	transitions []events.Transition
}

func (r *recordingPublisher) Publish(_ context.Context, t events.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
	return nil
}

func (r *recordingPublisher) forItem(id int64) []events.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Transition
	for _, t := range r.transitions {
		if t.ItemID == id {
			out = append(out, t)
		}
	}
	return out
}

type harness struct {
	cfg       *config.Config
	store     *queue.Store
	mgr       *workflow.Manager
	notifier  *recordingNotifier
	publisher *recordingPublisher
}

func newHarness(t *testing.T, cfg *config.Config, deps workflow.Dependencies, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	if cfg == nil {
		cfg = testsupport.NewConfig(t)
	}
	store := testsupport.MustOpenStore(t, cfg)
	return newHarnessWithStore(t, cfg, store, deps, opts...)
}

func newHarnessWithStore(t *testing.T, cfg *config.Config, store *queue.Store, deps workflow.Dependencies, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	h := &harness{cfg: cfg, store: store, notifier: &recordingNotifier{}, publisher: &recordingPublisher{}}
	if deps.Notifier == nil {
		deps.Notifier = h.notifier
	}
	if deps.Publisher == nil {
		deps.Publisher = h.publisher
	}
	mgr, err := workflow.NewManager(cfg, store, nil, deps, opts...)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	h.mgr = mgr
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(h.mgr.Stop)
}

func waitForState(t *testing.T, mgr *workflow.Manager, id int64, want lifecycle.State) *queue.Item {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last *queue.Item
	for time.Now().Before(deadline) {
		item, err := mgr.GetStatus(context.Background(), id)
		if err != nil {
			t.Fatalf("GetStatus failed: %v", err)
		}
		last = item
		if item.State == want {
			return item
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("item %d never reached %s (last state %s)", id, want, last.State)
	return nil
}

func eventNames(t *testing.T, mgr *workflow.Manager, id int64) []lifecycle.Event {
	t.Helper()
	history, err := mgr.History(context.Background(), id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	out := make([]lifecycle.Event, 0, len(history))
	for _, tr := range history {
		out = append(out, tr.Event)
	}
	return out
}

func sameEvents(a, b []lifecycle.Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
