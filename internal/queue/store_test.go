package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"clipdraft/internal/lifecycle"
	"clipdraft/internal/queue"
	"clipdraft/internal/services"
	"clipdraft/internal/testsupport"
)

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item, err := store.Create(ctx, "https://example.com/v/1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}
	if item.State != lifecycle.Pending {
		t.Fatalf("expected pending, got %s", item.State)
	}
	if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps, got %+v", item)
	}

	fetched, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.SourceURL != "https://example.com/v/1" || fetched.LastError != nil {
		t.Fatalf("unexpected fetched item: %+v", fetched)
	}

	if _, err := store.Get(ctx, 9999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateIfFullPipelinePersistsOutputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	item := testsupport.NewItem(t, store, "https://example.com/v/2")

	mustUpdate := func(expected lifecycle.State, ev lifecycle.Event, mutate func(*queue.Item) error) *queue.Item {
		t.Helper()
		updated, err := store.UpdateIf(ctx, item.ID, expected, ev, mutate)
		if err != nil {
			t.Fatalf("UpdateIf(%s, %s) failed: %v", expected, ev, err)
		}
		return updated
	}

	mustUpdate(lifecycle.Pending, lifecycle.EventStartTranscription, nil)
	mustUpdate(lifecycle.Transcribing, lifecycle.EventTranscriptionSucceeded, func(it *queue.Item) error {
		it.Transcript = "hello world"
		return nil
	})
	mustUpdate(lifecycle.Transcribed, lifecycle.EventStartResearch, nil)
	final := mustUpdate(lifecycle.Researching, lifecycle.EventResearchSucceeded, func(it *queue.Item) error {
		it.ResearchNotes = "notes"
		it.Citations = []queue.Citation{{Source: "https://src.example", Excerpt: "quote"}}
		it.DraftTweets = []string{"tweet one", "tweet two"}
		return nil
	})
	if final.State != lifecycle.Drafted {
		t.Fatalf("expected drafted, got %s", final.State)
	}

	fetched, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.Transcript != "hello world" || fetched.ResearchNotes != "notes" {
		t.Fatalf("outputs not persisted: %+v", fetched)
	}
	if len(fetched.Citations) != 1 || fetched.Citations[0].Source != "https://src.example" {
		t.Fatalf("citations not persisted: %+v", fetched.Citations)
	}
	if len(fetched.DraftTweets) != 2 {
		t.Fatalf("drafts not persisted: %+v", fetched.DraftTweets)
	}

	history, err := store.Events(ctx, item.ID)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	wantEvents := []lifecycle.Event{
		lifecycle.EventSubmit,
		lifecycle.EventStartTranscription,
		lifecycle.EventTranscriptionSucceeded,
		lifecycle.EventStartResearch,
		lifecycle.EventResearchSucceeded,
	}
	if len(history) != len(wantEvents) {
		t.Fatalf("expected %d transitions, got %d", len(wantEvents), len(history))
	}
	for i, ev := range wantEvents {
		if history[i].Event != ev {
			t.Fatalf("transition %d = %s, want %s", i, history[i].Event, ev)
		}
	}
	if history[0].PreviousState != "" || history[4].NextState != lifecycle.Drafted {
		t.Fatalf("unexpected history endpoints: %+v", history)
	}
}

func TestUpdateIfConflictLeavesItemUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	item := testsupport.NewItem(t, store, "https://example.com/v/3")

	_, err := store.UpdateIf(ctx, item.ID, lifecycle.Transcribed, lifecycle.EventStartResearch, nil)
	if !errors.Is(err, services.ErrStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	_, err = store.UpdateIf(ctx, item.ID, lifecycle.Pending, lifecycle.EventResearchSucceeded, nil)
	if !errors.Is(err, services.ErrStateConflict) {
		t.Fatalf("expected off-graph event to conflict, got %v", err)
	}
	_, err = store.UpdateIf(ctx, 4242, lifecycle.Pending, lifecycle.EventStartTranscription, nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	fetched, _ := store.Get(ctx, item.ID)
	if fetched.State != lifecycle.Pending {
		t.Fatalf("item should remain pending, got %s", fetched.State)
	}
}

func TestUpdateIfMutateErrorRollsBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	item := testsupport.NewItem(t, store, "https://example.com/v/4")

	boom := errors.New("boom")
	_, err := store.UpdateIf(ctx, item.ID, lifecycle.Pending, lifecycle.EventStartTranscription, func(*queue.Item) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutate error, got %v", err)
	}
	history, _ := store.Events(ctx, item.ID)
	if len(history) != 1 {
		t.Fatalf("expected only the submit transition, got %d", len(history))
	}
}

func TestUpdateIfRejectsEmptyTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	item := testsupport.NewItem(t, store, "https://example.com/v/5")

	if _, err := store.UpdateIf(ctx, item.ID, lifecycle.Pending, lifecycle.EventStartTranscription, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := store.UpdateIf(ctx, item.ID, lifecycle.Transcribing, lifecycle.EventTranscriptionSucceeded, func(it *queue.Item) error {
		it.Transcript = "   "
		return nil
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFailureAndRetryResumePoints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	t.Run("research failure resumes at transcribed", func(t *testing.T) {
		item := testsupport.NewItem(t, store, "https://example.com/v/6")
		steps := []struct {
			from lifecycle.State
			ev   lifecycle.Event
			fn   func(*queue.Item) error
		}{
			{lifecycle.Pending, lifecycle.EventStartTranscription, nil},
			{lifecycle.Transcribing, lifecycle.EventTranscriptionSucceeded, func(it *queue.Item) error { it.Transcript = "words"; return nil }},
			{lifecycle.Transcribed, lifecycle.EventStartResearch, nil},
			{lifecycle.Researching, lifecycle.EventResearchFailed, func(it *queue.Item) error {
				it.LastError = &lifecycle.Failure{Kind: services.KindRemoteRejected, Message: "quota"}
				return nil
			}},
		}
		for _, step := range steps {
			if _, err := store.UpdateIf(ctx, item.ID, step.from, step.ev, step.fn); err != nil {
				t.Fatalf("UpdateIf(%s, %s): %v", step.from, step.ev, err)
			}
		}

		failed, _ := store.Get(ctx, item.ID)
		if failed.State != lifecycle.Failed || failed.LastError == nil {
			t.Fatalf("expected failed item with error, got %+v", failed)
		}
		if failed.LastError.Step != lifecycle.StepResearch || failed.LastError.Kind != services.KindRemoteRejected {
			t.Fatalf("unexpected failure record: %+v", failed.LastError)
		}
		if failed.LastError.At.IsZero() {
			t.Fatal("expected failure timestamp")
		}
		if failed.Transcript != "words" {
			t.Fatal("transcript must survive a research failure")
		}

		retried, err := store.UpdateIf(ctx, item.ID, lifecycle.Failed, lifecycle.EventRetry, nil)
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if retried.State != lifecycle.Transcribed || retried.LastError != nil || retried.Transcript != "words" {
			t.Fatalf("unexpected retried item: %+v", retried)
		}
	})

	t.Run("transcription failure resumes at pending", func(t *testing.T) {
		item := testsupport.NewItem(t, store, "https://example.com/v/7")
		if _, err := store.UpdateIf(ctx, item.ID, lifecycle.Pending, lifecycle.EventStartTranscription, nil); err != nil {
			t.Fatalf("start: %v", err)
		}
		if _, err := store.UpdateIf(ctx, item.ID, lifecycle.Transcribing, lifecycle.EventTranscriptionFailed, func(it *queue.Item) error {
			it.LastError = &lifecycle.Failure{Kind: services.KindTimeout, Message: "deadline exceeded"}
			return nil
		}); err != nil {
			t.Fatalf("fail: %v", err)
		}
		retried, err := store.UpdateIf(ctx, item.ID, lifecycle.Failed, lifecycle.EventRetry, nil)
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if retried.State != lifecycle.Pending {
			t.Fatalf("expected pending, got %s", retried.State)
		}
		history, _ := store.Events(ctx, item.ID)
		last := history[len(history)-1]
		if last.Event != lifecycle.EventRetry || last.Note != "resume at pending" {
			t.Fatalf("unexpected retry transition: %+v", last)
		}
	})
}

func TestConcurrentUpdateIfOnlyOneWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	item := testsupport.NewItem(t, store, "https://example.com/v/8")

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateIf(ctx, item.ID, lifecycle.Pending, lifecycle.EventStartTranscription, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, services.ErrStateConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || conflicts != writers-1 {
		t.Fatalf("expected exactly one winner, got wins=%d conflicts=%d", wins, conflicts)
	}
}

func TestListOrderingAndFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewItem(t, store, "https://example.com/a")
	second := testsupport.NewItem(t, store, "https://example.com/b")
	if _, err := store.UpdateIf(ctx, first.ID, lifecycle.Pending, lifecycle.EventStartTranscription, nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}

	pending, err := store.List(ctx, lifecycle.Pending)
	if err != nil {
		t.Fatalf("List(pending) failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[lifecycle.Pending] != 1 || stats[lifecycle.Transcribing] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestRemoveRespectsBusyStatesAndCascades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	item := testsupport.NewItem(t, store, "https://example.com/v/9")

	if _, err := store.UpdateIf(ctx, item.ID, lifecycle.Pending, lifecycle.EventStartTranscription, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := store.Remove(ctx, item.ID, lifecycle.Transcribing, lifecycle.Researching)
	if !errors.Is(err, services.ErrStateConflict) {
		t.Fatalf("expected conflict while transcribing, got %v", err)
	}

	if err := store.Remove(ctx, item.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := store.Get(ctx, item.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected item gone, got %v", err)
	}
	if _, err := store.Events(ctx, item.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected history lookup to report not found, got %v", err)
	}
	if err := store.Remove(ctx, item.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, ok, err := store.Setting(ctx, "gateway.transcription.base_url"); err != nil || ok {
		t.Fatalf("expected missing setting, got ok=%v err=%v", ok, err)
	}
	if err := store.SetSetting(ctx, "gateway.transcription.base_url", "https://a.example"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := store.SetSetting(ctx, "gateway.transcription.base_url", "https://b.example"); err != nil {
		t.Fatalf("SetSetting overwrite failed: %v", err)
	}
	value, ok, err := store.Setting(ctx, "gateway.transcription.base_url")
	if err != nil || !ok || value != "https://b.example" {
		t.Fatalf("unexpected setting: %q ok=%v err=%v", value, ok, err)
	}
	if err := store.SetSetting(ctx, "gateway.transcription.base_url", ""); err != nil {
		t.Fatalf("SetSetting delete failed: %v", err)
	}
	if _, ok, _ := store.Setting(ctx, "gateway.transcription.base_url"); ok {
		t.Fatal("expected setting deleted")
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	item, err := store.Create(context.Background(), "https://example.com/persist")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	store.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	fetched, err := reopened.Get(context.Background(), item.ID)
	if err != nil || fetched.SourceURL != "https://example.com/persist" {
		t.Fatalf("expected item after reopen, got %+v err=%v", fetched, err)
	}
}
