package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipdraft/internal/config"
	"clipdraft/internal/daemon"
	"clipdraft/internal/logging"
	"clipdraft/internal/testsupport"
	"clipdraft/internal/workflow"
)

func fakeGateways(t *testing.T) (string, string) {
	t.Helper()
	transcription := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"transcript": "a transcript"})
	}))
	t.Cleanup(transcription.Close)
	research := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/research" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"notes":       "notes",
			"citations":   []map[string]string{{"source": "https://a.test"}},
			"draftTweets": []string{"draft"},
		})
	}))
	t.Cleanup(research.Close)
	return transcription.URL, research.URL
}

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	hub := logging.NewStreamHub(256)
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", OutputPaths: []string{cfg.LogPath()}, ErrorOutputPaths: []string{cfg.LogPath()}, Stream: hub})
	if err != nil {
		t.Fatalf("logging.New failed: %v", err)
	}
	mgr, err := workflow.NewManager(cfg, store, logger, workflow.Dependencies{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	d, err := daemon.New(cfg, store, logger, mgr, hub, nil)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if !status.Workflow.Running {
		t.Fatal("expected workflow to report running")
	}
	if status.LockFilePath != cfg.LockPath() || status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected paths %+v", status)
	}
	if d.APIAddr() == "" {
		t.Fatal("expected api listener address")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if d.APIAddr() != "" {
		t.Fatal("expected api listener closed")
	}
}

func TestSecondDaemonOnSameDataDirIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}

	second := newDaemon(t, cfg)
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}
}
