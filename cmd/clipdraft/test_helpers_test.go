package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"clipdraft/internal/config"
	"clipdraft/internal/daemon"
	"clipdraft/internal/logging"
	"clipdraft/internal/testsupport"
	"clipdraft/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	apiAddr    string
}

func fakeGateways(t *testing.T) (string, string) {
	t.Helper()
	transcription := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"transcript": "what the video said"})
	}))
	t.Cleanup(transcription.Close)
	research := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/research" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"notes":       "background notes",
			"citations":   []map[string]string{{"source": "https://source.test/article", "excerpt": "a quote"}},
			"draftTweets": []string{"first draft tweet", "second draft tweet"},
		})
	}))
	t.Cleanup(research.Close)
	return transcription.URL, research.URL
}

// writeConfig saves cfg as TOML so commands load the same settings the
// in-process daemon runs with.
func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	transcriptionURL, researchURL := fakeGateways(t)
	opts = append([]testsupport.ConfigOption{
		testsupport.WithTranscriptionURL(transcriptionURL),
		testsupport.WithResearchURL(researchURL),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	configPath := writeConfig(t, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	hub := logging.NewStreamHub(512)
	logger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "json",
		OutputPaths:      []string{cfg.LogPath()},
		ErrorOutputPaths: []string{cfg.LogPath()},
		Stream:           hub,
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	mgr, err := workflow.NewManager(cfg, store, logger, workflow.Dependencies{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d, err := daemon.New(cfg, store, logger, mgr, hub, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(d.Stop)

	return &cliTestEnv{cfg: cfg, configPath: configPath, apiAddr: d.APIAddr()}
}

// deadAddr returns a loopback address with nothing listening on it.
func deadAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	fullArgs := []string{}
	if apiAddr != "" {
		fullArgs = append(fullArgs, "--api", apiAddr)
	}
	if configPath != "" {
		fullArgs = append(fullArgs, "--config", configPath)
	}
	fullArgs = append(fullArgs, args...)
	cmd.SetArgs(fullArgs)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) run(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, args, e.apiAddr, e.configPath)
	if err != nil {
		t.Fatalf("clipdraft %s: %v (stderr: %s)", strings.Join(args, " "), err, stderr)
	}
	return out
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
