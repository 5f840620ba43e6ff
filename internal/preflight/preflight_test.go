package preflight

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"clipdraft/internal/config"
	"clipdraft/internal/services/gateway"
	"clipdraft/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("detail = %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckGateway(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	closedURL := "http://" + listener.Addr().String()
	listener.Close()

	tests := []struct {
		name   string
		url    string
		passed bool
		detail string
	}{
		{name: "unset", url: "", passed: false, detail: "not set"},
		{name: "404 still reachable", url: notFound.URL, passed: true, detail: "reachable"},
		{name: "server error", url: broken.URL, passed: false, detail: "server error 502"},
		{name: "refused", url: closedURL, passed: false, detail: "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckGateway(context.Background(), "gw", tt.url)
			if result.Passed != tt.passed {
				t.Fatalf("passed = %v, want %v (%s)", result.Passed, tt.passed, result.Detail)
			}
			if !strings.Contains(result.Detail, tt.detail) {
				t.Fatalf("detail = %q, want substring %q", result.Detail, tt.detail)
			}
		})
	}
}

func TestCheckResearchCredentials(t *testing.T) {
	cfg := config.Default()
	if result := CheckResearchCredentials(&cfg); !result.Passed {
		t.Fatalf("service provider should pass: %s", result.Detail)
	}
	cfg.Research.Provider = config.ResearchProviderPerplexity
	cfg.Research.Model = "sonar"
	if result := CheckResearchCredentials(&cfg); result.Passed {
		t.Fatal("perplexity without key should fail")
	}
	cfg.Research.APIKey = "pplx-key"
	if result := CheckResearchCredentials(&cfg); !result.Passed {
		t.Fatalf("perplexity with key should pass: %s", result.Detail)
	}
}

func TestCheckRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	if result := CheckRedis(context.Background(), client); !result.Passed {
		t.Fatalf("expected pass: %s", result.Detail)
	}
	mr.Close()
	if result := CheckRedis(context.Background(), client); result.Passed {
		t.Fatal("expected failure after redis closed")
	}
	if result := CheckRedis(context.Background(), nil); result.Passed {
		t.Fatal("expected failure for nil client")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, nil, nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	gateways := map[string]string{gateway.Transcription: srv.URL, gateway.Research: srv.URL}

	results := RunAll(context.Background(), cfg, gateways, nil)
	if len(results) != 5 {
		t.Fatalf("expected 5 results without redis, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}

	mr := miniredis.RunT(t)
	cfg.Redis.URL = "redis://" + mr.Addr()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	results = RunAll(context.Background(), cfg, gateways, client)
	if len(results) != 6 || results[5].Name != "Redis" || !results[5].Passed {
		t.Fatalf("expected passing redis check, got %+v", results)
	}
}
