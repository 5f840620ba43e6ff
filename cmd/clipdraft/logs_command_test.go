package main

import (
	"strings"
	"testing"
	"time"
)

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.run(t, "add", "https://video.test/watch?v=logs")
	waitFor(t, 5*time.Second, func() bool {
		return strings.Contains(env.run(t, "show", "1"), "Drafted")
	})

	out := env.run(t, "logs", "--lines", "0")
	if strings.TrimSpace(out) == "" || strings.Contains(out, "No log entries") {
		t.Fatalf("expected log output, got %q", out)
	}

	out = env.run(t, "logs", "--item", "1")
	requireContains(t, out, "item=1")
	out = env.run(t, "logs", "--item", "99")
	requireContains(t, out, "No log entries")
}

func TestLogsFallsBackToFile(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"logs"}, deadAddr(t), env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatal("expected log file lines")
	}

	_, _, err = runCLI(t, []string{"logs", "--item", "1"}, deadAddr(t), env.configPath)
	if err == nil {
		t.Fatal("expected item filter to require the API")
	}
}
