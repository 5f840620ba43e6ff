package main

import (
	"encoding/json"
	"testing"

	"clipdraft/internal/api"
)

func TestStatusWithRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.run(t, "status")
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "Dispatch queue")
	requireContains(t, out, "Pending")
	requireContains(t, out, "Transcription gateway")
	requireContains(t, out, "(reachable)")

	out = env.run(t, "status", "--json")
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status --json: %v\n%s", err, out)
	}
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestStatusWithoutDaemonRunsLocalChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, deadAddr(t), env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "Data directory")
	requireContains(t, out, env.cfg.Transcription.BaseURL)
}
