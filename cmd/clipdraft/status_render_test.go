package main

import (
	"strings"
	"testing"
)

func TestRenderStatusLine(t *testing.T) {
	plain := renderStatusLine("Daemon", statusOK, "Running", false)
	if !strings.Contains(plain, "Daemon:") || !strings.Contains(plain, "[OK] Running") {
		t.Fatalf("unexpected plain line %q", plain)
	}
	if strings.Contains(plain, "\x1b[") {
		t.Fatalf("plain line should not contain ANSI codes: %q", plain)
	}
	colored := renderStatusLine("Daemon", statusError, "", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected red line, got %q", colored)
	}
	if !strings.Contains(colored, "[ERROR]") {
		t.Fatalf("expected bare label, got %q", colored)
	}
}

func TestStateLabelsAndKinds(t *testing.T) {
	cases := map[string]struct {
		label string
		kind  statusKind
	}{
		"drafted":      {"Drafted", statusOK},
		"failed":       {"Failed", statusError},
		"researching":  {"Researching", statusInfo},
		"pending":      {"Pending", statusWarn},
		"transcribed":  {"Transcribed", statusWarn},
		"transcribing": {"Transcribing", statusInfo},
	}
	for state, want := range cases {
		if got := stateLabel(state); got != want.label {
			t.Errorf("stateLabel(%q) = %q, want %q", state, got, want.label)
		}
		if got := stateKind(state); got != want.kind {
			t.Errorf("stateKind(%q) = %v, want %v", state, got, want.kind)
		}
	}
	if stateLabel("") != "Unknown" {
		t.Fatal("expected Unknown for empty state")
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader(" Checks ", false)
	if len(lines) != 2 || lines[0] != "== Checks ==" || lines[1] != strings.Repeat("-", len("== Checks ==")) {
		t.Fatalf("unexpected header %q", lines)
	}
}
