package main

import (
	"strings"
	"testing"
	"time"

	"github.com/maverikod/mcp-dochub-server/internal/api"
)

func TestFormatDuration(t *testing.T) {
	cases := map[float64]string{
		0:    "-",
		1.5:  "1.5s",
		75:   "1m15s",
		3600: "1h0m0s",
	}
	for input, want := range cases {
		if got := formatDuration(input); got != want {
			t.Fatalf("formatDuration(%v): expected %q, got %q", input, want, got)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("unexpected short id: %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("short ids must pass through: %q", got)
	}
}

func TestFormatProgress(t *testing.T) {
	running := api.TaskSnapshot{State: "running", ProgressPercent: 42, ProgressMessage: "Uploading layers"}
	if got := formatProgress(running); !strings.Contains(got, "42%") || !strings.Contains(got, "Uploading layers") {
		t.Fatalf("unexpected progress: %q", got)
	}
	pending := api.TaskSnapshot{State: "pending", ProgressPercent: 42}
	if got := formatProgress(pending); got != "-" {
		t.Fatalf("non-running tasks have no progress, got %q", got)
	}
}

func TestBuildTaskRows(t *testing.T) {
	rows := buildTaskRows([]api.TaskSnapshot{{
		ID:        "0123456789abcdef",
		Kind:      "docker_push",
		Key:       "acme/app:1.0",
		State:     "running",
		Attempts:  2,
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}})
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	row := rows[0]
	if row[0] != "01234567" || row[1] != "Docker Push" || row[3] != "Running" || row[4] != "2" {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestTableRenderPadsShortRows(t *testing.T) {
	def := tableDef{headers: []string{"State", "Count"}, numeric: []int{2}}
	rendered := def.render([][]string{{"pending", "3"}, {"running"}})
	for _, want := range []string{"State", "Count", "pending", "running"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("rendered table missing %q:\n%s", want, rendered)
		}
	}

	if empty := (tableDef{}).render(nil); empty != "" {
		t.Fatalf("expected empty render for empty definition, got %q", empty)
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"push", "pull", "build", "ollama", "status", "logs", "cancel", "queue", "daemon", "config"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Fatalf("expected %q subcommand, got %v", name, err)
		}
	}
}
