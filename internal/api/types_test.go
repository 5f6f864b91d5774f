package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/maverikod/mcp-dochub-server/internal/queue"
)

func TestFromTaskCopiesFields(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	task := &queue.Task{
		ID:              "task-1",
		Kind:            "docker_push",
		Key:             "acme/app:1.0",
		State:           queue.StateSucceeded,
		Attempts:        2,
		CreatedAt:       started.Add(-time.Minute),
		StartedAt:       &started,
		FinishedAt:      &finished,
		ParamsJSON:      `{"image_name":"acme/app"}`,
		ResultJSON:      `{"digest":"sha256:abc"}`,
		ProgressPercent: 100,
	}

	snapshot := FromTask(task)
	if snapshot.ID != "task-1" || snapshot.State != "succeeded" || snapshot.Attempts != 2 {
		t.Fatalf("unexpected snapshot: %#v", snapshot)
	}
	if snapshot.DurationSeconds != 90 {
		t.Fatalf("expected 90s duration, got %v", snapshot.DurationSeconds)
	}

	encoded, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(encoded, &wire); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if wire["attempt_count"] != float64(2) {
		t.Fatalf("expected attempt_count field, got %#v", wire)
	}
	params, ok := wire["params"].(map[string]any)
	if !ok || params["image_name"] != "acme/app" {
		t.Fatalf("params not embedded as JSON: %#v", wire["params"])
	}
}

func TestFromTaskOmitsEmptyPayloads(t *testing.T) {
	task := &queue.Task{ID: "task-2", Kind: "docker_pull", State: queue.StatePending, CreatedAt: time.Now()}
	snapshot := FromTask(task)
	if snapshot.Params != nil || snapshot.Result != nil {
		t.Fatalf("expected nil payloads, got %#v", snapshot)
	}
	if snapshot.DurationSeconds != 0 {
		t.Fatalf("expected zero duration before start, got %v", snapshot.DurationSeconds)
	}

	encoded, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(encoded, &wire); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if _, present := wire["result"]; present {
		t.Fatalf("empty result must be omitted: %#v", wire)
	}
	if _, present := wire["started_at"]; present {
		t.Fatalf("nil started_at must be omitted: %#v", wire)
	}
}
