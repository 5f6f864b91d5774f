package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/maverikod/mcp-dochub-server/internal/queue"
	"github.com/maverikod/mcp-dochub-server/internal/testsupport"
)

func insertTask(t *testing.T, store *queue.Store, id, kind, key string) *queue.Task {
	t.Helper()
	task := &queue.Task{
		ID:    id,
		Kind:  kind,
		Key:   key,
		State: queue.StatePending,
	}
	if err := task.SetParams(map[string]any{"image_name": "alpine"}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if err := store.Insert(context.Background(), task); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return task
}

func TestStoreInsertAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := insertTask(t, store, "task-1", "docker_pull", "docker.io/library/alpine:latest")

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Kind != "docker_pull" || fetched.Key != "docker.io/library/alpine:latest" {
		t.Fatalf("unexpected fetched task: %#v", fetched)
	}
	if fetched.State != queue.StatePending {
		t.Fatalf("expected pending state, got %s", fetched.State)
	}
	if fetched.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be assigned")
	}

	params, err := fetched.Params()
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	if params["image_name"] != "alpine" {
		t.Fatalf("unexpected params: %#v", params)
	}
}

func TestStoreGetByIDUnknown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreUpdateLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := insertTask(t, store, "task-1", "docker_push", "docker.io/acme/app:1.0")

	task.MarkRunning(time.Now())
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update to running failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.State != queue.StateRunning || fetched.Attempts != 1 {
		t.Fatalf("unexpected running snapshot: state=%s attempts=%d", fetched.State, fetched.Attempts)
	}
	if fetched.StartedAt == nil {
		t.Fatal("expected StartedAt to be set")
	}

	if err := fetched.SetResult(map[string]any{"digest": "sha256:abc"}); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}
	fetched.MarkSucceeded(time.Now())
	if err := store.Update(ctx, fetched); err != nil {
		t.Fatalf("Update to succeeded failed: %v", err)
	}

	final, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.State != queue.StateSucceeded {
		t.Fatalf("expected succeeded, got %s", final.State)
	}
	if final.FinishedAt == nil {
		t.Fatal("expected FinishedAt to be set")
	}
	result, err := final.Result()
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if result["digest"] != "sha256:abc" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestStoreListFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		insertTask(t, store, fmt.Sprintf("pending-%d", i), "docker_pull", fmt.Sprintf("key-%d", i))
	}
	running := insertTask(t, store, "running-1", "docker_push", "key-0")
	running.MarkRunning(time.Now())
	if err := store.Update(ctx, running); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	pending, err := store.List(ctx, queue.Filter{States: []queue.State{queue.StatePending}})
	if err != nil {
		t.Fatalf("List pending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending tasks, got %d", len(pending))
	}

	byKey, err := store.List(ctx, queue.Filter{Key: "key-0"})
	if err != nil {
		t.Fatalf("List by key failed: %v", err)
	}
	if len(byKey) != 2 {
		t.Fatalf("expected 2 tasks for key-0, got %d", len(byKey))
	}

	all, err := store.List(ctx, queue.Filter{})
	if err != nil {
		t.Fatalf("List all failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Fatal("expected tasks ordered by creation time")
		}
	}
}

func TestStoreCancelFlag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := insertTask(t, store, "task-1", "ollama_pull", "ollama/llama3")

	requested, err := store.CancelRequested(ctx, task.ID)
	if err != nil {
		t.Fatalf("CancelRequested failed: %v", err)
	}
	if requested {
		t.Fatal("expected cancel flag to start unset")
	}

	if err := store.SetCancelRequested(ctx, task.ID); err != nil {
		t.Fatalf("SetCancelRequested failed: %v", err)
	}
	requested, err = store.CancelRequested(ctx, task.ID)
	if err != nil {
		t.Fatalf("CancelRequested failed: %v", err)
	}
	if !requested {
		t.Fatal("expected cancel flag to be set")
	}

	task.MarkRunning(time.Now())
	task.MarkSucceeded(time.Now())
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := store.SetCancelRequested(ctx, task.ID); !errors.Is(err, queue.ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal for finished task, got %v", err)
	}
	if err := store.SetCancelRequested(ctx, "missing"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown task, got %v", err)
	}
}

func TestStoreProgressClamped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := insertTask(t, store, "task-1", "docker_build", "docker.io/acme/app:dev")

	if err := store.UpdateProgress(ctx, task.ID, 150, "layer upload"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.ProgressPercent != 100 {
		t.Fatalf("expected percent clamped to 100, got %v", fetched.ProgressPercent)
	}
	if fetched.ProgressMessage != "layer upload" {
		t.Fatalf("unexpected progress message: %q", fetched.ProgressMessage)
	}

	if err := store.UpdateProgress(ctx, task.ID, -5, ""); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	fetched, err = store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.ProgressPercent != 0 {
		t.Fatalf("expected percent clamped to 0, got %v", fetched.ProgressPercent)
	}
}

func TestStoreLogsOrdered(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := insertTask(t, store, "task-1", "docker_pull", "docker.io/library/redis:7")

	messages := []string{"Task added to queue", "Task started", "Pulling image"}
	for _, message := range messages {
		if err := store.AppendLog(ctx, task.ID, message); err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
	}

	lines, err := store.Logs(ctx, task.ID)
	if err != nil {
		t.Fatalf("Logs failed: %v", err)
	}
	if len(lines) != len(messages) {
		t.Fatalf("expected %d log lines, got %d", len(messages), len(lines))
	}
	for i, line := range lines {
		if line.Message != messages[i] {
			t.Fatalf("log line %d: expected %q, got %q", i, messages[i], line.Message)
		}
		if line.At.IsZero() {
			t.Fatalf("log line %d missing timestamp", i)
		}
	}
}

func TestStoreStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	insertTask(t, store, "p-1", "docker_pull", "key-a")
	insertTask(t, store, "p-2", "docker_pull", "key-b")

	failed := insertTask(t, store, "f-1", "docker_push", "key-c")
	failed.MarkRunning(time.Now())
	failed.MarkFailed(time.Now(), "push failed: denied")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestResetStuckRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stuck := insertTask(t, store, "stuck-1", "docker_build", "docker.io/acme/app:dev")
	stuck.MarkRunning(time.Now())
	if err := store.Update(ctx, stuck); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reset, err := store.ResetStuckRunning(ctx)
	if err != nil {
		t.Fatalf("ResetStuckRunning failed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset task, got %d", reset)
	}

	fetched, err := store.GetByID(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.State != queue.StatePending {
		t.Fatalf("expected pending after reset, got %s", fetched.State)
	}
}

func TestClearTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	insertTask(t, store, "p-1", "docker_pull", "key-a")

	done := insertTask(t, store, "d-1", "docker_pull", "key-b")
	done.MarkRunning(time.Now())
	done.MarkSucceeded(time.Now())
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	cancelled := insertTask(t, store, "c-1", "docker_pull", "key-c")
	cancelled.MarkCancelled(time.Now())
	if err := store.Update(ctx, cancelled); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	removed, err := store.ClearTerminal(ctx)
	if err != nil {
		t.Fatalf("ClearTerminal failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed tasks, got %d", removed)
	}

	remaining, err := store.List(ctx, queue.Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "p-1" {
		t.Fatalf("expected only pending task to remain, got %#v", remaining)
	}
}

func TestEvictTerminalBefore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	old := insertTask(t, store, "old-1", "docker_pull", "key-a")
	old.MarkRunning(time.Now())
	finished := time.Now().Add(-48 * time.Hour).UTC()
	old.State = queue.StateSucceeded
	old.FinishedAt = &finished
	if err := store.Update(ctx, old); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh := insertTask(t, store, "fresh-1", "docker_pull", "key-b")
	fresh.MarkRunning(time.Now())
	fresh.MarkSucceeded(time.Now())
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	removed, err := store.EvictTerminalBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("EvictTerminalBefore failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 evicted task, got %d", removed)
	}
	if _, err := store.GetByID(ctx, "old-1"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected old task to be gone, got %v", err)
	}
	if _, err := store.GetByID(ctx, "fresh-1"); err != nil {
		t.Fatalf("expected fresh task to remain: %v", err)
	}
}

func TestParseState(t *testing.T) {
	if state, ok := queue.ParseState(" Running "); !ok || state != queue.StateRunning {
		t.Fatalf("expected running, got %q ok=%v", state, ok)
	}
	if _, ok := queue.ParseState("resolving"); ok {
		t.Fatal("expected unknown state to be rejected")
	}
}

func TestDuplicateInsertRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	insertTask(t, store, "dup-1", "docker_pull", "key-a")
	dup := &queue.Task{ID: "dup-1", Kind: "docker_pull", State: queue.StatePending}
	if err := store.Insert(context.Background(), dup); err == nil {
		t.Fatal("expected duplicate id insert to fail")
	}
}
