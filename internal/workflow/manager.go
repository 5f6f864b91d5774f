package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maverikod/mcp-dochub-server/internal/config"
	"github.com/maverikod/mcp-dochub-server/internal/executor"
	"github.com/maverikod/mcp-dochub-server/internal/logging"
	"github.com/maverikod/mcp-dochub-server/internal/queue"
)

// retentionSweepInterval is how often terminal tasks are checked against the
// configured retention window.
const retentionSweepInterval = time.Hour

// Manager owns task admission, scheduling, and the worker pool. One instance
// per daemon; construct with NewManager, then Start/Stop bound its lifecycle.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	registry *executor.Registry
	logger   *slog.Logger
	sched    *scheduler

	mu      sync.RWMutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// CancelOutcome reports what a cancellation request achieved.
type CancelOutcome struct {
	// Accepted is true when the request changed anything: either the task
	// was cancelled outright or cancellation was requested cooperatively.
	Accepted bool
	// FinalState is set when the task is already in (or was just moved to) a
	// terminal state.
	FinalState queue.State
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, registry *executor.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		registry: registry,
		logger:   logger.With(logging.String(logging.FieldComponent, "workflow")),
		sched:    newScheduler(),
	}
}

// Submit validates and admits a new task, returning its snapshot without
// waiting for execution. The kind must be registered and params must pass
// the executor's schema check; when key is empty the executor derives the
// contention key from params.
func (m *Manager) Submit(ctx context.Context, kind, key string, params map[string]any) (*queue.Task, error) {
	m.mu.RLock()
	stopped := m.stopped
	m.mu.RUnlock()
	if stopped {
		return nil, errors.New("workflow manager stopped, rejecting new submissions")
	}

	exec, ok := m.registry.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown task kind %q", queue.ErrValidation, kind)
	}
	if params == nil {
		params = map[string]any{}
	}
	if err := exec.Validate(params); err != nil {
		return nil, fmt.Errorf("%w: %s", queue.ErrValidation, err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		derived, err := exec.ContentionKey(params)
		if err != nil {
			return nil, fmt.Errorf("%w: derive contention key: %s", queue.ErrValidation, err)
		}
		key = derived
	}

	task := &queue.Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Key:       key,
		State:     queue.StatePending,
		CreatedAt: time.Now().UTC(),
	}
	if err := task.SetParams(params); err != nil {
		return nil, fmt.Errorf("%w: %s", queue.ErrValidation, err)
	}

	if err := m.store.Insert(ctx, task); err != nil {
		return nil, fmt.Errorf("admit task: %w", err)
	}
	if err := m.store.AppendLog(ctx, task.ID, "Task added to queue"); err != nil {
		m.logger.Warn("failed to append admission log", logging.Error(err), logging.String(logging.FieldTaskID, task.ID))
	}

	m.sched.enqueue(task.ID, task.Key)
	m.logger.Info("task submitted",
		logging.String(logging.FieldEventType, "task_submitted"),
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldTaskKind, task.Kind),
		logging.String(logging.FieldTaskKey, task.Key),
	)
	return task, nil
}

// Status returns the current snapshot of a task.
func (m *Manager) Status(ctx context.Context, id string) (*queue.Task, error) {
	return m.store.GetByID(ctx, id)
}

// List returns point-in-time snapshots of known tasks matching the filter,
// ordered by creation time ascending.
func (m *Manager) List(ctx context.Context, filter queue.Filter) ([]*queue.Task, error) {
	return m.store.List(ctx, filter)
}

// Logs returns a task's execution log.
func (m *Manager) Logs(ctx context.Context, id string) ([]queue.LogLine, error) {
	return m.store.Logs(ctx, id)
}

// Cancel requests cancellation of a task. Pending tasks are cancelled
// immediately and never execute; running tasks are flagged and cancelled
// cooperatively at the worker's next checkpoint; terminal tasks are an
// idempotent no-op.
func (m *Manager) Cancel(ctx context.Context, id string) (CancelOutcome, error) {
	task, err := m.store.GetByID(ctx, id)
	if err != nil {
		return CancelOutcome{}, err
	}

	if task.IsTerminal() {
		return CancelOutcome{Accepted: false, FinalState: task.State}, nil
	}

	if task.State == queue.StatePending && m.sched.remove(id) {
		// Claimed the pending entry: no worker can ever dequeue it now.
		task.CancelRequested = true
		task.MarkCancelled(time.Now().UTC())
		if err := m.store.Update(ctx, task); err != nil {
			return CancelOutcome{}, fmt.Errorf("persist cancellation: %w", err)
		}
		if err := m.store.AppendLog(ctx, id, "Task cancelled before execution"); err != nil {
			m.logger.Warn("failed to append cancel log", logging.Error(err), logging.String(logging.FieldTaskID, id))
		}
		m.logger.Info("pending task cancelled",
			logging.String(logging.FieldEventType, "task_cancelled"),
			logging.String(logging.FieldTaskID, id),
		)
		return CancelOutcome{Accepted: true, FinalState: queue.StateCancelled}, nil
	}

	// Running, or pending but already claimed by a worker: flag it and let
	// the worker observe the flag at its next checkpoint.
	if err := m.store.SetCancelRequested(ctx, id); err != nil {
		if errors.Is(err, queue.ErrAlreadyTerminal) {
			// The task finished between the state read and the flag write.
			if task, getErr := m.store.GetByID(ctx, id); getErr == nil {
				return CancelOutcome{Accepted: false, FinalState: task.State}, nil
			}
			return CancelOutcome{}, err
		}
		return CancelOutcome{}, err
	}
	m.logger.Info("task cancellation requested",
		logging.String(logging.FieldEventType, "task_cancel_requested"),
		logging.String(logging.FieldTaskID, id),
	)
	return CancelOutcome{Accepted: true}, nil
}

// Start resets stranded running tasks, seeds the scheduler from the store,
// and launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow manager already running")
	}
	if m.stopped {
		m.mu.Unlock()
		return errors.New("workflow manager cannot be restarted")
	}

	reset, err := m.store.ResetStuckRunning(ctx)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("reset stranded tasks: %w", err)
	}
	if reset > 0 {
		m.logger.Info("reset stranded running tasks", logging.Int64("count", reset))
	}

	if err := m.seedScheduler(ctx); err != nil {
		m.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Queue.MaxConcurrent
	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	m.wg.Add(1)
	go m.runRetentionSweeper(runCtx)
	go func() {
		<-runCtx.Done()
		m.sched.close()
	}()
	m.mu.Unlock()

	m.logger.Info("workflow manager started", logging.Int("workers", workers))
	return nil
}

// Stop halts the worker pool, waits for in-flight attempts to wind down,
// and rejects subsequent submissions.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.stopped = true
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.stopped = true
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow manager stopped")
}

// Pause stops dispatching new tasks to workers; running attempts finish.
func (m *Manager) Pause() {
	m.sched.pause()
	m.logger.Info("task dispatch paused")
}

// Resume restarts task dispatch after a pause.
func (m *Manager) Resume() {
	m.sched.resume()
	m.logger.Info("task dispatch resumed")
}

// ClearCompleted removes terminal tasks from the store.
func (m *Manager) ClearCompleted(ctx context.Context) (int64, error) {
	return m.store.ClearTerminal(ctx)
}

func (m *Manager) seedScheduler(ctx context.Context) error {
	pending, err := m.store.List(ctx, queue.Filter{States: []queue.State{queue.StatePending}})
	if err != nil {
		return fmt.Errorf("seed scheduler: %w", err)
	}
	for _, task := range pending {
		if task.NotBefore != nil && task.NotBefore.After(time.Now()) {
			m.sched.enqueueAt(task.ID, task.Key, *task.NotBefore)
		} else {
			m.sched.enqueue(task.ID, task.Key)
		}
	}
	if len(pending) > 0 {
		m.logger.Info("requeued persisted pending tasks", logging.Int("count", len(pending)))
	}
	return nil
}

func (m *Manager) runRetentionSweeper(ctx context.Context) {
	defer m.wg.Done()
	retention := m.cfg.Retention()
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted, err := m.store.EvictTerminalBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					m.logger.Warn("retention sweep failed", logging.Error(err))
				}
				continue
			}
			if evicted > 0 {
				m.logger.Info("evicted old tasks", logging.Int64("count", evicted))
			}
		}
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
