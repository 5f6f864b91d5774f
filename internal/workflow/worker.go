package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maverikod/mcp-dochub-server/internal/executor"
	"github.com/maverikod/mcp-dochub-server/internal/logging"
	"github.com/maverikod/mcp-dochub-server/internal/queue"
)

// cancelPollInterval bounds how long a running attempt can outlive a
// cooperative cancellation request.
const cancelPollInterval = 250 * time.Millisecond

// persistTimeout bounds the final state writes performed after an attempt,
// which must succeed even while the daemon context is shutting down.
const persistTimeout = 10 * time.Second

var (
	errCancelObserved = errors.New("cancellation requested")
	errAttemptTimeout = errors.New("attempt deadline exceeded")
)

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", index))

	for {
		id, key, ok := m.sched.next()
		if !ok {
			return
		}
		m.runTask(ctx, logger, id, key)
	}
}

// runTask executes one attempt of one task. The key lock acquired by the
// scheduler is held for the whole running span and released on every exit
// path.
func (m *Manager) runTask(ctx context.Context, logger *slog.Logger, id, key string) {
	defer m.sched.release(key)

	task, err := m.store.GetByID(ctx, id)
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to load scheduled task", logging.Error(err), logging.String(logging.FieldTaskID, id))
		return
	}
	if task.IsTerminal() {
		return
	}
	if task.CancelRequested {
		// Flag raised between admission and dequeue: never invoke the executor.
		m.finishCancelled(task, logger)
		return
	}

	task.MarkRunning(time.Now().UTC())
	task.ProgressPercent = 0
	task.ProgressMessage = fmt.Sprintf("Attempt %d started", task.Attempts)
	if err := m.store.Update(ctx, task); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist running transition", logging.Error(err), logging.String(logging.FieldTaskID, id))
		return
	}

	taskLogger := logger.With(
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldTaskKind, task.Kind),
		logging.String(logging.FieldTaskKey, task.Key),
		logging.Int(logging.FieldAttempt, task.Attempts),
	)
	taskLogger.Info("task attempt started", logging.String(logging.FieldEventType, "attempt_start"))
	attemptStart := time.Now()

	result, execErr := m.executeAttempt(ctx, task)

	switch {
	case execErr == nil:
		m.finishSucceeded(task, result, taskLogger, time.Since(attemptStart))
	case errors.Is(execErr, errCancelObserved):
		m.finishCancelled(task, taskLogger)
	case errors.Is(execErr, context.Canceled) && ctx.Err() != nil:
		// Daemon shutdown interrupted the attempt: return the task to
		// pending so the next start reschedules it.
		m.revertToPending(task, taskLogger)
	case executor.IsFatal(execErr):
		m.finishFailed(task, execErr, taskLogger)
	default:
		m.retryOrFail(task, execErr, taskLogger)
	}
}

// executeAttempt runs the executor under the per-attempt deadline while
// polling the cancellation flag. The executor call owns no lock beyond the
// key lock, and the worker abandons it once the attempt context ends; the
// buffered result channel lets the executor goroutine finish on its own.
func (m *Manager) executeAttempt(ctx context.Context, task *queue.Task) (map[string]any, error) {
	exec, ok := m.registry.Lookup(task.Kind)
	if !ok {
		return nil, executor.Fatal("lookup executor", fmt.Errorf("unknown task kind %q", task.Kind))
	}
	params, err := task.Params()
	if err != nil {
		return nil, executor.Fatal("decode params", err)
	}

	if requested, err := m.store.CancelRequested(ctx, task.ID); err == nil && requested {
		return nil, errCancelObserved
	}

	attemptCtx, cancelAttempt := context.WithCancelCause(ctx)
	defer cancelAttempt(nil)

	timeout := m.cfg.TaskTimeout()
	timer := time.AfterFunc(timeout, func() { cancelAttempt(errAttemptTimeout) })
	defer timer.Stop()

	go m.pollCancelFlag(attemptCtx, cancelAttempt, task.ID)

	type attemptResult struct {
		result map[string]any
		err    error
	}
	done := make(chan attemptResult, 1)
	go func() {
		result, execErr := exec.Execute(attemptCtx, params, m.reporterFor(task.ID))
		done <- attemptResult{result: result, err: execErr}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if cause := context.Cause(attemptCtx); errors.Is(cause, errCancelObserved) {
				return nil, errCancelObserved
			}
			if cause := context.Cause(attemptCtx); errors.Is(cause, errAttemptTimeout) {
				return nil, executor.Retryable("execute", fmt.Errorf("%w after %s", errAttemptTimeout, timeout))
			}
		}
		return res.result, res.err
	case <-attemptCtx.Done():
		cause := context.Cause(attemptCtx)
		switch {
		case errors.Is(cause, errCancelObserved):
			return nil, errCancelObserved
		case errors.Is(cause, errAttemptTimeout):
			return nil, executor.Retryable("execute", fmt.Errorf("%w after %s", errAttemptTimeout, timeout))
		default:
			return nil, context.Canceled
		}
	}
}

// pollCancelFlag watches the store's cancel_requested flag for the duration
// of an attempt and cancels the attempt context when it is raised.
func (m *Manager) pollCancelFlag(ctx context.Context, cancel context.CancelCauseFunc, id string) {
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			requested, err := m.store.CancelRequested(ctx, id)
			if err != nil {
				continue
			}
			if requested {
				cancel(errCancelObserved)
				return
			}
		}
	}
}

func (m *Manager) finishSucceeded(task *queue.Task, result map[string]any, logger *slog.Logger, elapsed time.Duration) {
	ctx, cancel := persistContext()
	defer cancel()

	if err := task.SetResult(result); err != nil {
		logger.Warn("failed to encode task result", logging.Error(err))
	}
	task.MarkSucceeded(time.Now().UTC())
	task.ProgressMessage = "Completed"
	if err := m.store.Update(ctx, task); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist success", logging.Error(err))
		return
	}
	m.appendTaskLog(ctx, task.ID, "Task completed successfully", logger)
	logger.Info("task succeeded",
		logging.String(logging.FieldEventType, "task_succeeded"),
		logging.Duration("elapsed", elapsed),
	)
}

func (m *Manager) finishFailed(task *queue.Task, execErr error, logger *slog.Logger) {
	ctx, cancel := persistContext()
	defer cancel()

	task.MarkFailed(time.Now().UTC(), execErr.Error())
	task.ProgressMessage = "Failed"
	if err := m.store.Update(ctx, task); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist failure", logging.Error(err))
		return
	}
	m.appendTaskLog(ctx, task.ID, fmt.Sprintf("Task failed: %s", execErr), logger)
	m.setLastError(execErr)
	logger.Info("task failed",
		logging.String(logging.FieldEventType, "task_failed"),
		logging.Error(execErr),
	)
}

func (m *Manager) finishCancelled(task *queue.Task, logger *slog.Logger) {
	ctx, cancel := persistContext()
	defer cancel()

	task.CancelRequested = true
	task.MarkCancelled(time.Now().UTC())
	task.ProgressMessage = "Cancelled"
	if err := m.store.Update(ctx, task); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist cancellation", logging.Error(err))
		return
	}
	m.appendTaskLog(ctx, task.ID, "Task cancelled", logger)
	logger.Info("task cancelled",
		logging.String(logging.FieldEventType, "task_cancelled"),
		logging.String(logging.FieldTaskID, task.ID),
	)
}

// retryOrFail handles a retryable failure: re-enqueue at the tail of the
// key bucket with exponential backoff while budget remains, otherwise fail
// terminally with the last error.
func (m *Manager) retryOrFail(task *queue.Task, execErr error, logger *slog.Logger) {
	if task.Attempts > m.cfg.Queue.MaxRetries {
		m.finishFailed(task, execErr, logger)
		return
	}

	ctx, cancel := persistContext()
	defer cancel()

	delay := backoffDelay(m.cfg.RetryBase(), m.cfg.RetryMax(), task.Attempts)
	task.MarkPendingRetry(time.Now().Add(delay), execErr.Error())
	task.ProgressMessage = fmt.Sprintf("Retrying in %s", delay)
	if err := m.store.Update(ctx, task); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist retry transition", logging.Error(err))
		return
	}
	m.appendTaskLog(ctx, task.ID, fmt.Sprintf("Attempt %d failed (%s), retrying in %s", task.Attempts, execErr, delay), logger)
	m.sched.enqueueAfter(task.ID, task.Key, delay)
	logger.Info("task scheduled for retry",
		logging.String(logging.FieldEventType, "task_retry"),
		logging.Duration("delay", delay),
		logging.Error(execErr),
	)
}

// revertToPending undoes a running transition interrupted by shutdown.
func (m *Manager) revertToPending(task *queue.Task, logger *slog.Logger) {
	ctx, cancel := persistContext()
	defer cancel()

	task.State = queue.StatePending
	task.ProgressMessage = "Interrupted by shutdown"
	if err := m.store.Update(ctx, task); err != nil {
		m.setLastError(err)
		logger.Error("failed to revert interrupted task", logging.Error(err))
		return
	}
	logger.Info("task interrupted by shutdown, returned to pending",
		logging.String(logging.FieldEventType, "task_interrupted"),
	)
}

func (m *Manager) appendTaskLog(ctx context.Context, id, message string, logger *slog.Logger) {
	if err := m.store.AppendLog(ctx, id, message); err != nil {
		logger.Warn("failed to append task log", logging.Error(err))
	}
}

// persistContext returns a context for terminal state writes, detached from
// the run context so shutdown cannot lose a transition.
func persistContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), persistTimeout)
}
