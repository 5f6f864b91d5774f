package queue

import (
	"context"
	"fmt"
	"time"
)

// ResetStuckRunning returns tasks left in the running state by a previous
// process back to pending so they can be rescheduled. Called once at startup
// before the workflow manager seeds its scheduler.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET state = ?, progress_message = 'Reset after restart', updated_at = ?
         WHERE state = ?`,
		StatePending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StateRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck running tasks: %w", err)
	}
	return res.RowsAffected()
}

// ClearTerminal removes succeeded, failed, and cancelled tasks.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM tasks WHERE state IN (?, ?, ?)`,
		StateSucceeded,
		StateFailed,
		StateCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal tasks: %w", err)
	}
	return res.RowsAffected()
}

// EvictTerminalBefore removes terminal tasks that finished before the cutoff.
// Backs the configured retention window; execution logic never deletes tasks.
func (s *Store) EvictTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM tasks
         WHERE state IN (?, ?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		StateSucceeded,
		StateFailed,
		StateCancelled,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("evict terminal tasks: %w", err)
	}
	return res.RowsAffected()
}
