package workflow

import (
	"context"

	"github.com/maverikod/mcp-dochub-server/internal/queue"
)

// StatusSummary captures the manager's runtime state for status surfaces.
type StatusSummary struct {
	Running   bool
	Paused    bool
	Workers   int
	Queued    int
	Stats     queue.Stats
	LastError string
}

// Summary reports current queue statistics and manager state.
func (m *Manager) Summary(ctx context.Context) (StatusSummary, error) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return StatusSummary{}, err
	}

	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	m.mu.RUnlock()

	summary := StatusSummary{
		Running: running,
		Paused:  m.sched.isPaused(),
		Workers: m.cfg.Queue.MaxConcurrent,
		Queued:  m.sched.pendingCount(),
		Stats:   stats,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary, nil
}

// Running reports whether the worker pool is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
