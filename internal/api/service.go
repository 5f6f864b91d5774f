package api

import (
	"context"
	"strings"

	"github.com/maverikod/mcp-dochub-server/internal/queue"
	"github.com/maverikod/mcp-dochub-server/internal/workflow"
)

// QueueService adapts the workflow manager to the wire DTOs. All handlers
// and IPC surfaces go through this type so snapshot conversion stays in one
// place.
type QueueService struct {
	manager *workflow.Manager
}

// NewQueueService wraps a workflow manager.
func NewQueueService(manager *workflow.Manager) *QueueService {
	return &QueueService{manager: manager}
}

// Submit admits a task and returns its snapshot.
func (s *QueueService) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	task, err := s.manager.Submit(ctx, req.Kind, req.Key, req.Params)
	if err != nil {
		return SubmitResponse{}, err
	}
	return SubmitResponse{ID: task.ID, Task: FromTask(task)}, nil
}

// Status returns one task snapshot.
func (s *QueueService) Status(ctx context.Context, id string) (TaskSnapshot, error) {
	task, err := s.manager.Status(ctx, id)
	if err != nil {
		return TaskSnapshot{}, err
	}
	return FromTask(task), nil
}

// List returns snapshots filtered by state names and/or contention key.
func (s *QueueService) List(ctx context.Context, stateNames []string, key string) (ListResponse, error) {
	var filter queue.Filter
	for _, name := range stateNames {
		state, ok := queue.ParseState(name)
		if !ok {
			continue
		}
		filter.States = append(filter.States, state)
	}
	filter.Key = strings.TrimSpace(key)

	tasks, err := s.manager.List(ctx, filter)
	if err != nil {
		return ListResponse{}, err
	}
	resp := ListResponse{Tasks: make([]TaskSnapshot, 0, len(tasks))}
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, FromTask(task))
	}
	return resp, nil
}

// Cancel requests cancellation of a task.
func (s *QueueService) Cancel(ctx context.Context, id string) (CancelResponse, error) {
	outcome, err := s.manager.Cancel(ctx, id)
	if err != nil {
		return CancelResponse{}, err
	}
	return CancelResponse{Accepted: outcome.Accepted, FinalState: string(outcome.FinalState)}, nil
}

// Logs returns a task's execution log.
func (s *QueueService) Logs(ctx context.Context, id string) (LogsResponse, error) {
	lines, err := s.manager.Logs(ctx, id)
	if err != nil {
		return LogsResponse{}, err
	}
	resp := LogsResponse{ID: id, Lines: make([]LogLine, 0, len(lines))}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, LogLine{At: line.At, Message: line.Message})
	}
	return resp, nil
}

// Stats returns queue statistics and scheduler state.
func (s *QueueService) Stats(ctx context.Context) (QueueStats, error) {
	summary, err := s.manager.Summary(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	return FromSummary(summary), nil
}

// Pause stops task dispatch.
func (s *QueueService) Pause() { s.manager.Pause() }

// Resume restarts task dispatch.
func (s *QueueService) Resume() { s.manager.Resume() }

// Clear removes terminal tasks.
func (s *QueueService) Clear(ctx context.Context) (ClearResponse, error) {
	removed, err := s.manager.ClearCompleted(ctx)
	if err != nil {
		return ClearResponse{}, err
	}
	return ClearResponse{Removed: removed}, nil
}

// FromSummary converts a manager summary into wire stats.
func FromSummary(summary workflow.StatusSummary) QueueStats {
	return QueueStats{
		Total:     summary.Stats.Total,
		Pending:   summary.Stats.Pending,
		Running:   summary.Stats.Running,
		Succeeded: summary.Stats.Succeeded,
		Failed:    summary.Stats.Failed,
		Cancelled: summary.Stats.Cancelled,
		Queued:    summary.Queued,
		Workers:   summary.Workers,
		Paused:    summary.Paused,
	}
}
