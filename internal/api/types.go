package api

import (
	"encoding/json"
	"time"

	"github.com/maverikod/mcp-dochub-server/internal/queue"
)

// TaskSnapshot is the wire representation of one task's state.
type TaskSnapshot struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	Key             string          `json:"key"`
	State           string          `json:"state"`
	Attempts        int             `json:"attempt_count"`
	CancelRequested bool            `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
	Params          json.RawMessage `json:"params,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	ProgressPercent float64         `json:"progress_percent"`
	ProgressMessage string          `json:"progress_message,omitempty"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
}

// FromTask converts a stored task into its wire snapshot.
func FromTask(task *queue.Task) TaskSnapshot {
	snapshot := TaskSnapshot{
		ID:              task.ID,
		Kind:            task.Kind,
		Key:             task.Key,
		State:           string(task.State),
		Attempts:        task.Attempts,
		CancelRequested: task.CancelRequested,
		CreatedAt:       task.CreatedAt,
		StartedAt:       task.StartedAt,
		FinishedAt:      task.FinishedAt,
		Error:           task.ErrorMessage,
		ProgressPercent: task.ProgressPercent,
		ProgressMessage: task.ProgressMessage,
	}
	if task.ParamsJSON != "" {
		snapshot.Params = json.RawMessage(task.ParamsJSON)
	}
	if task.ResultJSON != "" {
		snapshot.Result = json.RawMessage(task.ResultJSON)
	}
	if task.StartedAt != nil {
		snapshot.DurationSeconds = task.Duration().Seconds()
	}
	return snapshot
}

// SubmitRequest asks the daemon to admit a new task.
type SubmitRequest struct {
	Kind   string         `json:"kind"`
	Key    string         `json:"key,omitempty"`
	Params map[string]any `json:"params"`
}

// SubmitResponse returns the admitted task's identity.
type SubmitResponse struct {
	ID   string       `json:"id"`
	Task TaskSnapshot `json:"task"`
}

// ListResponse contains task snapshots ordered by creation time.
type ListResponse struct {
	Tasks []TaskSnapshot `json:"tasks"`
}

// CancelResponse reports a cancellation outcome.
type CancelResponse struct {
	Accepted   bool   `json:"accepted"`
	FinalState string `json:"final_state,omitempty"`
}

// LogLine is one wire log entry.
type LogLine struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// LogsResponse contains a task's execution log.
type LogsResponse struct {
	ID    string    `json:"id"`
	Lines []LogLine `json:"lines"`
}

// QueueStats aggregates task counts and scheduler state.
type QueueStats struct {
	Total     int  `json:"total"`
	Pending   int  `json:"pending"`
	Running   int  `json:"running"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Cancelled int  `json:"cancelled"`
	Queued    int  `json:"queued"`
	Workers   int  `json:"workers"`
	Paused    bool `json:"paused"`
}

// ClearResponse reports how many tasks were removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// DaemonStatus describes daemon runtime state.
type DaemonStatus struct {
	Running     bool       `json:"running"`
	PID         int        `json:"pid"`
	QueueDBPath string     `json:"queue_db_path"`
	LockPath    string     `json:"lock_path"`
	Kinds       []string   `json:"kinds"`
	LastError   string     `json:"last_error,omitempty"`
	Stats       QueueStats `json:"stats"`
}

// ErrorResponse carries an API failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
