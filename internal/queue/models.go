package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// State represents the lifecycle of a queued task.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

var allStates = []State{
	StatePending,
	StateRunning,
	StateSucceeded,
	StateFailed,
	StateCancelled,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

var terminalStates = map[State]struct{}{
	StateSucceeded: {},
	StateFailed:    {},
	StateCancelled: {},
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a state admits no further transitions.
func (s State) IsTerminal() bool {
	_, ok := terminalStates[s]
	return ok
}

// Task represents one queued unit of long-running work persisted in SQLite.
//
// Identity fields (ID, Kind, Key, ParamsJSON, CreatedAt) are assigned at
// submission and never change. The remaining fields are mutated only by the
// workflow manager's workers, except CancelRequested which is set by
// cancellation requests and checked cooperatively.
type Task struct {
	ID              string
	Kind            string
	Key             string
	ParamsJSON      string
	State           State
	Attempts        int
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
	NotBefore       *time.Time
	ResultJSON      string
	ErrorMessage    string
	ProgressPercent float64
	ProgressMessage string
}

// LogLine is one timestamped entry from a task's execution log.
type LogLine struct {
	At      time.Time
	Message string
}

// Params decodes the task's argument map.
func (t *Task) Params() (map[string]any, error) {
	if strings.TrimSpace(t.ParamsJSON) == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(t.ParamsJSON), &params); err != nil {
		return nil, fmt.Errorf("decode task params: %w", err)
	}
	return params, nil
}

// SetParams encodes and stores the task's argument map.
func (t *Task) SetParams(params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode task params: %w", err)
	}
	t.ParamsJSON = string(encoded)
	return nil
}

// Result decodes the task's stored result map, if any.
func (t *Task) Result() (map[string]any, error) {
	if strings.TrimSpace(t.ResultJSON) == "" {
		return nil, nil
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(t.ResultJSON), &result); err != nil {
		return nil, fmt.Errorf("decode task result: %w", err)
	}
	return result, nil
}

// SetResult encodes and stores the task's result map.
func (t *Task) SetResult(result map[string]any) error {
	if result == nil {
		t.ResultJSON = ""
		return nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode task result: %w", err)
	}
	t.ResultJSON = string(encoded)
	return nil
}

// IsTerminal reports whether the task reached a terminal state.
func (t *Task) IsTerminal() bool {
	return t.State.IsTerminal()
}

// MarkRunning transitions the task into the running state for a new attempt.
func (t *Task) MarkRunning(now time.Time) {
	t.State = StateRunning
	t.Attempts++
	t.NotBefore = nil
	if t.StartedAt == nil {
		started := now.UTC()
		t.StartedAt = &started
	}
}

// MarkSucceeded records a successful terminal state.
func (t *Task) MarkSucceeded(now time.Time) {
	t.State = StateSucceeded
	t.ErrorMessage = ""
	t.ProgressPercent = 100
	finished := now.UTC()
	t.FinishedAt = &finished
}

// MarkFailed records a failed terminal state with the last error.
func (t *Task) MarkFailed(now time.Time, message string) {
	t.State = StateFailed
	t.ErrorMessage = message
	finished := now.UTC()
	t.FinishedAt = &finished
}

// MarkCancelled records a cancelled terminal state.
func (t *Task) MarkCancelled(now time.Time) {
	t.State = StateCancelled
	finished := now.UTC()
	t.FinishedAt = &finished
}

// MarkPendingRetry returns the task to pending after a retryable failure.
// The task becomes eligible for re-selection once eligibleAt passes.
func (t *Task) MarkPendingRetry(eligibleAt time.Time, message string) {
	t.State = StatePending
	t.ErrorMessage = message
	eligible := eligibleAt.UTC()
	t.NotBefore = &eligible
}

// Duration returns the wall-clock execution span, when known.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	end := time.Now().UTC()
	if t.FinishedAt != nil {
		end = *t.FinishedAt
	}
	return end.Sub(*t.StartedAt)
}

// Filter narrows List results by state and/or contention key.
type Filter struct {
	States []State
	Key    string
}

// Stats aggregates task counts per state.
type Stats struct {
	Total     int
	Pending   int
	Running   int
	Succeeded int
	Failed    int
	Cancelled int
}
