package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maverikod/mcp-dochub-server/internal/config"
)

// Store manages task persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the task database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "tasks.db"))
}

// OpenPath connects to the task database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the filesystem location of the task database.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Insert persists a freshly submitted task.
func (s *Store) Insert(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	if strings.TrimSpace(task.ID) == "" {
		return errors.New("task id is empty")
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO tasks (
            id, kind, key, params_json, state, attempts, cancel_requested,
            created_at, updated_at, started_at, finished_at, not_before,
            result_json, error_message, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Kind,
		task.Key,
		nullableString(task.ParamsJSON),
		task.State,
		task.Attempts,
		boolToInt(task.CancelRequested),
		task.CreatedAt.Format(time.RFC3339Nano),
		task.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(task.StartedAt),
		nullableTime(task.FinishedAt),
		nullableTime(task.NotBefore),
		nullableString(task.ResultJSON),
		nullableString(task.ErrorMessage),
		task.ProgressPercent,
		nullableString(task.ProgressMessage),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID fetches a task by identifier. Returns ErrNotFound for unknown ids.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Update persists changes to an existing task.
func (s *Store) Update(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET state = ?, attempts = ?, cancel_requested = ?, updated_at = ?,
             started_at = ?, finished_at = ?, not_before = ?, result_json = ?,
             error_message = ?, progress_percent = ?, progress_message = ?
         WHERE id = ?`,
		task.State,
		task.Attempts,
		boolToInt(task.CancelRequested),
		task.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(task.StartedAt),
		nullableTime(task.FinishedAt),
		nullableTime(task.NotBefore),
		nullableString(task.ResultJSON),
		nullableString(task.ErrorMessage),
		task.ProgressPercent,
		nullableString(task.ProgressMessage),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// List returns tasks matching the filter ordered by creation time ascending.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var (
		clauses []string
		args    []any
	)
	if len(filter.States) > 0 {
		placeholders := makePlaceholders(len(filter.States))
		clauses = append(clauses, `state IN (`+placeholders+`)`)
		for _, state := range filter.States {
			args = append(args, state)
		}
	}
	if strings.TrimSpace(filter.Key) != "" {
		clauses = append(clauses, `key = ?`)
		args = append(args, filter.Key)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// SetCancelRequested flags a non-terminal task for cooperative cancellation.
// Returns ErrAlreadyTerminal when the task finished before the flag landed.
func (s *Store) SetCancelRequested(ctx context.Context, id string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET cancel_requested = 1, updated_at = ? WHERE id = ? AND state IN (?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		string(StatePending),
		string(StateRunning),
	)
	if err != nil {
		return fmt.Errorf("set cancel requested: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		task, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, task.State)
	}
	return nil
}

// CancelRequested reports whether cancellation has been requested for a task.
func (s *Store) CancelRequested(ctx context.Context, id string) (bool, error) {
	var flag int
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM tasks WHERE id = ?`, id).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// UpdateProgress records executor-reported progress for an in-flight task.
func (s *Store) UpdateProgress(ctx context.Context, id string, percent float64, message string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks SET progress_percent = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		percent,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// AppendLog adds a timestamped line to a task's execution log.
func (s *Store) AppendLog(ctx context.Context, id, message string) error {
	err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO task_logs (task_id, at, message) VALUES (?, ?, ?)`,
		id,
		time.Now().UTC().Format(time.RFC3339Nano),
		message,
	)
	if err != nil {
		return fmt.Errorf("append task log: %w", err)
	}
	return nil
}

// Logs returns a task's execution log in insertion order.
func (s *Store) Logs(ctx context.Context, id string) ([]LogLine, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT at, message FROM task_logs WHERE task_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query task logs: %w", err)
	}
	defer rows.Close()

	var lines []LogLine
	for rows.Next() {
		var (
			atRaw   string
			message string
		)
		if err := rows.Scan(&atRaw, &message); err != nil {
			return nil, err
		}
		line := LogLine{Message: message}
		if at, err := parseTimeString(atRaw); err == nil {
			line.At = at
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Stats returns task counts grouped by state.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM tasks GROUP BY state`)
	if err != nil {
		return Stats{}, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{}
	for rows.Next() {
		var (
			state State
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch state {
		case StatePending:
			stats.Pending += count
		case StateRunning:
			stats.Running += count
		case StateSucceeded:
			stats.Succeeded += count
		case StateFailed:
			stats.Failed += count
		case StateCancelled:
			stats.Cancelled += count
		}
	}
	return stats, rows.Err()
}

const taskColumns = "id, kind, key, params_json, state, attempts, cancel_requested, created_at, updated_at, started_at, finished_at, not_before, result_json, error_message, progress_percent, progress_message"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id              string
		kind            string
		key             string
		paramsJSON      sql.NullString
		stateStr        string
		attempts        int
		cancelRequested int
		createdRaw      string
		updatedRaw      string
		startedRaw      sql.NullString
		finishedRaw     sql.NullString
		notBeforeRaw    sql.NullString
		resultJSON      sql.NullString
		errorMessage    sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&kind,
		&key,
		&paramsJSON,
		&stateStr,
		&attempts,
		&cancelRequested,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
		&notBeforeRaw,
		&resultJSON,
		&errorMessage,
		&progressPercent,
		&progressMessage,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:              id,
		Kind:            kind,
		Key:             key,
		ParamsJSON:      paramsJSON.String,
		State:           State(stateStr),
		Attempts:        attempts,
		CancelRequested: cancelRequested != 0,
		ResultJSON:      resultJSON.String,
		ErrorMessage:    errorMessage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		task.UpdatedAt = updated
	}
	task.StartedAt = parseNullableTime(startedRaw)
	task.FinishedAt = parseNullableTime(finishedRaw)
	task.NotBefore = parseNullableTime(notBeforeRaw)
	return task, nil
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
