package logging

import (
	"log/slog"
	"time"
)

// Shared field names so log queries line up across components.
const (
	FieldComponent = "component"
	FieldTaskID    = "task_id"
	FieldTaskKind  = "kind"
	FieldTaskKey   = "key"
	FieldState     = "state"
	FieldAttempt   = "attempt"
	FieldEventType = "event_type"
	FieldRequestID = "request_id"
)

// String constructs a string attribute.
func String(key, value string) slog.Attr { return slog.String(key, value) }

// Int constructs an int attribute.
func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

// Int64 constructs an int64 attribute.
func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

// Float64 constructs a float attribute.
func Float64(key string, value float64) slog.Attr { return slog.Float64(key, value) }

// Bool constructs a bool attribute.
func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

// Duration constructs a duration attribute.
func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

// Error constructs the canonical error attribute. Nil errors render empty.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
