package queue

import "errors"

var (
	// ErrNotFound indicates an unknown or evicted task id.
	ErrNotFound = errors.New("task not found")

	// ErrValidation indicates a submission rejected before admission.
	ErrValidation = errors.New("validation error")

	// ErrAlreadyTerminal indicates an operation on a finished task. Cancel
	// treats this as an idempotent no-op rather than a failure.
	ErrAlreadyTerminal = errors.New("task already terminal")
)
