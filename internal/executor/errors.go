package executor

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRetryable marks a transient failure worth retrying.
	ErrRetryable = errors.New("retryable failure")

	// ErrFatal marks a permanent failure; retrying cannot help.
	ErrFatal = errors.New("fatal failure")
)

// Retryable wraps err as a transient failure.
func Retryable(operation string, err error) error {
	return wrap(ErrRetryable, operation, err)
}

// Fatal wraps err as a permanent failure.
func Fatal(operation string, err error) error {
	return wrap(ErrFatal, operation, err)
}

func wrap(marker error, operation string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", marker, operation)
	}
	if operation == "" {
		return fmt.Errorf("%w: %w", marker, err)
	}
	return fmt.Errorf("%w: %s: %w", marker, operation, err)
}

// IsFatal reports whether err was classified as permanent.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// IsRetryable reports whether err should consume retry budget. Deadline
// expiry and unclassified errors count as retryable; the executor owns the
// fatal classification and everything else is assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFatal) {
		return false
	}
	if errors.Is(err, ErrRetryable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return true
}
