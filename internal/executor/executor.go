package executor

import "context"

// Reporter lets an executor publish progress and log lines for the task it
// is running. Implementations must be safe for use from the executing
// goroutine only; reporting failures are swallowed so a broken reporter
// cannot fail an otherwise healthy operation.
type Reporter interface {
	// Progress records completion percentage (clamped to 0-100) and a short
	// human-readable step description.
	Progress(percent float64, message string)
	// Log appends a timestamped line to the task's execution log.
	Log(message string)
}

// Executor performs one kind of external operation.
//
// Execute must honor ctx cancellation promptly: the worker may stop waiting
// after a timeout or cancellation request, and the executor must remain
// usable for subsequent calls after being abandoned.
type Executor interface {
	// Kind returns the closed operation tag this executor serves.
	Kind() string
	// Validate checks params at submission time, before admission.
	Validate(params map[string]any) error
	// ContentionKey derives the serialization key for params. Tasks sharing
	// a key never execute concurrently.
	ContentionKey(params map[string]any) (string, error)
	// Execute performs the operation and returns an opaque result map.
	// Failures should be wrapped with Retryable or Fatal for classification.
	Execute(ctx context.Context, params map[string]any, rep Reporter) (map[string]any, error)
}

// NopReporter discards all progress and log output.
type NopReporter struct{}

func (NopReporter) Progress(float64, string) {}
func (NopReporter) Log(string)               {}
