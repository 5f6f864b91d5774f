// Package docker wraps the docker CLI for registry operations and exposes
// the queue executors for push, pull, and build tasks. Failures are
// classified from CLI output: authorization and reference errors are fatal,
// network errors are retryable.
package docker
