// Package api defines the JSON surface between the daemon and its clients:
// request/response DTOs, the QueueService adapting the workflow manager to
// those DTOs, and the HTTP client used by the CLI.
package api
