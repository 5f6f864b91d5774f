package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maverikod/mcp-dochub-server/internal/executor"
)

// fatalMarkers identify CLI failures that retrying cannot fix: bad
// credentials, malformed references, and missing images or repositories.
var fatalMarkers = []string{
	"denied",
	"unauthorized",
	"authentication required",
	"invalid reference format",
	"repository does not exist",
	"no such image",
	"pull access denied",
	"insufficient_scope",
	"manifest unknown",
}

// retryableMarkers identify transient network failures worth retrying.
var retryableMarkers = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"no such host",
	"tls handshake",
	"temporary failure",
	"unexpected eof",
	"eof",
	"service unavailable",
	"too many requests",
	"i/o error",
}

// classify maps a docker CLI failure to the queue's retry semantics. The
// stderr text decides; an aborted context propagates unchanged so the
// worker can tell timeout and cancellation apart from tool failure.
func classify(operation, stderr string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = err.Error()
	}
	wrapped := fmt.Errorf("docker %s: %s", operation, lastLine(detail))

	lowered := strings.ToLower(detail)
	for _, marker := range fatalMarkers {
		if strings.Contains(lowered, marker) {
			return executor.Fatal("", wrapped)
		}
	}
	for _, marker := range retryableMarkers {
		if strings.Contains(lowered, marker) {
			return executor.Retryable("", wrapped)
		}
	}
	return executor.Retryable("", wrapped)
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return text
}
