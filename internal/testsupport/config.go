// Package testsupport holds shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/maverikod/mcp-dochub-server/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields tuned for fast tests and applies any options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Queue.MaxConcurrent = 2
	cfg.Queue.MaxRetries = 1
	cfg.Queue.RetryBaseSeconds = 0
	cfg.Queue.RetryMaxSeconds = 1
	cfg.Queue.TaskTimeoutSeconds = 30

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithMaxConcurrent sets the worker count on the test config.
func WithMaxConcurrent(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.MaxConcurrent = n
	}
}

// WithMaxRetries sets the retry budget on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.MaxRetries = n
	}
}

// WithTaskTimeout sets the per-attempt timeout in seconds.
func WithTaskTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.TaskTimeoutSeconds = seconds
	}
}
