// Package logging builds the slog loggers used across the daemon, providing
// a JSON handler for machine consumption and a compact console handler for
// interactive use, plus shared attribute helpers.
package logging
