package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateQueue() error {
	return ensurePositiveMap(map[string]int{
		"queue.max_concurrent":       c.Queue.MaxConcurrent,
		"queue.retry_base_seconds":   c.Queue.RetryBaseSeconds,
		"queue.retry_max_seconds":    c.Queue.RetryMaxSeconds,
		"queue.task_timeout_seconds": c.Queue.TaskTimeoutSeconds,
	}, map[string]int{
		"queue.max_retries":    c.Queue.MaxRetries,
		"queue.retention_days": c.Queue.RetentionDays,
	})
}

func (c *Config) validateTools() error {
	if strings.TrimSpace(c.Docker.Binary) == "" {
		return errors.New("docker.binary must be set")
	}
	if strings.TrimSpace(c.Ollama.Binary) == "" {
		return errors.New("ollama.binary must be set")
	}
	if strings.TrimSpace(c.Ollama.BaseURL) == "" {
		return errors.New("ollama.base_url must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(positive map[string]int, nonNegative map[string]int) error {
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}
	for name, value := range nonNegative {
		if value < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, value)
		}
	}
	return nil
}
