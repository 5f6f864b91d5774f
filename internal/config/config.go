package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LogDir   string `toml:"log_dir" env:"DOCHUB_LOG_DIR"`
	APIBind  string `toml:"api_bind" env:"DOCHUB_API_BIND"`
	APIToken string `toml:"api_token" env:"DOCHUB_API_TOKEN"`
}

// Queue contains task queue sizing and retry policy.
type Queue struct {
	MaxConcurrent      int `toml:"max_concurrent" env:"DOCHUB_QUEUE_MAX_CONCURRENT"`
	MaxRetries         int `toml:"max_retries" env:"DOCHUB_QUEUE_MAX_RETRIES"`
	RetryBaseSeconds   int `toml:"retry_base_seconds"`
	RetryMaxSeconds    int `toml:"retry_max_seconds"`
	TaskTimeoutSeconds int `toml:"task_timeout_seconds"`
	RetentionDays      int `toml:"retention_days"`
}

// Docker contains configuration for the docker CLI wrapper.
type Docker struct {
	Binary    string `toml:"binary" env:"DOCHUB_DOCKER_BINARY"`
	ConfigDir string `toml:"config_dir"`
}

// Ollama contains configuration for the ollama model runtime.
type Ollama struct {
	Binary    string `toml:"binary"`
	BaseURL   string `toml:"base_url" env:"DOCHUB_OLLAMA_BASE_URL"`
	ModelsDir string `toml:"models_dir"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level" env:"DOCHUB_LOG_LEVEL"`
	Format string `toml:"format" env:"DOCHUB_LOG_FORMAT"`
}

// Config is the root configuration document.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Queue   Queue   `toml:"queue"`
	Docker  Docker  `toml:"docker"`
	Ollama  Ollama  `toml:"ollama"`
	Logging Logging `toml:"logging"`
}

// RetryBase returns the retry backoff base delay.
func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.Queue.RetryBaseSeconds) * time.Second
}

// RetryMax returns the retry backoff delay cap.
func (c *Config) RetryMax() time.Duration {
	return time.Duration(c.Queue.RetryMaxSeconds) * time.Second
}

// TaskTimeout returns the per-attempt execution deadline.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Queue.TaskTimeoutSeconds) * time.Second
}

// Retention returns how long terminal tasks are kept before eviction.
// Zero disables eviction.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Queue.RetentionDays) * 24 * time.Hour
}

// DefaultConfigPath returns the canonical config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dochub", "config.toml"), nil
}

// Load reads configuration from path (or the default location when path is
// empty), applies environment overrides, normalizes, and validates. The
// returned bool reports whether a config file was found; a missing file is
// not an error and yields defaults.
func Load(path string) (*Config, string, bool, error) {
	resolvedPath := strings.TrimSpace(path)
	if resolvedPath == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, "", false, err
		}
		resolvedPath = defaultPath
	}
	resolvedPath = expandPath(resolvedPath)

	cfg := Default()
	found := false

	data, err := os.ReadFile(resolvedPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolvedPath, false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
		found = true
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply.
	default:
		return nil, resolvedPath, false, fmt.Errorf("read config %s: %w", resolvedPath, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, resolvedPath, found, fmt.Errorf("apply env overrides: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, resolvedPath, found, err
	}
	return &cfg, resolvedPath, found, nil
}

// WriteSample writes the embedded sample config to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if c.Ollama.ModelsDir != "" {
		dirs = append(dirs, c.Ollama.ModelsDir)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Paths.LogDir = expandPath(c.Paths.LogDir)
	c.Docker.ConfigDir = expandPath(c.Docker.ConfigDir)
	c.Ollama.ModelsDir = expandPath(c.Ollama.ModelsDir)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.Ollama.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ollama.BaseURL), "/")
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) string {
	return expandPath(path)
}

func expandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			if trimmed == "~" {
				return home
			}
			return filepath.Join(home, trimmed[2:])
		}
	}
	return trimmed
}
