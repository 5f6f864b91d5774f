package config

const (
	defaultLogDir             = "~/.local/share/dochub/logs"
	defaultAPIBind            = "127.0.0.1:7654"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultMaxConcurrent      = 2
	defaultMaxRetries         = 3
	defaultRetryBaseSeconds   = 5
	defaultRetryMaxSeconds    = 300
	defaultTaskTimeoutSeconds = 1800
	defaultRetentionDays      = 7
	defaultDockerBinary       = "docker"
	defaultOllamaBinary       = "ollama"
	defaultOllamaBaseURL      = "http://127.0.0.1:11434"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Queue: Queue{
			MaxConcurrent:      defaultMaxConcurrent,
			MaxRetries:         defaultMaxRetries,
			RetryBaseSeconds:   defaultRetryBaseSeconds,
			RetryMaxSeconds:    defaultRetryMaxSeconds,
			TaskTimeoutSeconds: defaultTaskTimeoutSeconds,
			RetentionDays:      defaultRetentionDays,
		},
		Docker: Docker{
			Binary: defaultDockerBinary,
		},
		Ollama: Ollama{
			Binary:  defaultOllamaBinary,
			BaseURL: defaultOllamaBaseURL,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
