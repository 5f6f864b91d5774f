package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/maverikod/mcp-dochub-server/internal/config"
	"github.com/maverikod/mcp-dochub-server/internal/executor"
)

type commandRunner func(ctx context.Context, env []string, name string, args ...string) (stdout, stderr string, err error)

// Client talks to a local ollama installation: the CLI for model pulls and
// the HTTP generate endpoint for inference.
type Client struct {
	binary     string
	baseURL    string
	modelsDir  string
	run        commandRunner
	httpClient *http.Client
}

// NewClient constructs an ollama client from configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		binary:     cfg.Ollama.Binary,
		baseURL:    cfg.Ollama.BaseURL,
		modelsDir:  cfg.Ollama.ModelsDir,
		run:        runCommand,
		httpClient: &http.Client{},
	}
}

func runCommand(ctx context.Context, env []string, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Pull downloads a model through the ollama CLI, honoring the configured
// models directory.
func (c *Client) Pull(ctx context.Context, model string, rep executor.Reporter) error {
	rep.Progress(5, fmt.Sprintf("Starting pull of model %s", model))

	var env []string
	if strings.TrimSpace(c.modelsDir) != "" {
		env = append(env, "OLLAMA_MODELS="+c.modelsDir)
	}

	_, stderr, err := c.run(ctx, env, c.binary, "pull", model)
	if err != nil {
		return classify("pull "+model, stderr, err)
	}
	rep.Progress(95, "Finalizing model download")
	return nil
}

// GenerateRequest describes one inference call.
type GenerateRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// GenerateResponse carries the fields of the generate API this daemon uses.
type GenerateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	EvalDuration    int64  `json:"eval_duration"`
}

// Generate runs a non-streaming inference against the local HTTP API.
func (c *Client) Generate(ctx context.Context, req GenerateRequest, rep executor.Reporter) (*GenerateResponse, error) {
	payload := map[string]any{
		"model":  req.Model,
		"prompt": req.Prompt,
		"stream": false,
		"options": map[string]any{
			"num_predict": req.MaxTokens,
			"temperature": req.Temperature,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, executor.Fatal("encode generate request", err)
	}

	rep.Progress(25, "Sending request to ollama")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, executor.Fatal("build generate request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, executor.Retryable("ollama generate", err)
	}
	defer resp.Body.Close()

	rep.Progress(75, "Processing inference")
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, executor.Retryable("read generate response", err)
	}
	if resp.StatusCode != http.StatusOK {
		failure := fmt.Errorf("ollama generate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
			return nil, executor.Fatal("", failure)
		}
		return nil, executor.Retryable("", failure)
	}

	var parsed GenerateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, executor.Fatal("decode generate response", err)
	}
	return &parsed, nil
}

// TokensPerSecond derives throughput from eval counters.
func (r *GenerateResponse) TokensPerSecond() float64 {
	if r.EvalDuration <= 0 {
		return 0
	}
	return float64(r.EvalCount) / (time.Duration(r.EvalDuration).Seconds())
}

// classify maps an ollama CLI failure to the queue's retry semantics.
func classify(operation, stderr string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = err.Error()
	}
	wrapped := fmt.Errorf("ollama %s: %s", operation, detail)

	lowered := strings.ToLower(detail)
	switch {
	case strings.Contains(lowered, "file does not exist"),
		strings.Contains(lowered, "not found"),
		strings.Contains(lowered, "invalid model name"):
		return executor.Fatal("", wrapped)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return executor.Retryable("", wrapped)
	}
	return executor.Retryable("", wrapped)
}
