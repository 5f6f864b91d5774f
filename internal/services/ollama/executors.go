package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maverikod/mcp-dochub-server/internal/executor"
)

// Task kinds served by this package.
const (
	KindPull = "ollama_pull"
	KindRun  = "ollama_run"
)

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

// PullExecutor queues ollama model downloads, keyed per model.
type PullExecutor struct {
	client *Client
}

// NewPullExecutor wraps an ollama client as a pull executor.
func NewPullExecutor(client *Client) *PullExecutor {
	return &PullExecutor{client: client}
}

func (e *PullExecutor) Kind() string { return KindPull }

func (e *PullExecutor) Validate(params map[string]any) error {
	_, err := modelParam(params)
	return err
}

func (e *PullExecutor) ContentionKey(params map[string]any) (string, error) {
	model, err := modelParam(params)
	if err != nil {
		return "", err
	}
	return "ollama/" + model, nil
}

func (e *PullExecutor) Execute(ctx context.Context, params map[string]any, rep executor.Reporter) (map[string]any, error) {
	model, err := modelParam(params)
	if err != nil {
		return nil, executor.Fatal("decode pull params", err)
	}
	rep.Log(fmt.Sprintf("Pulling ollama model %s", model))

	if err := e.client.Pull(ctx, model, rep); err != nil {
		return nil, err
	}

	rep.Log(fmt.Sprintf("Model %s pulled", model))
	return map[string]any{
		"model_name": model,
		"message":    fmt.Sprintf("Model %s pulled successfully", model),
	}, nil
}

// RunExecutor queues model inference, serialized per model so one model is
// never loaded twice concurrently.
type RunExecutor struct {
	client *Client
}

// NewRunExecutor wraps an ollama client as an inference executor.
func NewRunExecutor(client *Client) *RunExecutor {
	return &RunExecutor{client: client}
}

func (e *RunExecutor) Kind() string { return KindRun }

func (e *RunExecutor) Validate(params map[string]any) error {
	_, err := runParams(params)
	return err
}

func (e *RunExecutor) ContentionKey(params map[string]any) (string, error) {
	req, err := runParams(params)
	if err != nil {
		return "", err
	}
	return "ollama/" + req.Model, nil
}

func (e *RunExecutor) Execute(ctx context.Context, params map[string]any, rep executor.Reporter) (map[string]any, error) {
	req, err := runParams(params)
	if err != nil {
		return nil, executor.Fatal("decode run params", err)
	}
	rep.Log(fmt.Sprintf("Running inference with model %s", req.Model))

	resp, err := e.client.Generate(ctx, req, rep)
	if err != nil {
		return nil, err
	}

	rep.Log("Inference completed")
	return map[string]any{
		"model_name":        req.Model,
		"prompt":            req.Prompt,
		"generated_text":    resp.Response,
		"prompt_tokens":     resp.PromptEvalCount,
		"generated_tokens":  resp.EvalCount,
		"tokens_per_second": resp.TokensPerSecond(),
	}, nil
}

func modelParam(params map[string]any) (string, error) {
	value, _ := params["model_name"].(string)
	model := strings.TrimSpace(value)
	if model == "" {
		return "", errors.New("model_name is required")
	}
	return model, nil
}

func runParams(params map[string]any) (GenerateRequest, error) {
	model, err := modelParam(params)
	if err != nil {
		return GenerateRequest{}, err
	}
	prompt, _ := params["prompt"].(string)
	if strings.TrimSpace(prompt) == "" {
		return GenerateRequest{}, errors.New("prompt is required")
	}

	req := GenerateRequest{
		Model:       model,
		Prompt:      prompt,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}
	if value, ok := numberParam(params, "max_tokens"); ok {
		if value <= 0 {
			return GenerateRequest{}, errors.New("max_tokens must be positive")
		}
		req.MaxTokens = int(value)
	}
	if value, ok := numberParam(params, "temperature"); ok {
		if value < 0 || value > 2 {
			return GenerateRequest{}, errors.New("temperature must be between 0 and 2")
		}
		req.Temperature = value
	}
	return req, nil
}

// numberParam accepts both float64 (JSON decoding) and int (direct calls).
func numberParam(params map[string]any, name string) (float64, bool) {
	switch value := params[name].(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	default:
		return 0, false
	}
}
