package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maverikod/mcp-dochub-server/internal/executor"
)

func TestPullUsesModelsDir(t *testing.T) {
	var gotEnv []string
	var gotArgs []string
	client := &Client{
		binary:    "ollama",
		modelsDir: "/srv/models",
		run: func(_ context.Context, env []string, _ string, args ...string) (string, string, error) {
			gotEnv = env
			gotArgs = args
			return "", "", nil
		},
	}

	if err := client.Pull(context.Background(), "llama3", executor.NopReporter{}); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "pull" || gotArgs[1] != "llama3" {
		t.Fatalf("unexpected args: %v", gotArgs)
	}
	if len(gotEnv) != 1 || gotEnv[0] != "OLLAMA_MODELS=/srv/models" {
		t.Fatalf("unexpected env: %v", gotEnv)
	}
}

func TestPullUnknownModelIsFatal(t *testing.T) {
	client := &Client{
		binary: "ollama",
		run: func(context.Context, []string, string, ...string) (string, string, error) {
			return "", "pulling manifest\nError: pull model manifest: file does not exist", errors.New("exit status 1")
		},
	}

	err := client.Pull(context.Background(), "nosuchmodel", executor.NopReporter{})
	if err == nil {
		t.Fatal("expected pull to fail")
	}
	if !executor.IsFatal(err) {
		t.Fatalf("expected fatal classification, got %v", err)
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"The sky is blue.","prompt_eval_count":12,"eval_count":8,"eval_duration":2000000000}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, httpClient: server.Client()}
	resp, err := client.Generate(context.Background(), GenerateRequest{
		Model:       "llama3",
		Prompt:      "Why is the sky blue?",
		MaxTokens:   100,
		Temperature: 0.5,
	}, executor.NopReporter{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Response != "The sky is blue." || resp.EvalCount != 8 {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if tps := resp.TokensPerSecond(); tps != 4 {
		t.Fatalf("expected 4 tokens/sec, got %v", tps)
	}
}

func TestGenerateUnknownModelIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'missing' not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, httpClient: server.Client()}
	_, err := client.Generate(context.Background(), GenerateRequest{Model: "missing", Prompt: "hello"}, executor.NopReporter{})
	if err == nil {
		t.Fatal("expected generate to fail")
	}
	if !executor.IsFatal(err) {
		t.Fatalf("expected fatal classification, got %v", err)
	}
}

func TestGenerateServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, httpClient: server.Client()}
	_, err := client.Generate(context.Background(), GenerateRequest{Model: "llama3", Prompt: "hello"}, executor.NopReporter{})
	if err == nil {
		t.Fatal("expected generate to fail")
	}
	if executor.IsFatal(err) {
		t.Fatalf("expected retryable classification, got %v", err)
	}
}

func TestRunParamsValidation(t *testing.T) {
	exec := NewRunExecutor(&Client{})

	if err := exec.Validate(map[string]any{"prompt": "hi"}); err == nil {
		t.Fatal("expected missing model_name to fail")
	}
	if err := exec.Validate(map[string]any{"model_name": "llama3"}); err == nil {
		t.Fatal("expected missing prompt to fail")
	}
	if err := exec.Validate(map[string]any{"model_name": "llama3", "prompt": "hi", "max_tokens": -1}); err == nil {
		t.Fatal("expected negative max_tokens to fail")
	}
	if err := exec.Validate(map[string]any{"model_name": "llama3", "prompt": "hi", "temperature": 3.5}); err == nil {
		t.Fatal("expected out-of-range temperature to fail")
	}
	if err := exec.Validate(map[string]any{"model_name": "llama3", "prompt": "hi", "max_tokens": float64(64), "temperature": 0.2}); err != nil {
		t.Fatalf("expected valid params, got %v", err)
	}
}

func TestRunParamsDefaults(t *testing.T) {
	req, err := runParams(map[string]any{"model_name": "llama3", "prompt": "hi"})
	if err != nil {
		t.Fatalf("runParams failed: %v", err)
	}
	if req.MaxTokens != defaultMaxTokens || req.Temperature != defaultTemperature {
		t.Fatalf("expected defaults, got %#v", req)
	}
}

func TestExecutorsShareModelKey(t *testing.T) {
	pull := NewPullExecutor(&Client{})
	run := NewRunExecutor(&Client{})

	pullKey, err := pull.ContentionKey(map[string]any{"model_name": "llama3"})
	if err != nil {
		t.Fatalf("pull ContentionKey failed: %v", err)
	}
	runKey, err := run.ContentionKey(map[string]any{"model_name": "llama3", "prompt": "hi"})
	if err != nil {
		t.Fatalf("run ContentionKey failed: %v", err)
	}
	if pullKey != runKey {
		t.Fatalf("pull and run must serialize on the same model key: %q vs %q", pullKey, runKey)
	}
	if !strings.HasPrefix(pullKey, "ollama/") {
		t.Fatalf("unexpected key namespace: %q", pullKey)
	}
}
