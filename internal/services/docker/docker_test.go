package docker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/maverikod/mcp-dochub-server/internal/executor"
)

func stubClient(run commandRunner) *Client {
	return &Client{binary: "docker", run: run}
}

type recordedCall struct {
	name string
	args []string
	env  []string
}

func recordingRunner(calls *[]recordedCall, stdout, stderr string, err error) commandRunner {
	return func(_ context.Context, env []string, name string, args ...string) (string, string, error) {
		*calls = append(*calls, recordedCall{name: name, args: args, env: env})
		return stdout, stderr, err
	}
}

func TestPushParsesDigest(t *testing.T) {
	var calls []recordedCall
	output := "The push refers to repository [docker.io/acme/app]\n" +
		"1.0: digest: sha256:4bcff63911fcb4448bd4fdacec207030997caf25e9bea4045fa6c8c44de311d1 size: 528\n"
	client := stubClient(recordingRunner(&calls, output, "", nil))

	digest, err := client.Push(context.Background(), "acme/app", "1.0", executor.NopReporter{})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if digest != "sha256:4bcff63911fcb4448bd4fdacec207030997caf25e9bea4045fa6c8c44de311d1" {
		t.Fatalf("unexpected digest: %q", digest)
	}
	if len(calls) != 1 || calls[0].args[0] != "push" || calls[0].args[1] != "acme/app:1.0" {
		t.Fatalf("unexpected CLI invocation: %#v", calls)
	}
}

func TestPushWithoutDigest(t *testing.T) {
	var calls []recordedCall
	client := stubClient(recordingRunner(&calls, "1.0: pushed\n", "", nil))

	digest, err := client.Push(context.Background(), "acme/app", "", executor.NopReporter{})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if digest != "" {
		t.Fatalf("expected empty digest, got %q", digest)
	}
	if calls[0].args[1] != "acme/app:latest" {
		t.Fatalf("expected latest tag default, got %v", calls[0].args)
	}
}

func TestPullDeniedIsFatal(t *testing.T) {
	var calls []recordedCall
	stderr := "Error response from daemon: pull access denied for acme/private, repository does not exist"
	client := stubClient(recordingRunner(&calls, "", stderr, errors.New("exit status 1")))

	err := client.Pull(context.Background(), "acme/private", "latest", executor.NopReporter{})
	if err == nil {
		t.Fatal("expected pull to fail")
	}
	if !executor.IsFatal(err) {
		t.Fatalf("expected fatal classification, got %v", err)
	}
	if !strings.Contains(err.Error(), "pull acme/private:latest") {
		t.Fatalf("expected operation in error, got %q", err)
	}
}

func TestPullNetworkFailureIsRetryable(t *testing.T) {
	var calls []recordedCall
	stderr := "Error response from daemon: Get \"https://registry-1.docker.io/v2/\": dial tcp: lookup registry-1.docker.io: no such host"
	client := stubClient(recordingRunner(&calls, "", stderr, errors.New("exit status 1")))

	err := client.Pull(context.Background(), "library/alpine", "latest", executor.NopReporter{})
	if err == nil {
		t.Fatal("expected pull to fail")
	}
	if executor.IsFatal(err) {
		t.Fatalf("expected retryable classification, got %v", err)
	}
}

func TestClassifyPassesContextErrorsThrough(t *testing.T) {
	if err := classify("pull", "", context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled untouched, got %v", err)
	}
	if err := classify("pull", "irrelevant stderr", context.DeadlineExceeded); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded untouched, got %v", err)
	}
}

func TestClassifyDefaultsRetryable(t *testing.T) {
	err := classify("build app:dev", "something novel went wrong", errors.New("exit status 1"))
	if executor.IsFatal(err) {
		t.Fatalf("unrecognized failure must default retryable, got %v", err)
	}
}

func TestBuildArguments(t *testing.T) {
	var calls []recordedCall
	client := stubClient(recordingRunner(&calls, "", "", nil))

	if err := client.Build(context.Background(), "build/Dockerfile.prod", "./service", "acme/app:dev", executor.NopReporter{}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got := strings.Join(calls[0].args, " ")
	want := "build -t acme/app:dev -f build/Dockerfile.prod ./service"
	if got != want {
		t.Fatalf("expected args %q, got %q", want, got)
	}
}

func TestEnvironIncludesConfigDir(t *testing.T) {
	client := &Client{binary: "docker", configDir: "/etc/dochub/docker"}
	env := client.environ()
	if len(env) != 1 || env[0] != "DOCKER_CONFIG=/etc/dochub/docker" {
		t.Fatalf("unexpected env: %v", env)
	}
	if env := (&Client{binary: "docker"}).environ(); env != nil {
		t.Fatalf("expected no env without config dir, got %v", env)
	}
}

func TestPushExecutorRoundTrip(t *testing.T) {
	var calls []recordedCall
	output := "1.0: digest: sha256:abc size: 528\n"
	exec := NewPushExecutor(stubClient(recordingRunner(&calls, output, "", nil)))

	params := map[string]any{"image_name": "acme/app", "tag": "1.0"}
	if err := exec.Validate(params); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	key, err := exec.ContentionKey(params)
	if err != nil {
		t.Fatalf("ContentionKey failed: %v", err)
	}
	if key != "acme/app:1.0" {
		t.Fatalf("unexpected key: %q", key)
	}

	result, err := exec.Execute(context.Background(), params, executor.NopReporter{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result["digest"] != "sha256:abc" || result["full_image_name"] != "acme/app:1.0" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestPushExecutorValidation(t *testing.T) {
	exec := NewPushExecutor(stubClient(nil))
	if err := exec.Validate(map[string]any{}); err == nil {
		t.Fatal("expected missing image_name to fail validation")
	}
	if err := exec.Validate(map[string]any{"image_name": "has space"}); err == nil {
		t.Fatal("expected whitespace image_name to fail validation")
	}
}

func TestBuildExecutorDefaults(t *testing.T) {
	exec := NewBuildExecutor(stubClient(nil))

	key, err := exec.ContentionKey(map[string]any{"tag": "acme/app:dev"})
	if err != nil {
		t.Fatalf("ContentionKey failed: %v", err)
	}
	if key != "acme/app:dev" {
		t.Fatalf("unexpected key: %q", key)
	}

	if err := exec.Validate(map[string]any{}); err == nil {
		t.Fatal("expected missing tag to fail validation")
	}

	var calls []recordedCall
	exec = NewBuildExecutor(stubClient(recordingRunner(&calls, "", "", nil)))
	result, err := exec.Execute(context.Background(), map[string]any{"tag": "acme/app:dev"}, executor.NopReporter{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result["dockerfile"] != "Dockerfile" || result["context_path"] != "." {
		t.Fatalf("expected defaults applied, got %#v", result)
	}
}
