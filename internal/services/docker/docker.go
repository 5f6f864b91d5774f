package docker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/maverikod/mcp-dochub-server/internal/config"
	"github.com/maverikod/mcp-dochub-server/internal/executor"
)

// commandRunner executes one CLI invocation and returns captured output.
// Swapped out in tests so no docker binary is required.
type commandRunner func(ctx context.Context, env []string, name string, args ...string) (stdout, stderr string, err error)

// Client is a thin wrapper over the docker CLI.
type Client struct {
	binary    string
	configDir string
	run       commandRunner
}

// NewClient constructs a docker client from configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		binary:    cfg.Docker.Binary,
		configDir: cfg.Docker.ConfigDir,
		run:       runCommand,
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

func (c *Client) environ() []string {
	if strings.TrimSpace(c.configDir) == "" {
		return nil
	}
	return []string{"DOCKER_CONFIG=" + c.configDir}
}

// Push pushes image:tag to its registry and returns the content digest when
// the CLI reports one.
func (c *Client) Push(ctx context.Context, image, tag string, rep executor.Reporter) (string, error) {
	ref := Reference(image, tag)
	rep.Progress(10, fmt.Sprintf("Starting push of %s", ref))

	stdout, stderr, err := c.run(ctx, c.environ(), c.binary, "push", ref)
	if err != nil {
		return "", classify("push "+ref, stderr, err)
	}

	rep.Progress(90, "Finalizing push")
	return parseDigest(stdout), nil
}

// Pull downloads image:tag from its registry.
func (c *Client) Pull(ctx context.Context, image, tag string, rep executor.Reporter) error {
	ref := Reference(image, tag)
	rep.Progress(10, fmt.Sprintf("Starting pull of %s", ref))

	_, stderr, err := c.run(ctx, c.environ(), c.binary, "pull", ref)
	if err != nil {
		return classify("pull "+ref, stderr, err)
	}
	rep.Progress(90, "Finalizing pull")
	return nil
}

// Build builds an image from a Dockerfile and tags it.
func (c *Client) Build(ctx context.Context, dockerfile, contextDir, tag string, rep executor.Reporter) error {
	rep.Progress(10, fmt.Sprintf("Starting build of %s", tag))

	args := []string{"build", "-t", tag}
	if strings.TrimSpace(dockerfile) != "" {
		args = append(args, "-f", dockerfile)
	}
	if strings.TrimSpace(contextDir) == "" {
		contextDir = "."
	}
	args = append(args, contextDir)

	_, stderr, err := c.run(ctx, c.environ(), c.binary, args...)
	if err != nil {
		return classify("build "+tag, stderr, err)
	}
	rep.Progress(90, "Finalizing build")
	return nil
}

// Reference joins an image name and tag into a full reference.
func Reference(image, tag string) string {
	if strings.TrimSpace(tag) == "" {
		tag = "latest"
	}
	return image + ":" + tag
}

// parseDigest extracts the sha256 digest from docker push output.
func parseDigest(output string) string {
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(line, "digest: ")
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(line[idx+len("digest: "):])
		if fields := strings.Fields(rest); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}
