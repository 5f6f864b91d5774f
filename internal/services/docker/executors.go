package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maverikod/mcp-dochub-server/internal/executor"
)

// Task kinds served by this package.
const (
	KindPush  = "docker_push"
	KindPull  = "docker_pull"
	KindBuild = "docker_build"
)

// PushExecutor queues docker push operations. The contention key is the
// full image reference so concurrent pushes can never race on one tag.
type PushExecutor struct {
	client *Client
}

// NewPushExecutor wraps a docker client as a push executor.
func NewPushExecutor(client *Client) *PushExecutor {
	return &PushExecutor{client: client}
}

func (e *PushExecutor) Kind() string { return KindPush }

func (e *PushExecutor) Validate(params map[string]any) error {
	_, _, err := imageParams(params)
	return err
}

func (e *PushExecutor) ContentionKey(params map[string]any) (string, error) {
	image, tag, err := imageParams(params)
	if err != nil {
		return "", err
	}
	return Reference(image, tag), nil
}

func (e *PushExecutor) Execute(ctx context.Context, params map[string]any, rep executor.Reporter) (map[string]any, error) {
	image, tag, err := imageParams(params)
	if err != nil {
		return nil, executor.Fatal("decode push params", err)
	}
	ref := Reference(image, tag)
	rep.Log(fmt.Sprintf("Pushing %s", ref))

	digest, err := e.client.Push(ctx, image, tag, rep)
	if err != nil {
		return nil, err
	}

	rep.Log(fmt.Sprintf("Pushed %s", ref))
	result := map[string]any{
		"image_name":      image,
		"tag":             tag,
		"full_image_name": ref,
		"message":         "Image pushed successfully",
	}
	if digest != "" {
		result["digest"] = digest
	}
	return result, nil
}

// PullExecutor queues docker pull operations.
type PullExecutor struct {
	client *Client
}

// NewPullExecutor wraps a docker client as a pull executor.
func NewPullExecutor(client *Client) *PullExecutor {
	return &PullExecutor{client: client}
}

func (e *PullExecutor) Kind() string { return KindPull }

func (e *PullExecutor) Validate(params map[string]any) error {
	_, _, err := imageParams(params)
	return err
}

func (e *PullExecutor) ContentionKey(params map[string]any) (string, error) {
	image, tag, err := imageParams(params)
	if err != nil {
		return "", err
	}
	return Reference(image, tag), nil
}

func (e *PullExecutor) Execute(ctx context.Context, params map[string]any, rep executor.Reporter) (map[string]any, error) {
	image, tag, err := imageParams(params)
	if err != nil {
		return nil, executor.Fatal("decode pull params", err)
	}
	ref := Reference(image, tag)
	rep.Log(fmt.Sprintf("Pulling %s", ref))

	if err := e.client.Pull(ctx, image, tag, rep); err != nil {
		return nil, err
	}

	rep.Log(fmt.Sprintf("Pulled %s", ref))
	return map[string]any{
		"image_name":      image,
		"tag":             tag,
		"full_image_name": ref,
		"message":         "Image pulled successfully",
	}, nil
}

// BuildExecutor queues docker build operations keyed by the output tag.
type BuildExecutor struct {
	client *Client
}

// NewBuildExecutor wraps a docker client as a build executor.
func NewBuildExecutor(client *Client) *BuildExecutor {
	return &BuildExecutor{client: client}
}

func (e *BuildExecutor) Kind() string { return KindBuild }

func (e *BuildExecutor) Validate(params map[string]any) error {
	_, err := buildParams(params)
	return err
}

func (e *BuildExecutor) ContentionKey(params map[string]any) (string, error) {
	spec, err := buildParams(params)
	if err != nil {
		return "", err
	}
	return spec.tag, nil
}

func (e *BuildExecutor) Execute(ctx context.Context, params map[string]any, rep executor.Reporter) (map[string]any, error) {
	spec, err := buildParams(params)
	if err != nil {
		return nil, executor.Fatal("decode build params", err)
	}
	rep.Log(fmt.Sprintf("Building %s from %s", spec.tag, spec.dockerfile))

	if err := e.client.Build(ctx, spec.dockerfile, spec.contextDir, spec.tag, rep); err != nil {
		return nil, err
	}

	rep.Log(fmt.Sprintf("Built %s", spec.tag))
	return map[string]any{
		"tag":          spec.tag,
		"dockerfile":   spec.dockerfile,
		"context_path": spec.contextDir,
		"message":      "Image built successfully",
	}, nil
}

func imageParams(params map[string]any) (image, tag string, err error) {
	image = stringParam(params, "image_name")
	if image == "" {
		return "", "", errors.New("image_name is required")
	}
	if strings.ContainsAny(image, " \t") {
		return "", "", fmt.Errorf("image_name %q contains whitespace", image)
	}
	tag = stringParam(params, "tag")
	if tag == "" {
		tag = "latest"
	}
	return image, tag, nil
}

type buildSpec struct {
	tag        string
	dockerfile string
	contextDir string
}

func buildParams(params map[string]any) (buildSpec, error) {
	spec := buildSpec{
		tag:        stringParam(params, "tag"),
		dockerfile: stringParam(params, "dockerfile_path"),
		contextDir: stringParam(params, "context_path"),
	}
	if spec.tag == "" {
		return buildSpec{}, errors.New("tag is required")
	}
	if spec.dockerfile == "" {
		spec.dockerfile = "Dockerfile"
	}
	if spec.contextDir == "" {
		spec.contextDir = "."
	}
	return spec, nil
}

func stringParam(params map[string]any, name string) string {
	value, ok := params[name]
	if !ok {
		return ""
	}
	str, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(str)
}
