package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/maverikod/mcp-dochub-server/internal/api"
	"github.com/maverikod/mcp-dochub-server/internal/textutil"
)

type submitOptions struct {
	key        string
	jsonOutput bool
	wait       bool
}

func (o *submitOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.key, "key", "", "Override the derived contention key")
	cmd.Flags().BoolVar(&o.jsonOutput, "json", false, "Emit the submitted task as JSON")
	cmd.Flags().BoolVar(&o.wait, "wait", false, "Block until the task reaches a terminal state")
}

func submitTask(cmd *cobra.Command, ctx *commandContext, kind string, params map[string]any, opts submitOptions) error {
	client := ctx.client()
	resp, err := client.Submit(cmd.Context(), api.SubmitRequest{Kind: kind, Key: opts.key, Params: params})
	if err != nil {
		return wrapDialError(err, ctx.apiAddress())
	}

	if opts.jsonOutput && !opts.wait {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Queued %s task %s (key %s)\n", textutil.Label(kind), resp.ID, resp.Task.Key)

	if !opts.wait {
		return nil
	}
	return waitForTask(cmd, client, resp.ID, opts.jsonOutput)
}

// waitForTask polls until the task is terminal, echoing progress changes.
func waitForTask(cmd *cobra.Command, client *api.Client, id string, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	lastProgress := ""

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		snapshot, err := client.Status(cmd.Context(), id)
		if err != nil {
			return err
		}

		if progress := formatProgress(snapshot); progress != "-" && progress != lastProgress {
			fmt.Fprintf(out, "  %s\n", progress)
			lastProgress = progress
		}

		switch snapshot.State {
		case "succeeded", "failed", "cancelled":
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), snapshot)
			}
			fmt.Fprintf(out, "Task %s %s in %s\n", shortID(id), snapshot.State, formatDuration(snapshot.DurationSeconds))
			if snapshot.Error != "" {
				fmt.Fprintf(out, "  error: %s\n", snapshot.Error)
			}
			if snapshot.State == "failed" {
				return fmt.Errorf("task %s failed", shortID(id))
			}
			return nil
		}

		select {
		case <-cmd.Context().Done():
			return context.Canceled
		case <-ticker.C:
		}
	}
}

func newPushCommand(ctx *commandContext) *cobra.Command {
	var tag string
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "push <image>",
		Short: "Push an image to a registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"image_name": args[0]}
			if tag != "" {
				params["tag"] = tag
			}
			return submitTask(cmd, ctx, "docker_push", params, opts)
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Image tag (defaults to latest)")
	opts.register(cmd)
	return cmd
}

func newPullCommand(ctx *commandContext) *cobra.Command {
	var tag string
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "pull <image>",
		Short: "Pull an image from a registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"image_name": args[0]}
			if tag != "" {
				params["tag"] = tag
			}
			return submitTask(cmd, ctx, "docker_pull", params, opts)
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Image tag (defaults to latest)")
	opts.register(cmd)
	return cmd
}

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var dockerfile string
	var contextDir string
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "build <tag>",
		Short: "Build an image from a Dockerfile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"tag": args[0]}
			if dockerfile != "" {
				params["dockerfile_path"] = dockerfile
			}
			if contextDir != "" {
				params["context_path"] = contextDir
			}
			return submitTask(cmd, ctx, "docker_build", params, opts)
		},
	}

	cmd.Flags().StringVarP(&dockerfile, "file", "f", "", "Dockerfile path (defaults to Dockerfile)")
	cmd.Flags().StringVar(&contextDir, "context", "", "Build context directory (defaults to .)")
	opts.register(cmd)
	return cmd
}

func newOllamaCommand(ctx *commandContext) *cobra.Command {
	ollamaCmd := &cobra.Command{
		Use:   "ollama",
		Short: "Queue Ollama model operations",
	}

	ollamaCmd.AddCommand(newOllamaPullCommand(ctx))
	ollamaCmd.AddCommand(newOllamaRunCommand(ctx))
	return ollamaCmd
}

func newOllamaPullCommand(ctx *commandContext) *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "pull <model>",
		Short: "Download an Ollama model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitTask(cmd, ctx, "ollama_pull", map[string]any{"model_name": args[0]}, opts)
		},
	}

	opts.register(cmd)
	return cmd
}

func newOllamaRunCommand(ctx *commandContext) *cobra.Command {
	var maxTokens int
	var temperature float64
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "run <model> <prompt>",
		Short: "Run inference against an Ollama model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{
				"model_name": args[0],
				"prompt":     args[1],
			}
			if cmd.Flags().Changed("max-tokens") {
				params["max_tokens"] = maxTokens
			}
			if cmd.Flags().Changed("temperature") {
				params["temperature"] = temperature
			}
			return submitTask(cmd, ctx, "ollama_run", params, opts)
		},
	}

	cmd.Flags().IntVar(&maxTokens, "max-tokens", 1000, "Maximum tokens to generate")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "Sampling temperature")
	opts.register(cmd)
	return cmd
}
