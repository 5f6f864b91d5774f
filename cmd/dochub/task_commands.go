package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maverikod/mcp-dochub-server/internal/api"
	"github.com/maverikod/mcp-dochub-server/internal/textutil"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var wait bool

	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show one task's state and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			if wait {
				return waitForTask(cmd, client, args[0], jsonOutput)
			}
			snapshot, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return wrapDialError(err, ctx.apiAddress())
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), snapshot)
			}
			printTaskDetail(cmd, snapshot)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the task as JSON")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the task reaches a terminal state")
	return cmd
}

func printTaskDetail(cmd *cobra.Command, snapshot api.TaskSnapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", snapshot.ID)
	fmt.Fprintf(out, "Kind:      %s\n", textutil.Label(snapshot.Kind))
	fmt.Fprintf(out, "Key:       %s\n", snapshot.Key)
	fmt.Fprintf(out, "State:     %s\n", textutil.StateLabel(snapshot.State))
	fmt.Fprintf(out, "Attempts:  %d\n", snapshot.Attempts)
	fmt.Fprintf(out, "Created:   %s\n", formatTime(snapshot.CreatedAt))
	fmt.Fprintf(out, "Started:   %s\n", formatOptionalTime(snapshot.StartedAt))
	fmt.Fprintf(out, "Finished:  %s\n", formatOptionalTime(snapshot.FinishedAt))
	if snapshot.State == "running" {
		fmt.Fprintf(out, "Progress:  %s\n", formatProgress(snapshot))
	}
	if snapshot.DurationSeconds > 0 {
		fmt.Fprintf(out, "Duration:  %s\n", formatDuration(snapshot.DurationSeconds))
	}
	if snapshot.CancelRequested {
		fmt.Fprintf(out, "Cancel requested: %s\n", yesNo(snapshot.CancelRequested))
	}
	if snapshot.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", snapshot.Error)
	}
	if len(snapshot.Result) > 0 {
		fmt.Fprintf(out, "Result:    %s\n", string(snapshot.Result))
	}
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "logs <task-id>",
		Short: "Show a task's execution log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().Logs(cmd.Context(), args[0])
			if err != nil {
				return wrapDialError(err, ctx.apiAddress())
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			if len(resp.Lines) == 0 {
				fmt.Fprintln(out, "No log entries")
				return nil
			}
			for _, line := range resp.Lines {
				fmt.Fprintf(out, "%s  %s\n", formatTime(line.At), line.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the log as JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Request cancellation of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().Cancel(cmd.Context(), args[0])
			if err != nil {
				return wrapDialError(err, ctx.apiAddress())
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			if resp.Accepted {
				fmt.Fprintf(out, "Cancellation requested for %s\n", shortID(args[0]))
				return nil
			}
			fmt.Fprintf(out, "Task %s already %s; cancellation is a no-op\n", shortID(args[0]), resp.FinalState)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the outcome as JSON")
	return cmd
}
