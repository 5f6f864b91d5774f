package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maverikod/mcp-dochub-server/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the task queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueuePauseCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var key string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().List(cmd.Context(), states, key)
			if err != nil {
				return wrapDialError(err, ctx.apiAddress())
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			if len(resp.Tasks) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			fmt.Fprintln(out, taskTable.render(buildTaskRows(resp.Tasks)))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by task state (repeatable)")
	cmd.Flags().StringVarP(&key, "key", "k", "", "Filter by contention key")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit tasks as JSON")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := ctx.client().Stats(cmd.Context())
			if err != nil {
				return wrapDialError(err, ctx.apiAddress())
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			out := cmd.OutOrStdout()
			statsTable := tableDef{headers: []string{"State", "Count"}, numeric: []int{2}}
			fmt.Fprintln(out, statsTable.render(buildStatsRows(stats)))
			fmt.Fprintf(out, "Workers: %d  Queued: %d  Paused: %s\n", stats.Workers, stats.Queued, yesNo(stats.Paused))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit stats as JSON")
	return cmd
}

func buildStatsRows(stats api.QueueStats) [][]string {
	return [][]string{
		{"Pending", fmt.Sprintf("%d", stats.Pending)},
		{"Running", fmt.Sprintf("%d", stats.Running)},
		{"Succeeded", fmt.Sprintf("%d", stats.Succeeded)},
		{"Failed", fmt.Sprintf("%d", stats.Failed)},
		{"Cancelled", fmt.Sprintf("%d", stats.Cancelled)},
		{"Total", fmt.Sprintf("%d", stats.Total)},
	}
}

func newQueuePauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause task dispatch (running tasks continue)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().Pause(cmd.Context()); err != nil {
				return wrapDialError(err, ctx.apiAddress())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Queue paused")
			return nil
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume task dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().Resume(cmd.Context()); err != nil {
				return wrapDialError(err, ctx.apiAddress())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Queue resumed")
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove terminal tasks from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().Clear(cmd.Context())
			if err != nil {
				return wrapDialError(err, ctx.apiAddress())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d task(s)\n", resp.Removed)
			return nil
		},
	}
}
