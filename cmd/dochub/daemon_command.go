package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maverikod/mcp-dochub-server/internal/textutil"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon operations",
	}

	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	return daemonCmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon runtime state",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().DaemonStatus(cmd.Context())
			if err != nil {
				return wrapDialError(err, ctx.apiAddress())
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:   %s\n", yesNo(status.Running))
			fmt.Fprintf(out, "PID:       %d\n", status.PID)
			fmt.Fprintf(out, "Database:  %s\n", status.QueueDBPath)
			fmt.Fprintf(out, "Lock:      %s\n", status.LockPath)
			kinds := make([]string, 0, len(status.Kinds))
			for _, kind := range status.Kinds {
				kinds = append(kinds, textutil.Label(kind))
			}
			fmt.Fprintf(out, "Kinds:     %s\n", strings.Join(kinds, ", "))
			fmt.Fprintf(out, "Workers:   %d  Queued: %d  Paused: %s\n", status.Stats.Workers, status.Stats.Queued, yesNo(status.Stats.Paused))
			if status.LastError != "" {
				fmt.Fprintf(out, "Last error: %s\n", status.LastError)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}
