package main

import (
	"fmt"
	"time"

	"github.com/maverikod/mcp-dochub-server/internal/api"
	"github.com/maverikod/mcp-dochub-server/internal/textutil"
)

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second))
	if d < time.Minute {
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func formatProgress(snapshot api.TaskSnapshot) string {
	if snapshot.State != "running" {
		return "-"
	}
	if snapshot.ProgressMessage != "" {
		return fmt.Sprintf("%.0f%% %s", snapshot.ProgressPercent, textutil.Truncate(snapshot.ProgressMessage, 32))
	}
	return fmt.Sprintf("%.0f%%", snapshot.ProgressPercent)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func buildTaskRows(snapshots []api.TaskSnapshot) [][]string {
	rows := make([][]string, 0, len(snapshots))
	for _, snap := range snapshots {
		rows = append(rows, []string{
			shortID(snap.ID),
			textutil.Label(snap.Kind),
			textutil.Truncate(snap.Key, 40),
			textutil.StateLabel(snap.State),
			fmt.Sprintf("%d", snap.Attempts),
			formatProgress(snap),
			formatTime(snap.CreatedAt),
		})
	}
	return rows
}

var taskTable = tableDef{
	headers: []string{"ID", "Kind", "Key", "State", "Attempts", "Progress", "Created"},
	numeric: []int{5},
}
