// Package textutil provides human-facing label formatting for CLI output.
package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Label converts a machine identifier such as "docker_push" or "pending"
// into a display label like "Docker Push".
func Label(identifier string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(identifier)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}
	return titleCaser.String(cleaned)
}

// StateLabel renders a task state name for display.
func StateLabel(state string) string {
	return Label(state)
}

// Truncate shortens s to at most max runes, appending an ellipsis when
// content was removed. Values of max below 4 return the untruncated string.
func Truncate(s string, max int) string {
	if max < 4 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
