// Package util provides common utility functions and constants used across the
// ssh-conn application. This package is intentionally kept dependency-free
// (no imports from other internal/* packages) to serve as a shared foundation
// without introducing circular dependencies.
package util

import "strings"

// DefaultString returns fallback when v is empty or whitespace-only and v
// unchanged otherwise.
func DefaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// EmptyDash returns "-" for a blank s so optional table cells stay visible.
//
// Call sites:
//   - internal/cli/list.go (printProfiles) and internal/cli/diag.go (events
//     table): the optional columns of CLI tables.
//   - internal/ui/render.go (profileRow): the optional cells of the browser
//     table.
func EmptyDash(s string) string {
	return DefaultString(s, "-")
}

// FirstLine returns the first non-blank line of s, trimmed, or fallback when
// s has none. ssh prints its diagnosis on the first stderr line; later lines
// are debug noise.
//
// Examples:
//
//	FirstLine("\n  ssh: connect to host x port 22: Connection refused\nmore", "?")
//	  → "ssh: connect to host x port 22: Connection refused"
//	FirstLine(" \n\t", "ssh exited with status 255") → "ssh exited with status 255"
func FirstLine(s, fallback string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return fallback
}
