// Package util provides common utility functions and constants used across the
// ssh-conn application. This package is intentionally kept dependency-free
// (no imports from other internal/* packages) to serve as a shared foundation
// without introducing circular dependencies.
package util

import "time"

const (
	// MaxIncludeDepth is the maximum nesting level for SSH config Include directives.
	// This limit prevents infinite recursion when config files form an include cycle
	// that escapes the cycle-detection logic (e.g., via symlinks that resolve to
	// different absolute paths).
	// Used by: internal/config/parser.go (parseRecursive).
	MaxIncludeDepth = 16

	// DefaultProbeTimeout bounds a single reachability probe when neither the
	// profile (ConnectTimeout) nor config.yaml (probe.timeout_seconds) says
	// otherwise.
	// Used by: internal/probe, internal/appconfig (Default).
	DefaultProbeTimeout = 5 * time.Second

	// MinProbingDisplay is the shortest time a profile stays in the "probing"
	// state. A probe that finishes faster holds its result back until this much
	// time has passed since it was submitted, so the status column does not
	// flicker.
	// Used by: internal/probe (Pool.run).
	MinProbingDisplay = 200 * time.Millisecond

	// DefaultProbeConcurrency caps the number of probes dialing at once. Large
	// configs queue behind the cap instead of opening hundreds of sockets.
	DefaultProbeConcurrency = 16

	// PollInterval is how often the TUI wakes up without input to merge probe
	// results and redraw.
	// Used by: internal/ui (pollCmd).
	PollInterval = 100 * time.Millisecond

	// DefaultSettleDelay is the pause after an interactive ssh session exits and
	// before the TUI reclaims the terminal. HostKeySettleDelay is used after the
	// two-stage host-key flow, which runs ssh-keygen as well.
	// Used by: internal/terminal (Controller.Handoff), internal/appconfig.
	DefaultSettleDelay = 200 * time.Millisecond
	HostKeySettleDelay = 300 * time.Millisecond

	// InputQuietPeriod is how long the TUI ignores key events after resuming
	// from a handoff. Keystrokes typed while the session was closing must not
	// reach the list.
	InputQuietPeriod = 250 * time.Millisecond

	// MaxRenderFailures is the number of consecutive render failures after
	// which the TUI resets the terminal and exits instead of retrying.
	// RenderRetryBackoff is the pause before a retry below that threshold.
	// Used by: internal/terminal (Controller.RenderFailed), internal/ui.
	MaxRenderFailures  = 5
	RenderRetryBackoff = 100 * time.Millisecond

	// PreflightTimeout is the ConnectTimeout passed to ssh for the
	// non-interactive check run before an interactive session.
	PreflightTimeout = 10
)
