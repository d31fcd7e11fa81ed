// Package sshclient launches the system ssh binary on behalf of a profile.
//
// This package is responsible for launching SSH processes — it does NOT implement
// the SSH protocol itself. Instead, it shells out to the system's "ssh" binary,
// which means it automatically inherits the user's full SSH configuration (keys,
// agents, ProxyCommand chains, etc.) without reimplementing any of that logic.
//
// There are four operations:
//
//   - Preflight(): a short non-interactive connection attempt run before an
//     interactive session, used to detect a changed host key up front.
//
//   - Connect(): an interactive session that inherits the caller's terminal.
//     The TUI calls it while it has released the terminal (see
//     internal/terminal).
//
//   - RunInteractive(): the same session inside a PTY, for the CLI `connect`
//     command, which owns a plain terminal.
//
//   - PurgeHostKey(): removes stale known_hosts entries with ssh-keygen -R.
//
// When a password is stored for a profile, the session is wrapped in
// `sshpass -e`, which reads the password from the SSHPASS environment variable
// of the child process. The password never appears in argv.
//
// Security note: all SSH arguments are passed via exec.Command's argv (not via
// shell interpolation), which prevents injection attacks from profile ids that
// contain shell metacharacters.
package sshclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/security"
	"github.com/treykane/ssh-conn/internal/util"
)

// ErrHostKeyMismatch marks a connection refused because the server's host key
// no longer matches known_hosts. Callers branch on it with errors.Is.
var ErrHostKeyMismatch = errors.New("host key verification failed")

// connectionFailedExit is the status ssh itself exits with when it could not
// set up the session. Any other non-zero status comes from the remote command.
const connectionFailedExit = 255

var (
	// interactiveOptions are used for sessions launched from the TUI. The
	// forced TTY keeps ssh interactive even when its stdin was just handed
	// back by the TUI.
	interactiveOptions = []string{
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "LogLevel=ERROR",
		"-o", "RequestTTY=force",
		"-tt",
	}

	// cliOptions are used by the `connect` command, which runs ssh in a PTY.
	cliOptions = []string{
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "LogLevel=ERROR",
	}
)

// hostKeyMarkers are the stderr fragments OpenSSH prints when a known host
// presents a different key.
var hostKeyMarkers = []string{
	"Host key verification failed",
	"REMOTE HOST IDENTIFICATION HAS CHANGED",
	"Someone could be eavesdropping on you right now",
}

// PasswordLookup resolves a stored password for a profile id. An empty string
// with a nil error means no password is stored.
type PasswordLookup interface {
	Get(id string) (string, error)
}

// Client builds and runs ssh processes.
//
// Client is safe for concurrent use: each call creates an independent exec.Cmd.
// The zero value is not useful; use New() to create a Client instance.
type Client struct {
	passwords PasswordLookup
	lookPath  func(string) (string, error)

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New creates a client wired to the process's standard streams. passwords may
// be nil when no credential store is available.
func New(passwords PasswordLookup) *Client {
	return &Client{
		passwords: passwords,
		lookPath:  exec.LookPath,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// EnsureSSHBinary checks that the "ssh" binary is available on the system PATH.
//
// This should be called early during startup (before any connect operation)
// to provide a clear error message if SSH is not installed, rather than
// failing later with a confusing exec error.
func EnsureSSHBinary() error {
	_, err := exec.LookPath("ssh")
	if err != nil {
		return fmt.Errorf("ssh binary not found in PATH")
	}
	return nil
}

// Args returns the argv (without the program name) of an ssh invocation for
// profile p with the given options and optional remote command.
//
// The profile id is used as the destination so that OpenSSH resolves every
// directive of the Host block itself.
//
// Example output: ["-o", "StrictHostKeyChecking=accept-new", ..., "prod-db"]
func Args(p model.Profile, opts []string, remote ...string) []string {
	args := make([]string, 0, len(opts)+1+len(remote))
	args = append(args, opts...)
	args = append(args, p.ID)
	return append(args, remote...)
}

// command creates the exec.Cmd for ssh, wrapped by sshpass when a password is
// stored and sshpass is installed. The returned bool reports the wrapping.
func (c *Client) command(ctx context.Context, p model.Profile, opts []string, remote ...string) (*exec.Cmd, bool) {
	args := Args(p, opts, remote...)
	pw := c.password(p.ID)
	if pw == "" {
		return exec.CommandContext(ctx, "ssh", args...), false
	}
	if _, err := c.lookPath("sshpass"); err != nil {
		slog.Warn("password stored but sshpass is not installed; ssh will prompt", "profile", p.ID)
		return exec.CommandContext(ctx, "ssh", args...), false
	}
	cmd := exec.CommandContext(ctx, "sshpass", append([]string{"-e", "ssh"}, args...)...)
	cmd.Env = append(os.Environ(), "SSHPASS="+pw)
	return cmd, true
}

func (c *Client) password(id string) string {
	if c.passwords == nil {
		return ""
	}
	pw, err := c.passwords.Get(id)
	if err != nil {
		slog.Warn("failed to read stored password", "profile", id, "error", err)
		return ""
	}
	return pw
}

// CommandLine renders the interactive command for display or the clipboard.
// The password itself is never included.
func (c *Client) CommandLine(p model.Profile) string {
	args := Args(p, nil)
	if c.password(p.ID) != "" {
		return "sshpass -e ssh " + strings.Join(args, " ")
	}
	return "ssh " + strings.Join(args, " ")
}

// Preflight runs `ssh <id> exit` with a short ConnectTimeout and classifies the
// outcome:
//
//   - nil: the host answered, or it only failed authentication. Auth is left
//     to the interactive session, which can prompt.
//   - an error wrapping ErrHostKeyMismatch: the stored host key is stale.
//   - any other error: the host could not be reached; the message carries the
//     first line ssh printed.
//
// BatchMode is set when no password is stored so ssh never stops to prompt on
// a terminal it does not own.
func (c *Client) Preflight(ctx context.Context, p model.Profile) error {
	timeout := util.PreflightTimeout
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout+5)*time.Second)
	defer cancel()

	opts := []string{
		"-o", "ConnectTimeout=" + strconv.Itoa(timeout),
		"-o", "StrictHostKeyChecking=accept-new",
	}
	if c.password(p.ID) == "" {
		opts = append(opts, "-o", "BatchMode=yes")
	}
	cmd, _ := c.command(ctx, p, opts, "exit")
	var stderr strings.Builder
	cmd.Stdin = nil
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	return classifyPreflight(p.ID, err, stderr.String())
}

func classifyPreflight(id string, runErr error, stderr string) error {
	if IsHostKeyMismatch(stderr) {
		return security.NewSentinelError(ErrHostKeyMismatch, fmt.Sprintf("host key for %s has changed", id), strings.TrimSpace(stderr))
	}
	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return fmt.Errorf("run ssh for %s: %w", id, runErr)
	}
	if exitErr.ExitCode() != connectionFailedExit {
		return nil
	}
	if strings.Contains(stderr, "Permission denied") || strings.Contains(stderr, "Too many authentication failures") {
		return nil
	}
	return security.NewClassifiedError(
		fmt.Sprintf("connection to %s failed: %s", id, util.FirstLine(stderr, "ssh exited with status 255")),
		strings.TrimSpace(stderr),
	)
}

// IsHostKeyMismatch reports whether ssh's stderr describes a changed host key.
func IsHostKeyMismatch(stderr string) bool {
	for _, m := range hostKeyMarkers {
		if strings.Contains(stderr, m) {
			return true
		}
	}
	return strings.Contains(stderr, "Host key for") && strings.Contains(stderr, "has changed")
}

// Connect runs an interactive session attached to the client's streams and
// blocks until it ends. Only a failure of ssh itself (exit status 255 or a
// failure to start) is reported; the remote shell's own exit status is not.
func (c *Client) Connect(ctx context.Context, p model.Profile) error {
	cmd, _ := c.command(ctx, p, interactiveOptions)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return sessionError(p.ID, cmd.Run())
}

func sessionError(id string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() != connectionFailedExit {
			slog.Debug("remote session ended with non-zero status", "profile", id, "status", exitErr.ExitCode())
			return nil
		}
		return security.NewClassifiedError(
			fmt.Sprintf("ssh session to %s failed (exit status %d)", id, connectionFailedExit),
			err.Error(),
		)
	}
	return fmt.Errorf("start ssh for %s: %w", id, err)
}

// HostKeyPatterns returns the known_hosts names ssh-keygen -R must remove for
// p: the alias itself and the normalized address ("host" or "[host]:port").
func HostKeyPatterns(p model.Profile) []string {
	patterns := []string{p.ID}
	addr := knownhosts.Normalize(net.JoinHostPort(p.DialTarget(), strconv.Itoa(p.EffectivePort())))
	if addr != p.ID {
		patterns = append(patterns, addr)
	}
	return patterns
}

// PurgeHostKey removes every known_hosts entry for p. Output goes to the
// client's streams, so it is meant to run while the terminal is handed off.
func (c *Client) PurgeHostKey(ctx context.Context, p model.Profile) error {
	var errs []error
	for _, pattern := range HostKeyPatterns(p) {
		cmd := exec.CommandContext(ctx, "ssh-keygen", "-R", pattern)
		cmd.Stdout = c.Stdout
		cmd.Stderr = c.Stderr
		if err := cmd.Run(); err != nil {
			errs = append(errs, fmt.Errorf("ssh-keygen -R %s: %w", pattern, err))
		}
	}
	return errors.Join(errs...)
}
