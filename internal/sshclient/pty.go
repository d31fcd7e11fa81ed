package sshclient

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/treykane/ssh-conn/internal/model"
)

// RunInteractive starts an interactive SSH session in a pseudo-terminal (PTY).
//
// This method:
//  1. Creates an exec.Cmd for the SSH connection (sshpass-wrapped when a
//     password is stored).
//  2. Allocates a PTY sized like the caller's terminal and starts ssh in it.
//  3. Puts the caller's terminal in raw mode so every keystroke reaches the
//     remote shell, and restores it afterward.
//  4. Pipes stdin to the PTY and the PTY output to stdout.
//  5. Follows SIGWINCH so the remote side sees terminal resizes.
//  6. Waits for the SSH process to exit.
//
// The ctx parameter can be used to cancel the session. If the context is
// cancelled while the session is active, the SSH process is killed.
//
// Note: This method blocks until the SSH session ends. The TUI does not use
// it; it hands the real terminal to Connect() instead.
func (c *Client) RunInteractive(ctx context.Context, p model.Profile) error {
	cmd, _ := c.command(ctx, p, cliOptions)

	f, err := pty.Start(cmd)
	if err != nil {
		return sessionError(p.ID, err)
	}
	defer f.Close()

	stdin, isFile := c.Stdin.(*os.File)
	if isFile && term.IsTerminal(int(stdin.Fd())) {
		_ = pty.InheritSize(stdin, f)

		winch := make(chan os.Signal, 1)
		signal.Notify(winch, syscall.SIGWINCH)
		defer func() {
			signal.Stop(winch)
			close(winch)
		}()
		go func() {
			for range winch {
				_ = pty.InheritSize(stdin, f)
			}
		}()

		if oldState, err := term.MakeRaw(int(stdin.Fd())); err == nil {
			defer func() { _ = term.Restore(int(stdin.Fd()), oldState) }()
		}
	}

	// The copy goroutine ends on its own once the PTY is closed.
	go func() {
		_, _ = io.Copy(f, c.Stdin)
	}()

	// Forward PTY output until the SSH process exits and the master
	// returns EOF.
	_, _ = io.Copy(c.Stdout, f)

	if ctx.Err() != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	return sessionError(p.ID, cmd.Wait())
}
