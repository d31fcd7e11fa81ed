// Package terminal owns the terminal device while the TUI runs and hands it to
// external interactive commands.
//
// A handoff always follows the same order: release the UI (raw input and the
// alternate screen), run the command on the real terminal, let the tty settle,
// drop any input queued meanwhile, then take the terminal back and clear it.
// Taking the terminal back happens even when the command fails or panics.
package terminal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/treykane/ssh-conn/internal/util"
)

// Modes is the terminal state the UI relies on.
type Modes struct {
	Raw       bool
	AltScreen bool
}

// Device is the terminal as seen by the Controller.
type Device interface {
	// Release leaves raw mode and the alternate screen.
	Release() error
	// Restore re-enters the modes Release left.
	Restore() error
	ClearHome() error
	// DrainInput discards unread input. It is best effort.
	DrainInput()
	// Reset sends attribute reset sequences and restores sane line settings
	// after a failed render. It leaves raw mode.
	Reset() error
	Modes() Modes
}

// Outcome is the result of one handoff. Err is the command's own error;
// ResumeErr reports a failure to take the terminal back.
type Outcome struct {
	Err       error
	ResumeErr error
	Modes     Modes
}

// Decision tells the render loop how to proceed after a failed frame.
type Decision int

const (
	Continue Decision = iota
	Fatal
)

// ErrRenderFailed is returned once consecutive render failures reach the limit.
var ErrRenderFailed = errors.New("terminal rendering failed repeatedly")

// Controller serializes handoffs and tracks render failures. It is used from
// the UI goroutine only.
type Controller struct {
	dev      Device
	sleep    func(time.Duration)
	maxFails int
	failures int
}

func NewController(dev Device) *Controller {
	return &Controller{dev: dev, sleep: time.Sleep, maxFails: util.MaxRenderFailures}
}

// Handoff gives the terminal to run and reclaims it afterwards.
func (c *Controller) Handoff(run func() error, settle time.Duration) (out Outcome) {
	if err := c.dev.Release(); err != nil {
		out.Err = fmt.Errorf("release terminal: %w", err)
		out.ResumeErr = c.resume()
		out.Modes = c.dev.Modes()
		return out
	}
	defer func() {
		out.ResumeErr = c.resume()
		out.Modes = c.dev.Modes()
		if out.ResumeErr != nil {
			slog.Error("failed to reclaim terminal", "error", out.ResumeErr)
		}
	}()

	out.Err = runGuarded(run)
	if settle > 0 {
		c.sleep(settle)
	}
	return out
}

func (c *Controller) resume() error {
	c.dev.DrainInput()
	if err := c.dev.Restore(); err != nil {
		return fmt.Errorf("restore terminal: %w", err)
	}
	if err := c.dev.ClearHome(); err != nil {
		return fmt.Errorf("clear screen: %w", err)
	}
	return nil
}

func runGuarded(run func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("external command panicked: %v", r)
		}
	}()
	return run()
}

// RenderFailed records a failed frame and resets the terminal. Below the
// limit the UI modes are entered again so the loop keeps reading keys in raw
// mode; at the limit it returns Fatal and leaves the terminal reset.
func (c *Controller) RenderFailed(err error) Decision {
	c.failures++
	if c.failures >= c.maxFails {
		if rerr := c.dev.Reset(); rerr != nil {
			slog.Warn("terminal reset failed", "error", rerr)
		}
		slog.Error("render failed, giving up", "failures", c.failures, "error", err)
		return Fatal
	}
	slog.Warn("render failed, retrying", "failures", c.failures, "error", err)
	if rerr := c.recoverModes(); rerr != nil {
		slog.Warn("terminal recovery incomplete", "error", rerr)
	}
	return Continue
}

// recoverModes leaves the UI modes, resets the terminal and enters the modes
// again.
func (c *Controller) recoverModes() error {
	if err := c.dev.Release(); err != nil {
		return errors.Join(fmt.Errorf("release terminal: %w", err), c.dev.Reset())
	}
	resetErr := c.dev.Reset()
	if err := c.dev.Restore(); err != nil {
		return errors.Join(resetErr, fmt.Errorf("restore terminal: %w", err))
	}
	return resetErr
}

// RenderOK clears the consecutive failure count.
func (c *Controller) RenderOK() { c.failures = 0 }

func (c *Controller) Failures() int { return c.failures }
