package terminal

import (
	"errors"
	"io"
	"os"
	"os/exec"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

// ProgramDevice drives the terminal through a running bubbletea program.
type ProgramDevice struct {
	prog  *tea.Program
	out   io.Writer
	modes Modes
}

// NewProgramDevice returns a device writing control sequences to out. Attach
// must be called before the first handoff.
func NewProgramDevice(out io.Writer) *ProgramDevice {
	if out == nil {
		out = os.Stdout
	}
	return &ProgramDevice{out: out, modes: Modes{Raw: true, AltScreen: true}}
}

// Attach binds the device to the program that owns the terminal.
func (d *ProgramDevice) Attach(p *tea.Program) { d.prog = p }

func (d *ProgramDevice) Release() error {
	if d.prog == nil {
		return errors.New("terminal device is not attached to a program")
	}
	if err := d.prog.ReleaseTerminal(); err != nil {
		return err
	}
	d.modes = Modes{}
	return nil
}

func (d *ProgramDevice) Restore() error {
	if d.prog == nil {
		return errors.New("terminal device is not attached to a program")
	}
	if err := d.prog.RestoreTerminal(); err != nil {
		return err
	}
	d.modes = Modes{Raw: true, AltScreen: true}
	return nil
}

func (d *ProgramDevice) ClearHome() error {
	_, err := io.WriteString(d.out, ansi.EraseEntireScreen+ansi.CursorHomePosition)
	return err
}

func (d *ProgramDevice) DrainInput() { flushInput() }

// Reset restores sane line settings and default attributes. Once stty has
// run the terminal is no longer in raw mode.
func (d *ProgramDevice) Reset() error {
	var errs []error
	if _, err := io.WriteString(d.out, ansi.ResetStyle+ansi.ShowCursor); err != nil {
		errs = append(errs, err)
	}
	if err := stty("sane"); err != nil {
		errs = append(errs, err)
	} else {
		d.modes.Raw = false
	}
	return errors.Join(errs...)
}

var stty = func(args ...string) error {
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return err
	}
	defer func() { _ = tty.Close() }()
	cmd := exec.Command("stty", args...)
	cmd.Stdin = tty
	return cmd.Run()
}

func (d *ProgramDevice) Modes() Modes { return d.modes }
