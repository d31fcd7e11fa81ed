package terminal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	calls      []string
	modes      Modes
	restoreErr error
	resets     int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{modes: Modes{Raw: true, AltScreen: true}}
}

func (d *fakeDevice) Release() error {
	d.calls = append(d.calls, "release")
	d.modes = Modes{}
	return nil
}

func (d *fakeDevice) Restore() error {
	d.calls = append(d.calls, "restore")
	if d.restoreErr != nil {
		return d.restoreErr
	}
	d.modes = Modes{Raw: true, AltScreen: true}
	return nil
}

func (d *fakeDevice) ClearHome() error {
	d.calls = append(d.calls, "clear")
	return nil
}

func (d *fakeDevice) DrainInput() { d.calls = append(d.calls, "drain") }

func (d *fakeDevice) Reset() error {
	d.calls = append(d.calls, "reset")
	d.resets++
	d.modes.Raw = false
	return nil
}

func (d *fakeDevice) Modes() Modes { return d.modes }

func newTestController(dev Device) (*Controller, *[]time.Duration) {
	c := NewController(dev)
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func TestHandoffOrder(t *testing.T) {
	dev := newFakeDevice()
	c, slept := newTestController(dev)

	var modesDuringRun Modes
	out := c.Handoff(func() error {
		dev.calls = append(dev.calls, "run")
		modesDuringRun = dev.modes
		return nil
	}, 200*time.Millisecond)

	require.NoError(t, out.Err)
	require.NoError(t, out.ResumeErr)
	assert.Equal(t, []string{"release", "run", "drain", "restore", "clear"}, dev.calls)
	assert.Equal(t, Modes{}, modesDuringRun)
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, *slept)
}

func TestHandoffFailureRestoresModes(t *testing.T) {
	dev := newFakeDevice()
	before := dev.Modes()
	c, _ := newTestController(dev)

	out := c.Handoff(func() error { return errors.New("ssh session to web failed (exit status 255)") }, 0)

	require.Error(t, out.Err)
	assert.NotEmpty(t, out.Err.Error())
	assert.NoError(t, out.ResumeErr)
	assert.Equal(t, before, out.Modes)
	assert.Equal(t, before, dev.Modes())
}

func TestHandoffRecoversPanic(t *testing.T) {
	dev := newFakeDevice()
	c, _ := newTestController(dev)

	out := c.Handoff(func() error { panic("boom") }, 0)

	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "boom")
	assert.Equal(t, Modes{Raw: true, AltScreen: true}, dev.Modes())
	assert.Contains(t, dev.calls, "restore")
}

func TestHandoffReportsResumeError(t *testing.T) {
	dev := newFakeDevice()
	dev.restoreErr = errors.New("tty gone")
	c, _ := newTestController(dev)

	out := c.Handoff(func() error { return nil }, 0)

	assert.NoError(t, out.Err)
	assert.ErrorContains(t, out.ResumeErr, "tty gone")
}

func TestRenderFailureThreshold(t *testing.T) {
	dev := newFakeDevice()
	c, _ := newTestController(dev)
	err := errors.New("write: broken pipe")

	for i := 1; i <= 4; i++ {
		assert.Equal(t, Continue, c.RenderFailed(err), "failure %d", i)
	}
	assert.Equal(t, 4, dev.resets)
	assert.Equal(t, Fatal, c.RenderFailed(err))
	assert.Equal(t, 5, dev.resets)
}

func TestRenderFailureReentersRawMode(t *testing.T) {
	dev := newFakeDevice()
	c, _ := newTestController(dev)

	require.Equal(t, Continue, c.RenderFailed(errors.New("write: broken pipe")))
	assert.Equal(t, []string{"release", "reset", "restore"}, dev.calls)
	assert.Equal(t, Modes{Raw: true, AltScreen: true}, dev.Modes())
}

func TestRenderFailureAtLimitOnlyResets(t *testing.T) {
	dev := newFakeDevice()
	c, _ := newTestController(dev)
	err := errors.New("render")
	for i := 0; i < 4; i++ {
		c.RenderFailed(err)
	}
	dev.calls = nil

	require.Equal(t, Fatal, c.RenderFailed(err))
	assert.Equal(t, []string{"reset"}, dev.calls)
}

func TestRenderFailureReportsRestoreError(t *testing.T) {
	dev := newFakeDevice()
	dev.restoreErr = errors.New("tty gone")
	c, _ := newTestController(dev)

	assert.Equal(t, Continue, c.RenderFailed(errors.New("render")))
	assert.Equal(t, []string{"release", "reset", "restore"}, dev.calls)
}

func TestRenderOKResetsCount(t *testing.T) {
	dev := newFakeDevice()
	c, _ := newTestController(dev)
	err := errors.New("render")

	for i := 0; i < 4; i++ {
		c.RenderFailed(err)
	}
	c.RenderOK()
	assert.Equal(t, 0, c.Failures())
	assert.Equal(t, Continue, c.RenderFailed(err))
}
