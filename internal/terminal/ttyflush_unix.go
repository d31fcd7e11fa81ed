//go:build unix

package terminal

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// drainWindow bounds how long flushInput keeps reading after the flush.
	drainWindow = 100 * time.Millisecond
	drainPoll   = 5 * time.Millisecond
)

// flushInput discards unread bytes queued on the controlling terminal, then
// keeps reading non-blocking until drainWindow has passed to catch replies
// still in flight.
func flushInput() {
	tty, err := os.OpenFile("/dev/tty", os.O_RDONLY, 0)
	if err != nil {
		return
	}
	defer func() { _ = tty.Close() }()

	fd := int(tty.Fd())
	_ = discardQueued(fd)

	if err := unix.SetNonblock(fd, true); err != nil {
		return
	}
	defer func() { _ = unix.SetNonblock(fd, false) }()

	deadline := time.Now().Add(drainWindow)
	buf := make([]byte, 512)
	for time.Now().Before(deadline) {
		n, rerr := unix.Read(fd, buf)
		switch {
		case n > 0:
		case errors.Is(rerr, unix.EAGAIN), errors.Is(rerr, unix.EINTR):
			time.Sleep(drainPoll)
		default:
			return
		}
	}
}
