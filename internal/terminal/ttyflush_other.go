//go:build unix && !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

package terminal

// discardQueued has no portable ioctl here; flushInput's read loop does the
// draining.
func discardQueued(fd int) error { return nil }
