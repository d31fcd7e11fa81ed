//go:build !unix

package terminal

func flushInput() {}
