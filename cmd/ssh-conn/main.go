// Package main is the entry point for the ssh-conn binary.
//
// ssh-conn is a terminal browser for the hosts in ~/.ssh/config. When invoked
// without arguments it opens the interactive list; subcommands (list, connect,
// add, probe, doctor, ...) run one operation and exit.
//
// Usage:
//
//	ssh-conn                # browse, probe and connect interactively
//	ssh-conn list --recent  # print profiles, most recently used first
//	ssh-conn connect web-1  # open a session without the browser
//
// The command tree lives in internal/cli and the browser in internal/ui.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/treykane/ssh-conn/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ssh-conn:", err)
		stop()
		os.Exit(1)
	}
}
