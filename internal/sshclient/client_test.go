package sshclient

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"

	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/security"
)

type fakePasswords map[string]string

func (f fakePasswords) Get(id string) (string, error) { return f[id], nil }

func TestArgsUsesProfileIDAsDestination(t *testing.T) {
	got := Args(model.Profile{ID: "prod-db", Address: "10.0.0.1"}, interactiveOptions)
	want := []string{
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "LogLevel=ERROR",
		"-o", "RequestTTY=force",
		"-tt",
		"prod-db",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args mismatch\nwant=%q\n got=%q", want, got)
	}
	got = Args(model.Profile{ID: "api"}, nil, "exit")
	if !reflect.DeepEqual(got, []string{"api", "exit"}) {
		t.Fatalf("unexpected args with remote command: %q", got)
	}
}

func TestCommandWrapsSSHPassWithoutLeakingPassword(t *testing.T) {
	c := New(fakePasswords{"api": "s3cret"})
	c.lookPath = func(string) (string, error) { return "/usr/bin/sshpass", nil }

	cmd, wrapped := c.command(context.Background(), model.Profile{ID: "api"}, cliOptions)
	if !wrapped {
		t.Fatal("expected sshpass wrapping")
	}
	if strings.Contains(strings.Join(cmd.Args, " "), "s3cret") {
		t.Fatalf("password leaked into argv: %q", cmd.Args)
	}
	if cmd.Args[1] != "-e" || cmd.Args[2] != "ssh" {
		t.Fatalf("unexpected sshpass argv: %q", cmd.Args)
	}
	found := false
	for _, kv := range cmd.Env {
		if kv == "SSHPASS=s3cret" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected SSHPASS in child environment")
	}
	if got := c.CommandLine(model.Profile{ID: "api"}); got != "sshpass -e ssh api" {
		t.Fatalf("unexpected command line: %q", got)
	}
}

func TestCommandFallsBackWhenSSHPassMissing(t *testing.T) {
	c := New(fakePasswords{"api": "s3cret"})
	c.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	cmd, wrapped := c.command(context.Background(), model.Profile{ID: "api"}, nil)
	if wrapped || cmd.Args[0] != "ssh" {
		t.Fatalf("expected plain ssh, got %q", cmd.Args)
	}
	if got := New(nil).CommandLine(model.Profile{ID: "web"}); got != "ssh web" {
		t.Fatalf("unexpected command line: %q", got)
	}
}

func TestIsHostKeyMismatch(t *testing.T) {
	cases := []struct {
		stderr string
		want   bool
	}{
		{"@@@ WARNING: REMOTE HOST IDENTIFICATION HAS CHANGED! @@@", true},
		{"Host key verification failed.", true},
		{"Someone could be eavesdropping on you right now (man-in-the-middle attack)!", true},
		{"Host key for 10.0.0.1 has changed and you have requested strict checking.", true},
		{"ssh: connect to host 10.0.0.1 port 22: Connection refused", false},
		{"Permission denied (publickey).", false},
	}
	for _, tc := range cases {
		if got := IsHostKeyMismatch(tc.stderr); got != tc.want {
			t.Fatalf("IsHostKeyMismatch(%q) = %v, want %v", tc.stderr, got, tc.want)
		}
	}
}

func exitError(t *testing.T, code string) error {
	t.Helper()
	err := exec.Command("sh", "-c", "exit "+code).Run()
	if err == nil {
		t.Fatal("expected exit error")
	}
	return err
}

func TestClassifyPreflight(t *testing.T) {
	err := classifyPreflight("api", exitError(t, "255"), "Host key verification failed.\n")
	if !errors.Is(err, ErrHostKeyMismatch) {
		t.Fatalf("expected host key mismatch, got %v", err)
	}

	err = classifyPreflight("api", exitError(t, "255"), "ssh: connect to host api port 22: Connection refused\n")
	if err == nil || errors.Is(err, ErrHostKeyMismatch) {
		t.Fatalf("expected generic failure, got %v", err)
	}
	if msg := security.UserMessage(err, false); !strings.Contains(msg, "Connection refused") {
		t.Fatalf("expected stderr in user message, got %q", msg)
	}

	if err := classifyPreflight("api", exitError(t, "255"), "Permission denied (publickey).\n"); err != nil {
		t.Fatalf("auth failures should defer to the interactive session, got %v", err)
	}
	if err := classifyPreflight("api", exitError(t, "1"), ""); err != nil {
		t.Fatalf("remote exit status should not fail preflight, got %v", err)
	}
}

func TestSessionError(t *testing.T) {
	if err := sessionError("api", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sessionError("api", exitError(t, "3")); err != nil {
		t.Fatalf("remote status must not be an error, got %v", err)
	}
	if err := sessionError("api", exitError(t, "255")); err == nil {
		t.Fatal("expected error for exit status 255")
	}
}

func TestHostKeyPatterns(t *testing.T) {
	got := HostKeyPatterns(model.Profile{ID: "api", Address: "10.0.0.1"})
	if !reflect.DeepEqual(got, []string{"api", "10.0.0.1"}) {
		t.Fatalf("unexpected patterns: %q", got)
	}
	got = HostKeyPatterns(model.Profile{ID: "db", Address: "db.internal", Port: 2222})
	if !reflect.DeepEqual(got, []string{"db", "[db.internal]:2222"}) {
		t.Fatalf("unexpected patterns: %q", got)
	}
	got = HostKeyPatterns(model.Profile{ID: "solo"})
	if !reflect.DeepEqual(got, []string{"solo"}) {
		t.Fatalf("unexpected patterns: %q", got)
	}
}
