package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFile_BasicAndWildcard(t *testing.T) {
	d := t.TempDir()
	cfg := `
Host app-*
  User wildcard
  ServerAliveInterval 30

Host app-1
  HostName 10.0.0.10
  User explicit
  Port 2222
  ProxyCommand ssh -W %h:%p bastion
  ConnectTimeout 3

Host *
  User default
`
	path := filepath.Join(d, "config")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Profiles) != 1 {
		t.Fatalf("expected 1 concrete profile, got %d", len(res.Profiles))
	}
	p := res.Profiles[0]
	// First obtained value wins: the app-* block precedes app-1.
	if p.ID != "app-1" || p.User != "wildcard" || p.Address != "10.0.0.10" || p.Port != 2222 {
		t.Fatalf("unexpected profile parse: %+v", p)
	}
	if p.ProxyCommand != "ssh -W %h:%p bastion" || p.ConnectTimeout != 3 {
		t.Fatalf("unexpected proxy/timeout parse: %+v", p)
	}
	if p.Options["serveraliveinterval"] != "30" {
		t.Fatalf("expected unmanaged option to be kept, got %+v", p.Options)
	}
}

func TestParseFile_IncludeAndMalformed(t *testing.T) {
	d := t.TempDir()
	inc := filepath.Join(d, "inc.conf")
	if err := os.WriteFile(inc, []byte("Host db\n  HostName 10.1.1.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	root := filepath.Join(d, "config")
	content := "Include inc.conf\nBadLine\nHost api\n  HostName api.internal\n"
	if err := os.WriteFile(root, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := ParseFile(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Profiles) != 2 {
		t.Fatalf("expected 2 profiles from include+root, got %d", len(res.Profiles))
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected warning for malformed line")
	}
	if res.Profiles[1].ID != "db" || res.Profiles[1].Source != inc {
		t.Fatalf("expected db from include file, got %+v", res.Profiles[1])
	}
}

func TestParseFile_MissingRootIsEmpty(t *testing.T) {
	res, err := ParseFile(filepath.Join(t.TempDir(), "config"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Profiles) != 0 || len(res.Warnings) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestParseFile_EqualsSyntaxAndMatch(t *testing.T) {
	d := t.TempDir()
	path := filepath.Join(d, "config")
	cfg := "Host web\n  HostName=web.internal\n  Port = 8022\nMatch host web\n  User matched\n"
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	p := res.Profiles[0]
	if p.Address != "web.internal" || p.Port != 8022 || p.User != "" {
		t.Fatalf("unexpected parse: %+v", p)
	}
}

func TestParseFile_ReportsDuplicateHosts(t *testing.T) {
	d := t.TempDir()
	cfg := "Host web\n  HostName 10.0.0.1\n\nHost web db\n  User ops\n\nHost db2\n  HostName 10.0.0.3\n"
	path := filepath.Join(d, "config")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Duplicates) != 1 || res.Duplicates[0] != "web" {
		t.Fatalf("expected [web], got %v", res.Duplicates)
	}
	if len(res.Profiles) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(res.Profiles))
	}
	if res.Profiles[2].Address != "10.0.0.1" || res.Profiles[2].User != "ops" {
		t.Fatalf("web should merge both blocks, got %+v", res.Profiles[2])
	}
}
