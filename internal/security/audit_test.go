package security

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/treykane/ssh-conn/internal/appconfig"
)

func auditEnv(t *testing.T) (home string, cfg appconfig.Config) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return home, appconfig.Default()
}

func findTarget(report AuditReport, suffix string) (Finding, bool) {
	for _, f := range report.Findings {
		if strings.HasSuffix(f.Target, suffix) {
			return f, true
		}
	}
	return Finding{}, false
}

func TestRunLocalAudit_FindsRedactionDisabled(t *testing.T) {
	_, cfg := auditEnv(t)
	cfg.Security.RedactErrors = false

	report, err := RunLocalAudit(cfg)
	if err != nil {
		t.Fatal(err)
	}
	f, ok := findTarget(report, "config.yaml")
	if !ok || f.Severity != SeverityLow {
		t.Fatalf("expected low finding for redaction, got %+v", report.Findings)
	}
}

func TestRedactMessage(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	msg := home + "/.ssh/id_ed25519 permission denied"
	got := RedactMessage(msg)
	if got == msg {
		t.Fatalf("expected message to be redacted")
	}
}

func TestUserMessageKeepsSentinel(t *testing.T) {
	sentinel := errors.New("host key verification failed")
	err := NewSentinelError(sentinel, "host key for web has changed", "raw")
	if !errors.Is(err, sentinel) {
		t.Fatal("expected errors.Is to reach the sentinel")
	}
	if got := UserMessage(err, true); got != "host key for web has changed" {
		t.Fatalf("unexpected user message %q", got)
	}
}

func TestRunLocalAudit_FindsLoosePermissions(t *testing.T) {
	home, cfg := auditEnv(t)

	sshDir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(sshDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(sshDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(sshDir, "config")
	if err := os.WriteFile(cfgPath, []byte("Host test\n  IdentityFile ~/.ssh/id_test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(cfgPath, 0o644); err != nil {
		t.Fatal(err)
	}
	keyPath := filepath.Join(sshDir, "id_test")
	if err := os.WriteFile(keyPath, []byte("key"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(keyPath, 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := RunLocalAudit(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if f, ok := findTarget(report, ".ssh/config"); !ok || f.Severity != SeverityMedium {
		t.Fatalf("expected ssh config finding, got %+v", report.Findings)
	}
	if f, ok := findTarget(report, "id_test"); !ok || f.Severity != SeverityHigh {
		t.Fatalf("expected identity file finding, got %+v", report.Findings)
	}
	if !report.HasHigh() {
		t.Fatal("expected a high severity finding")
	}
	if report.Findings[0].Severity != SeverityHigh {
		t.Fatalf("findings should be sorted by severity, got %+v", report.Findings)
	}
}

func TestRunLocalAudit_CleanTreeHasNoFindings(t *testing.T) {
	home, cfg := auditEnv(t)
	sshDir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sshDir, "config"), []byte("Host test\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	report, err := RunLocalAudit(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Findings) != 0 {
		t.Fatalf("expected no findings, got %+v", report.Findings)
	}
}
