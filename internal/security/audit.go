package security

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/treykane/ssh-conn/internal/appconfig"
	"github.com/treykane/ssh-conn/internal/config"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Finding struct {
	Severity       Severity `json:"severity"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type AuditReport struct {
	Findings []Finding `json:"findings"`
}

func (r AuditReport) HasHigh() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// RunLocalAudit inspects the permissions of the files ssh-conn reads and
// writes: ~/.ssh, the managed ssh config, the app config directory, the
// password database and every identity file the profiles reference.
func RunLocalAudit(cfg appconfig.Config) (AuditReport, error) {
	var findings []Finding
	if !cfg.Security.RedactErrors {
		findings = append(findings, Finding{
			Severity:       SeverityLow,
			Target:         "config.yaml",
			Message:        "error redaction is disabled; dialogs may show local paths",
			Recommendation: "set security.redact_errors to true",
		})
	}

	home, _ := os.UserHomeDir()
	if home != "" {
		checkPathPerm(&findings, filepath.Join(home, ".ssh"), 0o700, false, SeverityMedium)
	}

	sshConfig, err := cfg.SSHConfigPath()
	if err != nil {
		return AuditReport{}, err
	}
	checkPathPerm(&findings, sshConfig, 0o600, true, SeverityMedium)

	if cfgDir, err := appconfig.ConfigDir(); err == nil {
		checkPathPerm(&findings, cfgDir, 0o700, false, SeverityMedium)
		checkPathPerm(&findings, filepath.Join(cfgDir, "config.yaml"), 0o600, true, SeverityMedium)
	}

	// The database holds plain passwords, so a readable copy is a leak.
	if dbPath, err := cfg.CredentialsPath(); err == nil {
		checkPathPerm(&findings, dbPath, 0o600, true, SeverityHigh)
	}

	if res, err := config.ParseFile(sshConfig); err == nil {
		seen := map[string]struct{}{}
		for _, p := range res.Profiles {
			identity := strings.TrimSpace(p.IdentityFile)
			if identity == "" {
				continue
			}
			if strings.HasPrefix(identity, "~/") && home != "" {
				identity = filepath.Join(home, identity[2:])
			}
			if _, ok := seen[identity]; ok {
				continue
			}
			seen[identity] = struct{}{}
			checkPathPerm(&findings, identity, 0o600, true, SeverityHigh)
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return SeverityRank(findings[i].Severity) > SeverityRank(findings[j].Severity)
		}
		if findings[i].Target != findings[j].Target {
			return findings[i].Target < findings[j].Target
		}
		return findings[i].Message < findings[j].Message
	})
	return AuditReport{Findings: findings}, nil
}

// SeverityRank orders severities, highest first when sorted descending.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

func checkPathPerm(findings *[]Finding, path string, max os.FileMode, isFile bool, sev Severity) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		*findings = append(*findings, Finding{
			Severity:       SeverityLow,
			Target:         path,
			Message:        fmt.Sprintf("unable to inspect permissions: %v", err),
			Recommendation: "verify path and permissions manually",
		})
		return
	}
	// Any bit outside max is too broad, not just a numerically larger mode.
	mode := st.Mode().Perm()
	if mode&^max != 0 {
		kind := "directory"
		if isFile {
			kind = "file"
		}
		*findings = append(*findings, Finding{
			Severity:       sev,
			Target:         path,
			Message:        fmt.Sprintf("%s permissions are too broad (%#o)", kind, mode),
			Recommendation: fmt.Sprintf("chmod %#o %s", max, path),
		})
	}
}
