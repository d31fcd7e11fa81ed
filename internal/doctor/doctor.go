// Package doctor runs local diagnostics for ssh-conn.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/treykane/ssh-conn/internal/appconfig"
	"github.com/treykane/ssh-conn/internal/config"
	"github.com/treykane/ssh-conn/internal/credentials"
	"github.com/treykane/ssh-conn/internal/security"
)

type Severity = security.Severity

const (
	SeverityLow    = security.SeverityLow
	SeverityMedium = security.SeverityMedium
	SeverityHigh   = security.SeverityHigh
)

type Issue struct {
	Severity       Severity `json:"severity"`
	Check          string   `json:"check"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

// binaries are the external programs ssh-conn shells out to.
var binaries = []struct {
	name     string
	severity Severity
	purpose  string
}{
	{"ssh", SeverityHigh, "install the OpenSSH client and ensure `ssh` is on PATH"},
	{"ssh-keygen", SeverityMedium, "install ssh-keygen; it is needed to purge changed host keys"},
}

var lookPath = exec.LookPath

// Run executes local diagnostics against cfg.
func Run(cfg appconfig.Config) (Report, error) {
	var issues []Issue

	for _, b := range binaries {
		if _, err := lookPath(b.name); err != nil {
			issues = append(issues, Issue{
				Severity:       b.severity,
				Check:          "binary",
				Target:         b.name,
				Message:        fmt.Sprintf("%s binary not found in PATH", b.name),
				Recommendation: b.purpose,
			})
		}
	}

	sshConfig, err := cfg.SSHConfigPath()
	if err != nil {
		return Report{}, err
	}
	ids := map[string]bool{}
	res, err := config.ParseFile(sshConfig)
	if err != nil {
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "config-parse",
			Target:         sshConfig,
			Message:        err.Error(),
			Recommendation: "fix the ssh config so profiles can be listed",
		})
	} else {
		for _, w := range res.Warnings {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "config-warning",
				Target:         sshConfig,
				Message:        w,
				Recommendation: "fix malformed or unsupported ssh config directives",
			})
		}
		for _, id := range res.Duplicates {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "duplicate-id",
				Target:         id,
				Message:        "profile is declared by more than one Host block",
				Recommendation: "merge the blocks; only the first value of each directive applies and the profile cannot be edited",
			})
		}
		for _, p := range res.Profiles {
			ids[p.ID] = true
			if p.Address == "" {
				issues = append(issues, Issue{
					Severity:       SeverityLow,
					Check:          "missing-hostname",
					Target:         p.ID,
					Message:        "profile has no HostName; the id is dialed directly",
					Recommendation: "add a HostName directive",
				})
			}
		}
	}

	issues = append(issues, credentialIssues(cfg, ids)...)

	if audit, err := security.RunLocalAudit(cfg); err == nil {
		for _, f := range audit.Findings {
			issues = append(issues, Issue{
				Severity:       f.Severity,
				Check:          "security-audit",
				Target:         f.Target,
				Message:        f.Message,
				Recommendation: f.Recommendation,
			})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		ri := security.SeverityRank(issues[i].Severity)
		rj := security.SeverityRank(issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if issues[i].Check != issues[j].Check {
			return issues[i].Check < issues[j].Check
		}
		if issues[i].Target != issues[j].Target {
			return issues[i].Target < issues[j].Target
		}
		return issues[i].Message < issues[j].Message
	})
	return Report{Issues: issues}, nil
}

// credentialIssues inspects the password database without creating it.
func credentialIssues(cfg appconfig.Config, ids map[string]bool) []Issue {
	path, err := cfg.CredentialsPath()
	if err != nil {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	store, err := credentials.Open(path)
	if err != nil {
		return []Issue{{
			Severity:       SeverityHigh,
			Check:          "credentials",
			Target:         path,
			Message:        err.Error(),
			Recommendation: "move the damaged database aside; ssh-conn recreates it on the next save",
		}}
	}
	defer store.Close()

	stored, err := store.IDs()
	if err != nil {
		return []Issue{{
			Severity:       SeverityMedium,
			Check:          "credentials",
			Target:         path,
			Message:        err.Error(),
			Recommendation: "verify the database with sqlite3",
		}}
	}
	var issues []Issue
	if len(stored) > 0 {
		if _, err := lookPath("sshpass"); err != nil {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "binary",
				Target:         "sshpass",
				Message:        fmt.Sprintf("%d stored password(s) but sshpass is not installed", len(stored)),
				Recommendation: "install sshpass or ssh will prompt for passwords",
			})
		}
	}
	for _, id := range stored {
		if !ids[id] {
			issues = append(issues, Issue{
				Severity:       SeverityLow,
				Check:          "orphaned-password",
				Target:         id,
				Message:        "password stored for a profile that no longer exists",
				Recommendation: "re-add the profile with `ssh-conn add` or remove the entry from the database",
			})
		}
	}
	return issues
}
