// Package cli provides the command-line interface for ssh-conn.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/treykane/ssh-conn/internal/appconfig"
	"github.com/treykane/ssh-conn/internal/config"
	"github.com/treykane/ssh-conn/internal/credentials"
	"github.com/treykane/ssh-conn/internal/events"
	"github.com/treykane/ssh-conn/internal/history"
	"github.com/treykane/ssh-conn/internal/i18n"
	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/probe"
	"github.com/treykane/ssh-conn/internal/sshclient"
	"github.com/treykane/ssh-conn/internal/ui"
)

// env is shared by every command: the loaded app config and the catalog for
// the detected language.
type env struct {
	cfg     appconfig.Config
	cat     *i18n.Catalog
	loadErr error
}

func loadEnv() *env {
	cfg, err := appconfig.Load()
	if err != nil {
		cfg = appconfig.Default()
	}
	return &env{cfg: cfg, cat: i18n.MustLoad(i18n.Detect(cfg.Language)), loadErr: err}
}

// NewRootCommand creates the root cobra command. Without a subcommand it
// starts the interactive browser.
func NewRootCommand() *cobra.Command {
	e := loadEnv()
	root := &cobra.Command{
		Use:           "ssh-conn",
		Short:         e.cat.T("cli.root_short"),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if e.loadErr != nil {
				return e.loadErr
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: e.cfg.SlogLevel()})))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runBrowser(cmd.Context())
		},
	}

	root.AddCommand(
		newListCmd(e),
		newSearchCmd(e),
		newConnectCmd(e),
		newAddCmd(e),
		newEditCmd(e),
		newDeleteCmd(e),
		newBackupCmd(e),
		newProbeCmd(e),
		newDoctorCmd(e),
		newAuditCmd(e),
		newEventsCmd(e),
		newConfigCmd(e),
	)
	return root
}

// runBrowser wires the browser to the real stores. slog is redirected to the
// log file for as long as the browser owns the terminal.
func (e *env) runBrowser(ctx context.Context) error {
	logFile, err := openLogFile()
	if err != nil {
		return err
	}
	defer logFile.Close()
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: e.cfg.SlogLevel()})))
	defer slog.SetDefault(prev)

	store, creds, err := e.openStore(true)
	if err != nil {
		return err
	}
	if creds != nil {
		defer creds.Close()
	}

	return ui.Run(ctx, ui.Deps{
		Store:    store,
		Launcher: sshclient.New(passwordLookup(creds)),
		Prober:   probe.NewPool(e.cfg.Probe.Concurrency),
		Catalog:  e.cat,
		Config:   e.cfg,
		Journal:  events.NewStore(),
		History:  history.Recorder{},
	})
}

func openLogFile() (*os.File, error) {
	path, err := appconfig.LogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// profileStore returns a store without password support, for read-only
// commands that must not create the credential database.
func (e *env) profileStore() (*config.Store, error) {
	path, err := e.cfg.SSHConfigPath()
	if err != nil {
		return nil, err
	}
	return config.NewStore(path, nil), nil
}

// openStore returns a store backed by the credential database. The database
// is only created when create is set; a missing database otherwise leaves
// passwords disabled. creds is nil whenever passwords are disabled.
func (e *env) openStore(create bool) (*config.Store, *credentials.Store, error) {
	path, err := e.cfg.SSHConfigPath()
	if err != nil {
		return nil, nil, err
	}
	dbPath, err := e.cfg.CredentialsPath()
	if err != nil {
		return nil, nil, err
	}
	if !create {
		if _, err := os.Stat(dbPath); err != nil {
			return config.NewStore(path, nil), nil, nil
		}
	}
	creds, err := credentials.Open(dbPath)
	if err != nil {
		slog.Warn("credential store unavailable, passwords disabled", "path", dbPath, "error", err)
		return config.NewStore(path, nil), nil, nil
	}
	return config.NewStore(path, creds), creds, nil
}

func passwordLookup(creds *credentials.Store) sshclient.PasswordLookup {
	if creds == nil {
		return nil
	}
	return creds
}

// findProfile resolves id, suggesting the closest existing id when it is
// unknown.
func (e *env) findProfile(store *config.Store, id string) (model.Profile, error) {
	p, err := store.Get(id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, config.ErrNotFound) {
		return model.Profile{}, err
	}
	return model.Profile{}, e.notFound(store, id)
}

func (e *env) notFound(store *config.Store, id string) error {
	msg := e.cat.T("cli.not_found", id)
	if all, err := store.List(); err == nil {
		if s := suggest(id, all); s != "" {
			msg += "; " + e.cat.T("cli.did_you_mean", s)
		}
	}
	return errors.New(msg)
}

// suggest returns the id closest to id by edit distance, or "" when nothing
// is close enough to be a likely typo.
func suggest(id string, profiles []model.Profile) string {
	best, bestDist := "", -1
	for _, p := range profiles {
		d := levenshtein.ComputeDistance(strings.ToLower(id), strings.ToLower(p.ID))
		if bestDist < 0 || d < bestDist {
			best, bestDist = p.ID, d
		}
	}
	limit := len(id) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}

// prompt writes question and reads one trimmed line of input.
func prompt(cmd *cobra.Command, question string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), question)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func record(evt events.Event) {
	if err := events.NewStore().Append(evt); err != nil {
		slog.Warn("failed to write event journal", "event", evt.EventType, "error", err)
	}
}
