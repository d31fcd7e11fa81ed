package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/treykane/ssh-conn/internal/config"
	"github.com/treykane/ssh-conn/internal/events"
	"github.com/treykane/ssh-conn/internal/history"
	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/security"
	"github.com/treykane/ssh-conn/internal/sshclient"
)

func newConnectCmd(e *env) *cobra.Command {
	var acceptNewKey bool
	cmd := &cobra.Command{
		Use:   "connect <host>",
		Short: e.cat.T("cli.connect_short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sshclient.EnsureSSHBinary(); err != nil {
				return err
			}
			store, creds, err := e.openStore(false)
			if err != nil {
				return err
			}
			if creds != nil {
				defer creds.Close()
			}
			p, err := e.findProfile(store, args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client := sshclient.New(passwordLookup(creds))
			sid := events.NewSessionID()
			if perr := client.Preflight(ctx, p); perr != nil {
				if !errors.Is(perr, sshclient.ErrHostKeyMismatch) {
					slog.Debug("preflight failed", "profile", p.ID, "error", security.DebugMessage(perr))
					return errors.New(security.UserMessage(perr, e.cfg.Security.RedactErrors))
				}
				record(events.Event{SessionID: sid, Profile: p.ID, EventType: events.HostKeyMismatch})
				if !acceptNewKey {
					answer, err := prompt(cmd, e.cat.T("cli.host_key_prompt", p.ID))
					if err != nil {
						return err
					}
					if a := strings.ToLower(answer); a != "y" && a != "yes" {
						return errors.New(security.UserMessage(perr, e.cfg.Security.RedactErrors))
					}
				}
				if err := client.PurgeHostKey(ctx, p); err != nil {
					slog.Warn("failed to remove stale host key, connecting anyway", "profile", p.ID, "error", err)
				} else {
					record(events.Event{SessionID: sid, Profile: p.ID, EventType: events.HostKeyPurged})
				}
			}

			record(events.Event{SessionID: sid, Profile: p.ID, EventType: events.SessionStarted})
			start := time.Now()
			err = client.RunInteractive(ctx, p)
			elapsed := time.Since(start).Milliseconds()
			if err != nil {
				record(events.Event{SessionID: sid, Profile: p.ID, EventType: events.SessionFailed, Message: security.DebugMessage(err), DurationMS: elapsed})
				return errors.New(security.UserMessage(err, e.cfg.Security.RedactErrors))
			}
			record(events.Event{SessionID: sid, Profile: p.ID, EventType: events.SessionEnded, DurationMS: elapsed})
			if err := history.Touch(p.ID); err != nil {
				slog.Warn("failed to record history", "profile", p.ID, "error", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&acceptNewKey, "accept-new-key", false, "remove a changed host key without asking")
	return cmd
}

// profileFlags are the editable fields shared by add and edit.
type profileFlags struct {
	address       string
	user          string
	port          int
	proxyCommand  string
	identityFile  string
	passwordStdin bool
}

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.address, "hostname", "", "HostName (address or DNS name)")
	cmd.Flags().StringVar(&f.user, "user", "", "remote user")
	cmd.Flags().IntVar(&f.port, "port", 0, "port (1-65535)")
	cmd.Flags().StringVar(&f.proxyCommand, "proxy-command", "", "ProxyCommand")
	cmd.Flags().StringVar(&f.identityFile, "identity-file", "", "IdentityFile path")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read a password to store from stdin")
}

// apply copies the flags the user set onto in.
func (f *profileFlags) apply(cmd *cobra.Command, in *model.ProfileInput) error {
	changed := cmd.Flags().Changed
	if changed("hostname") {
		in.Address = strings.TrimSpace(f.address)
	}
	if changed("user") {
		in.User = strings.TrimSpace(f.user)
	}
	if changed("port") {
		in.Port = f.port
	}
	if changed("proxy-command") {
		in.ProxyCommand = strings.TrimSpace(f.proxyCommand)
	}
	if changed("identity-file") {
		in.IdentityFile = strings.TrimSpace(f.identityFile)
	}
	if f.passwordStdin {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		in.Password = strings.TrimRight(string(b), "\r\n")
	}
	return nil
}

func newAddCmd(e *env) *cobra.Command {
	var flags profileFlags
	cmd := &cobra.Command{
		Use:   "add <host>",
		Short: e.cat.T("cli.add_short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := model.ProfileInput{ID: strings.TrimSpace(args[0])}
			if err := flags.apply(cmd, &in); err != nil {
				return err
			}
			store, creds, err := e.openStore(in.Password != "")
			if err != nil {
				return err
			}
			if creds != nil {
				defer creds.Close()
			}
			if err := store.Add(in); err != nil {
				return err
			}
			record(events.Event{Profile: in.ID, EventType: events.ProfileAdded})
			fmt.Fprintln(cmd.OutOrStdout(), e.cat.T("cli.added", in.ID))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newEditCmd(e *env) *cobra.Command {
	var flags profileFlags
	cmd := &cobra.Command{
		Use:   "edit <host>",
		Short: e.cat.T("cli.edit_short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, creds, err := e.openStore(flags.passwordStdin)
			if err != nil {
				return err
			}
			if creds != nil {
				defer creds.Close()
			}
			p, err := e.findProfile(store, args[0])
			if err != nil {
				return err
			}
			in, err := store.Own(p.ID)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &in); err != nil {
				return err
			}
			if err := store.Edit(p.ID, in); err != nil {
				return err
			}
			record(events.Event{Profile: p.ID, EventType: events.ProfileEdited})
			fmt.Fprintln(cmd.OutOrStdout(), e.cat.T("cli.updated", p.ID))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newDeleteCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <host>",
		Short: e.cat.T("cli.delete_short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, creds, err := e.openStore(false)
			if err != nil {
				return err
			}
			if creds != nil {
				defer creds.Close()
			}
			p, err := e.findProfile(store, args[0])
			if err != nil {
				return err
			}
			if !yes {
				answer, err := prompt(cmd, e.cat.T("cli.delete_confirm", p.ID))
				if err != nil {
					return err
				}
				if !strings.EqualFold(answer, "yes") {
					fmt.Fprintln(cmd.OutOrStdout(), e.cat.T("cli.delete_aborted"))
					return nil
				}
			}
			if err := store.Delete(p.ID); err != nil {
				if errors.Is(err, config.ErrNotFound) {
					return e.notFound(store, p.ID)
				}
				return err
			}
			if err := history.Forget(p.ID); err != nil {
				slog.Warn("failed to clear history", "profile", p.ID, "error", err)
			}
			record(events.Event{Profile: p.ID, EventType: events.ProfileDeleted})
			fmt.Fprintln(cmd.OutOrStdout(), e.cat.T("cli.deleted", p.ID))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}
