package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/treykane/ssh-conn/internal/history"
	"github.com/treykane/ssh-conn/internal/i18n"
	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/util"
)

func newListCmd(e *env) *cobra.Command {
	var recent, jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: e.cat.T("cli.list_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.profileStore()
			if err != nil {
				return err
			}
			res, err := store.Load()
			if err != nil {
				return err
			}
			profiles := res.Profiles
			if recent {
				lastUsed, err := history.LastUsed()
				if err != nil {
					return err
				}
				profiles = history.SortProfilesRecent(profiles, lastUsed)
			}
			if err := printProfiles(cmd.OutOrStdout(), e.cat, profiles, jsonOut); err != nil {
				return err
			}
			if len(res.Warnings) > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "warnings:")
				for _, w := range res.Warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", w)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&recent, "recent", false, "order by most recently connected")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newSearchCmd(e *env) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: e.cat.T("cli.search_short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.profileStore()
			if err != nil {
				return err
			}
			profiles, err := store.Search(args[0])
			if err != nil {
				return err
			}
			return printProfiles(cmd.OutOrStdout(), e.cat, profiles, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newBackupCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: e.cat.T("cli.backup_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.profileStore()
			if err != nil {
				return err
			}
			path, err := store.Backup()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.cat.T("cli.backup_written", path))
			return nil
		},
	}
}

func printProfiles(w io.Writer, cat *i18n.Catalog, profiles []model.Profile, jsonOut bool) error {
	if jsonOut {
		if profiles == nil {
			profiles = []model.Profile{}
		}
		return writeJSON(w, profiles)
	}
	if len(profiles) == 0 {
		fmt.Fprintln(w, cat.T("cli.no_profiles"))
		return nil
	}
	fmt.Fprintf(w, "%-24s %-24s %-6s %-16s %s\n", "HOST", "HOSTNAME", "PORT", "USER", "PROXY")
	for _, p := range profiles {
		proxy := p.ProxyJump
		if proxy == "" {
			proxy = p.ProxyCommand
		}
		fmt.Fprintf(w, "%-24s %-24s %-6d %-16s %s\n", p.ID, util.EmptyDash(p.Address), p.EffectivePort(), util.EmptyDash(p.User), util.EmptyDash(proxy))
	}
	return nil
}
