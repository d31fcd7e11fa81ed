package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/treykane/ssh-conn/internal/appconfig"
	"github.com/treykane/ssh-conn/internal/doctor"
	"github.com/treykane/ssh-conn/internal/events"
	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/probe"
	"github.com/treykane/ssh-conn/internal/security"
	"github.com/treykane/ssh-conn/internal/util"
)

func newProbeCmd(e *env) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "probe [host...]",
		Short: e.cat.T("cli.probe_short"),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.profileStore()
			if err != nil {
				return err
			}
			var profiles []model.Profile
			if len(args) == 0 {
				if profiles, err = store.List(); err != nil {
					return err
				}
			}
			for _, id := range args {
				p, err := e.findProfile(store, id)
				if err != nil {
					return err
				}
				profiles = append(profiles, p)
			}
			if len(profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), e.cat.T("cli.no_profiles"))
				return nil
			}
			if count > 1 {
				return e.ping(cmd, profiles, count)
			}
			return e.probeOnce(cmd, profiles)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "c", 1, "probes per host; above 1 prints latency statistics")
	return cmd
}

// probeOnce checks every profile concurrently through the same pool the
// browser uses and prints the results in list order.
func (e *env) probeOnce(cmd *cobra.Command, profiles []model.Profile) error {
	pool := probe.NewPool(e.cfg.Probe.Concurrency)
	for i, p := range profiles {
		pool.Submit(probe.TargetFor(i, p, e.cfg.ProbeTimeout()))
	}
	results, err := pool.Collect(cmd.Context(), len(profiles))
	if err != nil {
		return err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	w := cmd.OutOrStdout()
	for _, r := range results {
		if r.Status.Kind == model.StatusReachable {
			fmt.Fprintln(w, e.cat.T("cli.probe_reachable", r.ID, r.Status.String()))
		} else {
			fmt.Fprintln(w, e.cat.T("cli.probe_unreachable", r.ID, r.Status.String()))
		}
	}
	return nil
}

func (e *env) ping(cmd *cobra.Command, profiles []model.Profile, count int) error {
	w := cmd.OutOrStdout()
	for i, p := range profiles {
		t := probe.TargetFor(i, p, e.cfg.ProbeTimeout())
		st := probe.Ping(cmd.Context(), t.Addr, count, t.Timeout, time.Second)
		if st.Received == 0 {
			fmt.Fprintln(w, e.cat.T("cli.probe_unreachable", p.ID, st.Last.String()))
		} else {
			fmt.Fprintln(w, e.cat.T("cli.probe_reachable", p.ID, t.Addr))
		}
		fmt.Fprintln(w, "  "+e.cat.T("cli.ping_summary", st.Sent, st.Received, ms(st.Min), ms(st.Avg), ms(st.Max)))
	}
	return nil
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}

func newDoctorCmd(e *env) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: e.cat.T("cli.doctor_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := doctor.Run(e.cfg)
			if err != nil {
				return err
			}
			if jsonOut {
				if report.Issues == nil {
					report.Issues = []doctor.Issue{}
				}
				return writeJSON(cmd.OutOrStdout(), report)
			}
			w := cmd.OutOrStdout()
			if len(report.Issues) == 0 {
				fmt.Fprintln(w, "ok: no issues found")
				return nil
			}
			for _, issue := range report.Issues {
				fmt.Fprintf(w, "[%s] %s %s: %s\n", strings.ToUpper(string(issue.Severity)), issue.Check, issue.Target, issue.Message)
				fmt.Fprintf(w, "    -> %s\n", issue.Recommendation)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newAuditCmd(e *env) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: e.cat.T("cli.audit_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := security.RunLocalAudit(e.cfg)
			if err != nil {
				return err
			}
			if jsonOut {
				if report.Findings == nil {
					report.Findings = []security.Finding{}
				}
				return writeJSON(cmd.OutOrStdout(), report)
			}
			w := cmd.OutOrStdout()
			if len(report.Findings) == 0 {
				fmt.Fprintln(w, "ok: no findings")
				return nil
			}
			for _, f := range report.Findings {
				fmt.Fprintf(w, "[%s] %s: %s\n", strings.ToUpper(string(f.Severity)), security.RedactMessage(f.Target), f.Message)
				fmt.Fprintf(w, "    -> %s\n", f.Recommendation)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newEventsCmd(e *env) *cobra.Command {
	var (
		q       events.Query
		since   time.Duration
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: e.cat.T("cli.events_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if since > 0 {
				q.Since = time.Now().Add(-since)
			}
			evts, err := events.NewStore().Read(q)
			if err != nil {
				return err
			}
			if jsonOut {
				if evts == nil {
					evts = []events.Event{}
				}
				return writeJSON(cmd.OutOrStdout(), evts)
			}
			w := cmd.OutOrStdout()
			if len(evts) == 0 {
				fmt.Fprintln(w, e.cat.T("cli.no_events"))
				return nil
			}
			fmt.Fprintf(w, "%-20s %-20s %-18s %-10s %s\n", "TIME", "PROFILE", "EVENT", "DURATION", "MESSAGE")
			for _, evt := range evts {
				dur := "-"
				if evt.DurationMS > 0 {
					dur = (time.Duration(evt.DurationMS) * time.Millisecond).Round(time.Second).String()
				}
				fmt.Fprintf(w, "%-20s %-20s %-18s %-10s %s\n",
					evt.Timestamp.Local().Format("2006-01-02 15:04:05"),
					util.EmptyDash(evt.Profile), evt.EventType, dur, util.EmptyDash(evt.Message))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Profile, "profile", "", "filter by profile id")
	cmd.Flags().StringVar(&q.SessionID, "session", "", "filter by session id")
	cmd.Flags().StringVar(&q.EventType, "type", "", "filter by event type")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "maximum number of events (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newConfigCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "config",
		Short: e.cat.T("cli.config_short"),
		// config init must work even when the current file does not load.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: e.cat.T("cli.config_init_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := appconfig.FilePath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s", e.cat.T("cli.config_exists", path))
			}
			if err := appconfig.Save(appconfig.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.cat.T("cli.config_written", path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config.yaml")

	root.AddCommand(initCmd)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
