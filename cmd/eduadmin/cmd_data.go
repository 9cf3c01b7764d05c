package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"eduadmin/internal/app"
	"eduadmin/internal/config"
	"eduadmin/internal/jobs"
	"eduadmin/internal/store"

	"github.com/spf13/cobra"
)

var (
	backupList  bool
	resetForce  bool
	auditLimit  int
	configForce bool
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Backup, restore and reset the stored document",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the config file",
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List or run the periodic jobs",
}

func init() {
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				s := a.Registry().Stats()
				return emit(s, func(w io.Writer) {
					fmt.Fprintf(w, "students: %d (enrolled %d)\n", s.Students, s.Enrolled)
					fmt.Fprintf(w, "courses:  %d active, %d completed\n", s.ActiveCourses, s.CompletedCourses)
					table(w, []string{"GRADE", "STUDENTS"}, countRows(s.Grades))
					types := make(map[string]int, len(s.Types))
					for t, n := range s.Types {
						types[t.Label()] = n
					}
					table(w, []string{"TYPE", "COURSES"}, countRows(types))
				})
			})
		},
	}

	backup := &cobra.Command{
		Use:   "backup",
		Short: "Write a backup now (--list shows existing ones)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if backupList {
					files, err := jobs.ListBackups(a.Config().Jobs.Backup.Dir)
					if err != nil {
						return err
					}
					return emit(files, func(w io.Writer) {
						for _, f := range files {
							fmt.Fprintln(w, f)
						}
					})
				}
				path, err := a.Backup(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "wrote %s\n", path)
				return nil
			})
		},
	}
	backup.Flags().BoolVar(&backupList, "list", false, "list backups, newest first")

	restore := &cobra.Command{
		Use:   "restore FILE",
		Short: "Replace the stored document with a JSON export or backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			data, err := store.ReadDocument(f)
			_ = f.Close()
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().Replace(ctx, data); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "restored %d student(s), %d course(s)\n", len(data.Students), len(data.Courses))
				return nil
			})
		},
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the whole document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return store.EncodeDocument(stdout, a.Registry().Snapshot())
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Erase everything and restore the sample data and default slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !resetForce {
				return errors.New("refusing to reset without --force")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().Reset(ctx); err != nil {
					return err
				}
				fmt.Fprintln(stdout, "data reset")
				return nil
			})
		},
	}
	reset.Flags().BoolVar(&resetForce, "force", false, "confirm the reset")

	audit := &cobra.Command{
		Use:   "audit",
		Short: "Show recent changes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.Audit(ctx, auditLimit)
				if err != nil {
					return err
				}
				return emit(list, func(w io.Writer) {
					rows := make([][]string, len(list))
					for i, e := range list {
						rows[i] = []string{e.At.Format("2006-01-02 15:04:05"), e.Action, e.Target, yesNo(e.OK), e.Error}
					}
					table(w, []string{"AT", "ACTION", "TARGET", "OK", "ERROR"}, rows)
				})
			})
		},
	}
	audit.Flags().IntVarP(&auditLimit, "limit", "n", 20, "entries to show")

	dataCmd.AddCommand(backup, restore, dump, reset, audit)

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config (defaults applied, token redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewManager(cfgPath).Load()
			if err != nil {
				return err
			}
			out := *cfg
			if out.Ops.Token != "" {
				out.Ops.Token = "<redacted>"
			}
			b, err := config.Encode(cfgPath, &out)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout, strings.TrimRight(string(b), "\n"))
			return err
		},
	}

	initCfg := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file to --config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(cfgPath); err == nil && !configForce {
				return fmt.Errorf("%s exists (use --force to overwrite)", cfgPath)
			}
			b, err := config.Encode(cfgPath, config.Default())
			if err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, append(b, '\n'), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", cfgPath)
			return nil
		},
	}
	initCfg.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(show, initCfg)

	jList := &cobra.Command{
		Use:   "list",
		Short: "List registered jobs and their schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				list := a.Jobs().Entries()
				return emit(list, func(w io.Writer) {
					rows := make([][]string, len(list))
					for i, e := range list {
						rows[i] = []string{e.Name, e.Schedule}
					}
					table(w, []string{"NAME", "SCHEDULE"}, rows)
				})
			})
		},
	}
	jRun := &cobra.Command{
		Use:   "run NAME",
		Short: "Run a job once in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				r, err := a.Jobs().RunNow(ctx, args[0])
				if err != nil {
					return err
				}
				return emit(r, func(w io.Writer) { fmt.Fprintf(w, "%s: %s in %s\n", r.Job, r.Result, r.Took) })
			})
		},
	}
	jobsCmd.AddCommand(jList, jRun)

	rootCmd.AddCommand(stats, dataCmd, configCmd, jobsCmd)
}

// countRows renders a count map sorted by key.
func countRows(m map[string]int) [][]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, itoa(m[k])}
	}
	return rows
}
