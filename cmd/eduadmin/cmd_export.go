package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"eduadmin/internal/app"
	"eduadmin/internal/export"
	"eduadmin/internal/model"
	"eduadmin/internal/registry"

	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export courses and records as CSV or XLSX",
}

func init() {
	f := exportCmd.PersistentFlags()
	f.StringVarP(&exportFormat, "format", "f", "csv", "csv or xlsx")
	f.StringVarP(&exportOut, "out", "o", "", `output file ("-" = stdout; default: conventional name in the current dir)`)

	courses := &cobra.Command{
		Use:   "courses",
		Short: "Export the course list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, func(a *app.App, d *model.Data) (export.Kind, string, export.Table, error) {
				list := a.Registry().Courses(registry.CourseFilter{})
				return export.KindCourses, "", export.Courses(d, list), nil
			})
		},
	}

	perCourse := func(use, short string, kind export.Kind, build func(a *app.App, d *model.Data, c model.Course) export.Table) *cobra.Command {
		return &cobra.Command{
			Use:   use + " COURSE_ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runExport(cmd, func(a *app.App, d *model.Data) (export.Kind, string, export.Table, error) {
					c, ok := d.Course(args[0])
					if !ok {
						return kind, "", export.Table{}, fmt.Errorf("course %q not found", args[0])
					}
					return kind, c.Name, build(a, d, *c), nil
				})
			},
		}
	}

	exportCmd.AddCommand(
		courses,
		perCourse("attendance", "Export a course's attendance grid", export.KindAttendance,
			func(a *app.App, d *model.Data, c model.Course) export.Table {
				return export.Attendance(d, c, a.Registry().Today())
			}),
		perCourse("notes", "Export a course's service notes", export.KindService,
			func(a *app.App, d *model.Data, c model.Course) export.Table { return export.ServiceNotes(d, c) }),
		perCourse("renewals", "Export a course's renewal status", export.KindRenewals,
			func(a *app.App, d *model.Data, c model.Course) export.Table { return export.Renewals(d, c) }),
	)
	rootCmd.AddCommand(exportCmd)
}

type tableFunc func(a *app.App, d *model.Data) (export.Kind, string, export.Table, error)

func runExport(cmd *cobra.Command, build tableFunc) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		kind, name, t, err := build(a, a.Registry().Snapshot())
		if err != nil {
			return err
		}
		if exportOut == "-" {
			return export.Write(stdout, t, format)
		}
		path := exportOut
		if path == "" {
			path = export.Filename(kind, name, a.Registry().Today(), format)
		}
		if err := writeExport(path, t, format); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s (%d rows)\n", path, len(t.Rows))
		return nil
	})
}

// writeExport writes through a temp file so a failed export leaves no
// partial output behind.
func writeExport(path string, t export.Table, format export.Format) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := export.Write(tmp, t, format); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
