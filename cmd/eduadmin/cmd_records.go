package main

import (
	"context"
	"fmt"
	"io"

	"eduadmin/internal/app"
	"eduadmin/internal/model"

	"github.com/spf13/cobra"
)

var (
	recLesson   int
	recStudents []string
)

var attendCmd = &cobra.Command{
	Use:   "attend",
	Short: "Record attendance (present/absent/makeup)",
}

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Per-lesson service notes",
}

var renewalCmd = &cobra.Command{
	Use:   "renewal",
	Short: "Renewal status and remarks per student",
}

func init() {
	aSet := &cobra.Command{
		Use:   "set COURSE_ID STUDENT_ID STATUS",
		Short: "Set attendance of one lesson; STATUS \"\" or clear removes the mark",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := lessonIndex(recLesson)
			if err != nil {
				return err
			}
			status, err := attendanceArg(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().MarkAttendance(ctx, args[0], args[1], idx, status); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "lesson %d: %s\n", recLesson, labelOr(status.Label(), "cleared"))
				return nil
			})
		},
	}
	aSet.Flags().IntVarP(&recLesson, "lesson", "l", 0, "lesson number (1-based)")
	_ = aSet.MarkFlagRequired("lesson")

	aBatch := &cobra.Command{
		Use:   "batch COURSE_ID STATUS",
		Short: "Set STATUS on every lesson for the given students",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := attendanceArg(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				ids := recStudents
				if len(ids) == 0 {
					c, err := a.Registry().Course(args[0])
					if err != nil {
						return err
					}
					ids = c.EnrolledStudents
				}
				if err := a.Registry().MarkAttendanceBatch(ctx, args[0], ids, status); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "%d student(s): %s\n", len(ids), labelOr(status.Label(), "cleared"))
				return nil
			})
		},
	}
	aBatch.Flags().StringSliceVar(&recStudents, "students", nil, "student IDs (default: whole roster)")

	aShow := &cobra.Command{
		Use:   "show COURSE_ID",
		Short: "Show effective attendance per student and lesson",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				reg := a.Registry()
				c, err := reg.Course(args[0])
				if err != nil {
					return err
				}
				names := studentNames(reg)
				grid := map[string][]model.AttendanceStatus{}
				for _, sid := range c.EnrolledStudents {
					row := make([]model.AttendanceStatus, len(c.Schedule))
					for i := range c.Schedule {
						row[i], _ = reg.AttendanceStatus(c.ID, sid, i)
					}
					grid[sid] = row
				}
				return emit(grid, func(w io.Writer) {
					header := []string{"STUDENT"}
					for i := range c.Schedule {
						header = append(header, itoa(i+1))
					}
					rows := make([][]string, 0, len(c.EnrolledStudents))
					for _, sid := range c.EnrolledStudents {
						row := []string{names[sid]}
						for _, st := range grid[sid] {
							row = append(row, labelOr(st.Label(), "-"))
						}
						rows = append(rows, row)
					}
					table(w, header, rows)
				})
			})
		},
	}
	attendCmd.AddCommand(aSet, aBatch, aShow)

	nSet := &cobra.Command{
		Use:   "set COURSE_ID STUDENT_ID TEXT",
		Short: "Set the service note of one lesson; empty TEXT deletes it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := lessonIndex(recLesson)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().SetServiceNote(ctx, args[0], args[1], idx, args[2]); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "lesson %d note saved\n", recLesson)
				return nil
			})
		},
	}
	nSet.Flags().IntVarP(&recLesson, "lesson", "l", 0, "lesson number (1-based)")
	_ = nSet.MarkFlagRequired("lesson")

	nShow := &cobra.Command{
		Use:   "show COURSE_ID STUDENT_ID",
		Short: "Show a student's service notes for a course",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				reg := a.Registry()
				c, err := reg.Course(args[0])
				if err != nil {
					return err
				}
				notes := make([]string, len(c.Schedule))
				for i := range c.Schedule {
					notes[i] = reg.ServiceNote(c.ID, args[1], i)
				}
				return emit(notes, func(w io.Writer) {
					rows := make([][]string, 0, len(notes))
					for i, n := range notes {
						rows = append(rows, []string{itoa(i + 1), c.Schedule[i], n})
					}
					table(w, []string{"#", "DATE", "NOTE"}, rows)
				})
			})
		},
	}
	noteCmd.AddCommand(nSet, nShow)

	rStatus := &cobra.Command{
		Use:   "status COURSE_ID STUDENT_ID STATUS",
		Short: "Set renewal status: renewed, not-renewed or pending",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := model.ParseRenewal(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().SetRenewalStatus(ctx, args[0], args[1], status); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "renewal: %s\n", status.Label())
				return nil
			})
		},
	}
	rRemark := &cobra.Command{
		Use:   "remark COURSE_ID STUDENT_ID TEXT",
		Short: "Set the renewal remark",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().SetRenewalRemark(ctx, args[0], args[1], args[2]); err != nil {
					return err
				}
				fmt.Fprintln(stdout, "renewal remark saved")
				return nil
			})
		},
	}
	rShow := &cobra.Command{
		Use:   "show COURSE_ID",
		Short: "Show renewal status of a course's roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				reg := a.Registry()
				c, err := reg.Course(args[0])
				if err != nil {
					return err
				}
				names := studentNames(reg)
				out := map[string]model.Renewal{}
				rows := make([][]string, 0, len(c.EnrolledStudents))
				for _, sid := range c.EnrolledStudents {
					rn := reg.Renewal(c.ID, sid)
					out[sid] = rn
					rows = append(rows, []string{names[sid], rn.Status.Label(), rn.Remark})
				}
				return emit(out, func(w io.Writer) { table(w, []string{"STUDENT", "STATUS", "REMARK"}, rows) })
			})
		},
	}
	renewalCmd.AddCommand(rStatus, rRemark, rShow)

	rootCmd.AddCommand(attendCmd, noteCmd, renewalCmd)
}

// attendanceArg parses a status; "" and "clear" clear the mark.
func attendanceArg(s string) (model.AttendanceStatus, error) {
	if s == "" || s == "clear" {
		return "", nil
	}
	return model.ParseAttendance(s)
}

func labelOr(label, def string) string {
	if label == "" {
		return def
	}
	return label
}
