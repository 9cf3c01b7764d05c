package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"eduadmin/internal/app"
	"eduadmin/internal/model"
	"eduadmin/internal/registry"

	"github.com/spf13/cobra"
)

var courseCmd = &cobra.Command{
	Use:     "course",
	Aliases: []string{"courses"},
	Short:   "Create, edit and inspect courses",
}

var (
	courseFilter   registry.CourseFilter
	courseType     string
	courseIn       registry.CourseInput
	courseCopy     registry.CopyOptions
	courseReopen   bool
	courseAllTerms bool
)

func init() {
	list := &cobra.Command{
		Use:   "list",
		Short: "List courses",
		Args:  cobra.NoArgs,
		RunE:  runCourseList,
	}
	list.Flags().StringVarP(&courseFilter.Query, "query", "q", "", "name contains")
	list.Flags().StringVar(&courseType, "type", "", "term: spring/autumn/winter/summer (or 春季 etc.)")
	list.Flags().StringVar(&courseFilter.Status, "status", registry.StatusAll, "all, active or completed")
	list.Flags().StringVar(&courseFilter.StudentID, "student", "", "roster contains student ID")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show a course with its schedule and roster",
		Args:  cobra.ExactArgs(1),
		RunE:  runCourseShow,
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a course and generate its schedule",
		Long: `Create a course. The schedule is generated from the start date, the
class day (weekly terms) or work/rest rule (winter/summer) and the lesson
count, skipping stored holidays.

Examples:
  eduadmin course add --type spring --day 周六 --slot A --start 2024-03-02 --students ID1,ID2
  eduadmin course add --type summer --day 一期 --rule 上6天休1天 --slot B --start 2024-07-01 -n 12
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				c, err := a.Registry().AddCourse(ctx, courseIn)
				if err != nil {
					return err
				}
				return emit(c, func(w io.Writer) { printCourseCreated(w, "added", c) })
			})
		},
	}
	courseInputFlags(add)
	_ = add.MarkFlagRequired("type")
	_ = add.MarkFlagRequired("start")

	update := &cobra.Command{
		Use:   "update ID",
		Short: "Edit a course; the schedule is regenerated",
		Args:  cobra.ExactArgs(1),
		RunE:  runCourseUpdate,
	}
	courseInputFlags(update)

	cp := &cobra.Command{
		Use:   "copy ID",
		Short: "Copy a course (type, day, rule, slot, lessons, roster) to a new start date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				c, err := a.Registry().CopyCourse(ctx, args[0], courseCopy)
				if err != nil {
					return err
				}
				return emit(c, func(w io.Writer) { printCourseCreated(w, "copied to", c) })
			})
		},
	}
	cp.Flags().StringVar(&courseCopy.Name, "name", "", "name of the copy (default: generated)")
	cp.Flags().StringVar(&courseCopy.StartDate, "start", "", "start date of the copy (default: today)")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a course and all of its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().DeleteCourse(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "deleted course %s\n", args[0])
				return nil
			})
		},
	}

	complete := &cobra.Command{
		Use:   "complete ID",
		Short: "Mark a course completed (--reopen to undo)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().SetCourseCompleted(ctx, args[0], !courseReopen); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "course %s completed=%s\n", args[0], yesNo(!courseReopen))
				return nil
			})
		},
	}
	complete.Flags().BoolVar(&courseReopen, "reopen", false, "mark as not completed")

	enroll := &cobra.Command{
		Use:   "enroll ID STUDENT_ID...",
		Short: "Add students to a course roster",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().EnrollStudents(ctx, args[0], args[1:]...); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "enrolled %d student(s) in %s\n", len(args)-1, args[0])
				return nil
			})
		},
	}

	unenroll := &cobra.Command{
		Use:   "unenroll ID STUDENT_ID",
		Short: "Remove a student from a course roster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().UnenrollStudent(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "removed %s from %s\n", args[1], args[0])
				return nil
			})
		},
	}

	regen := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate schedules against the current holidays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Registry().RegenerateSchedules(ctx, !courseAllTerms)
				if err != nil {
					return err
				}
				return emit(map[string]int{"changed": n}, func(w io.Writer) {
					fmt.Fprintf(w, "%d course schedule(s) changed\n", n)
				})
			})
		},
	}
	regen.Flags().BoolVar(&courseAllTerms, "all", false, "include completed courses")

	courseCmd.AddCommand(list, show, add, update, cp, del, complete, enroll, unenroll, regen)
	rootCmd.AddCommand(courseCmd)
}

func courseInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&courseIn.Name, "name", "", "course name (default: generated, e.g. 24年春周六A班)")
	f.StringVar(&courseIn.Type, "type", "", "term: spring/autumn/winter/summer (or 春季 etc.)")
	f.StringVar(&courseIn.ClassDay, "day", "", "class day: 周五/周六/周日 (weekly) or 一期/二期/三期 (winter/summer)")
	f.StringVar(&courseIn.HolidayRule, "rule", "", "work/rest rule for winter/summer (上N天休M天)")
	f.StringVar(&courseIn.TimeSlot, "slot", "A", "time slot ID or label")
	f.StringVar(&courseIn.StartDate, "start", "", "first eligible date (YYYY-MM-DD)")
	f.IntVarP(&courseIn.TotalLessons, "lessons", "n", 0, "lesson count (default from config)")
	f.StringSliceVar(&courseIn.Students, "students", nil, "roster student IDs")
}

func runCourseList(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(courseType) != "" {
		t, err := model.ParseTerm(courseType)
		if err != nil {
			return err
		}
		courseFilter.Type = t
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		reg := a.Registry()
		list := reg.Courses(courseFilter)
		return emit(list, func(w io.Writer) {
			rows := make([][]string, len(list))
			for i, c := range list {
				p, _ := reg.Progress(c.ID)
				rows[i] = []string{
					c.ID, c.Name, c.Type.Label(), c.ClassDay, c.TimeSlot, c.StartDate,
					fmt.Sprintf("%d/%d", p.Done, p.Total), itoa(len(c.EnrolledStudents)), yesNo(c.IsCompleted),
				}
			}
			table(w, []string{"ID", "NAME", "TYPE", "DAY", "SLOT", "START", "PROGRESS", "STUDENTS", "DONE"}, rows)
		})
	})
}

func runCourseShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		reg := a.Registry()
		c, err := reg.Course(args[0])
		if err != nil {
			return err
		}
		p, err := reg.Progress(c.ID)
		if err != nil {
			return err
		}
		view := struct {
			model.Course
			Progress registry.Progress `json:"progress"`
		}{c, p}
		return emit(view, func(w io.Writer) {
			names := studentNames(reg)
			fmt.Fprintf(w, "%s (%s)\n", c.Name, c.ID)
			fmt.Fprintf(w, "type: %s  day: %s  slot: %s  start: %s\n", c.Type.Label(), c.ClassDay, c.TimeSlot, c.StartDate)
			if c.HolidayRule != "" {
				fmt.Fprintf(w, "rule: %s\n", c.HolidayRule)
			}
			fmt.Fprintf(w, "progress: %d/%d (%.0f%%)  completed: %s\n", p.Done, p.Total, p.Percent, yesNo(c.IsCompleted))
			roster := make([]string, len(c.EnrolledStudents))
			for i, id := range c.EnrolledStudents {
				roster[i] = names[id]
			}
			fmt.Fprintf(w, "students: %s\n\n", strings.Join(roster, ", "))
			rows := make([][]string, len(c.Schedule))
			for i, d := range c.Schedule {
				rows[i] = []string{itoa(i + 1), d}
			}
			table(w, []string{"#", "DATE"}, rows)
		})
	})
}

// runCourseUpdate starts from the stored course and overrides changed flags.
func runCourseUpdate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		cur, err := a.Registry().Course(args[0])
		if err != nil {
			return err
		}
		in := registry.CourseInput{
			Name:         cur.Name,
			Type:         string(cur.Type),
			ClassDay:     cur.ClassDay,
			HolidayRule:  cur.HolidayRule,
			TimeSlot:     cur.TimeSlot,
			StartDate:    cur.StartDate,
			TotalLessons: cur.TotalLessons,
			Students:     cur.EnrolledStudents,
		}
		f := cmd.Flags()
		set := func(name string, dst *string, v string) {
			if f.Changed(name) {
				*dst = v
			}
		}
		set("name", &in.Name, courseIn.Name)
		set("type", &in.Type, courseIn.Type)
		set("day", &in.ClassDay, courseIn.ClassDay)
		set("rule", &in.HolidayRule, courseIn.HolidayRule)
		set("slot", &in.TimeSlot, courseIn.TimeSlot)
		set("start", &in.StartDate, courseIn.StartDate)
		if f.Changed("lessons") {
			in.TotalLessons = courseIn.TotalLessons
		}
		if f.Changed("students") {
			in.Students = courseIn.Students
		}
		c, err := a.Registry().UpdateCourse(ctx, args[0], in)
		if err != nil {
			return err
		}
		return emit(c, func(w io.Writer) { printCourseCreated(w, "updated", c) })
	})
}

func printCourseCreated(w io.Writer, verb string, c model.Course) {
	first, last := "-", "-"
	if n := len(c.Schedule); n > 0 {
		first, last = c.Schedule[0], c.Schedule[n-1]
	}
	fmt.Fprintf(w, "%s course %s (%s): %d lessons %s .. %s\n", verb, c.Name, c.ID, len(c.Schedule), first, last)
}
