package main

import (
	"context"
	"fmt"
	"io"

	"eduadmin/internal/app"
	"eduadmin/internal/registry"

	"github.com/spf13/cobra"
)

var studentCmd = &cobra.Command{
	Use:     "student",
	Aliases: []string{"students"},
	Short:   "List and edit students",
}

var (
	studentQuery      string
	studentEnrolled   bool
	studentUnenrolled bool
	studentIn         registry.StudentInput
)

func init() {
	list := &cobra.Command{
		Use:   "list",
		Short: "List students",
		Args:  cobra.NoArgs,
		RunE:  runStudentList,
	}
	list.Flags().StringVarP(&studentQuery, "query", "q", "", "name contains")
	list.Flags().BoolVar(&studentEnrolled, "enrolled", false, "only students on a course roster")
	list.Flags().BoolVar(&studentUnenrolled, "unenrolled", false, "only students on no roster")
	list.MarkFlagsMutuallyExclusive("enrolled", "unenrolled")

	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			studentIn.Name = args[0]
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				s, err := a.Registry().AddStudent(ctx, studentIn)
				if err != nil {
					return err
				}
				return emit(s, func(w io.Writer) { fmt.Fprintf(w, "added student %s (%s)\n", s.Name, s.ID) })
			})
		},
	}
	studentFlags(add)

	update := &cobra.Command{
		Use:   "update ID",
		Short: "Replace a student's name, grade and remark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				cur, err := a.Registry().Student(args[0])
				if err != nil {
					return err
				}
				in := registry.StudentInput{Name: cur.Name, Grade: cur.Grade, Remark: cur.Remark}
				f := cmd.Flags()
				if f.Changed("name") {
					in.Name = studentIn.Name
				}
				if f.Changed("grade") {
					in.Grade = studentIn.Grade
				}
				if f.Changed("remark") {
					in.Remark = studentIn.Remark
				}
				s, err := a.Registry().UpdateStudent(ctx, args[0], in)
				if err != nil {
					return err
				}
				return emit(s, func(w io.Writer) { fmt.Fprintf(w, "updated student %s\n", s.Name) })
			})
		},
	}
	studentFlags(update)
	update.Flags().StringVar(&studentIn.Name, "name", "", "new name")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a student and their records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().DeleteStudent(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "deleted student %s\n", args[0])
				return nil
			})
		},
	}

	studentCmd.AddCommand(list, add, update, del)
	rootCmd.AddCommand(studentCmd)
}

func studentFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&studentIn.Grade, "grade", "g", "", "grade, e.g. 三年级")
	cmd.Flags().StringVar(&studentIn.Remark, "remark", "", "free-form remark")
}

func runStudentList(cmd *cobra.Command, args []string) error {
	f := registry.StudentFilter{Query: studentQuery}
	switch {
	case studentEnrolled:
		v := true
		f.Enrolled = &v
	case studentUnenrolled:
		v := false
		f.Enrolled = &v
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		list := a.Registry().Students(f)
		reg := a.Registry()
		return emit(list, func(w io.Writer) {
			rows := make([][]string, len(list))
			for i, s := range list {
				rows[i] = []string{s.ID, s.Name, s.Grade, yesNo(s.IsEnrolled), itoa(reg.AbsentCount(s.ID)), s.Remark}
			}
			table(w, []string{"ID", "NAME", "GRADE", "ENROLLED", "ABSENCES", "REMARK"}, rows)
		})
	})
}

// studentNames maps IDs to names for display.
func studentNames(reg *registry.Registry) map[string]string {
	out := map[string]string{}
	for _, s := range reg.Students(registry.StudentFilter{}) {
		out[s.ID] = s.Name
	}
	return out
}
