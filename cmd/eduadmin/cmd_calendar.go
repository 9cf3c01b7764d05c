package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"eduadmin/internal/app"
	"eduadmin/internal/registry"
	"eduadmin/internal/schedule"

	"github.com/spf13/cobra"
)

var (
	holidayYear int
	eventIn     registry.EventInput
	eventDate   string
)

var holidayCmd = &cobra.Command{
	Use:     "holiday",
	Aliases: []string{"holidays"},
	Short:   "Manage blackout dates",
}

var slotCmd = &cobra.Command{
	Use:     "slot",
	Aliases: []string{"slots"},
	Short:   "Manage class time slots",
}

var eventCmd = &cobra.Command{
	Use:     "event",
	Aliases: []string{"events"},
	Short:   "Manage calendar events",
}

func init() {
	hList := &cobra.Command{
		Use:   "list",
		Short: "List holidays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				list := a.Registry().Holidays(holidayYear)
				return emit(list, func(w io.Writer) {
					rows := make([][]string, len(list))
					for i, h := range list {
						rows[i] = []string{h.Date, h.Name, h.ID}
					}
					table(w, []string{"DATE", "NAME", "ID"}, rows)
				})
			})
		},
	}
	hList.Flags().IntVar(&holidayYear, "year", 0, "only this year")

	hAdd := &cobra.Command{
		Use:   "add DATE NAME",
		Short: "Add a holiday (run 'course regenerate' to apply it to existing courses)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				h, err := a.Registry().AddHoliday(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return emit(h, func(w io.Writer) { fmt.Fprintf(w, "added holiday %s %s\n", h.Date, h.Name) })
			})
		},
	}

	hDel := &cobra.Command{
		Use:   "delete ID|DATE",
		Short: "Delete a holiday",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().DeleteHoliday(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "deleted holiday %s\n", args[0])
				return nil
			})
		},
	}

	hSeed := &cobra.Command{
		Use:   "seed YEAR",
		Short: "Replace a year's holidays with the standard list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				list, err := a.Registry().SeedHolidays(ctx, year)
				if err != nil {
					return err
				}
				return emit(list, func(w io.Writer) { fmt.Fprintf(w, "seeded %d holidays for %d\n", len(list), year) })
			})
		},
	}
	holidayCmd.AddCommand(hList, hAdd, hDel, hSeed)

	sList := &cobra.Command{
		Use:   "list",
		Short: "List time slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				list := a.Registry().TimeSlots()
				return emit(list, func(w io.Writer) {
					rows := make([][]string, len(list))
					for i, s := range list {
						rows[i] = []string{s.ID, s.Time}
					}
					table(w, []string{"ID", "TIME"}, rows)
				})
			})
		},
	}
	sAdd := &cobra.Command{
		Use:   "add ID HH:MM",
		Short: "Add a time slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				s, err := a.Registry().AddTimeSlot(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return emit(s, func(w io.Writer) { fmt.Fprintf(w, "added slot %s\n", s.Label()) })
			})
		},
	}
	sDel := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a time slot (courses keep their label)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().DeleteTimeSlot(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "deleted slot %s\n", args[0])
				return nil
			})
		},
	}
	slotCmd.AddCommand(sList, sAdd, sDel)

	eList := &cobra.Command{
		Use:   "list [DATE]",
		Short: "List events of a day (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				day, err := dayArg(a, args)
				if err != nil {
					return err
				}
				list := a.Registry().EventsOn(day)
				return emit(list, func(w io.Writer) {
					rows := make([][]string, len(list))
					for i, e := range list {
						rows[i] = []string{e.Time, e.Title, e.ID}
					}
					table(w, []string{"TIME", "TITLE", "ID"}, rows)
				})
			})
		},
	}
	eAdd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventIn.Title, eventIn.Date = args[0], eventDate
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, err := a.Registry().AddEvent(ctx, eventIn)
				if err != nil {
					return err
				}
				return emit(e, func(w io.Writer) { fmt.Fprintf(w, "added event %s on %s (%s)\n", e.Title, e.Date, e.ID) })
			})
		},
	}
	eventFlags(eAdd)
	_ = eAdd.MarkFlagRequired("date")

	eUpdate := &cobra.Command{
		Use:   "update ID TITLE",
		Short: "Replace an event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventIn.Title, eventIn.Date = args[1], eventDate
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, err := a.Registry().UpdateEvent(ctx, args[0], eventIn)
				if err != nil {
					return err
				}
				return emit(e, func(w io.Writer) { fmt.Fprintf(w, "updated event %s\n", e.ID) })
			})
		},
	}
	eventFlags(eUpdate)
	_ = eUpdate.MarkFlagRequired("date")

	eDel := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Registry().DeleteEvent(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "deleted event %s\n", args[0])
				return nil
			})
		},
	}
	eventCmd.AddCommand(eList, eAdd, eUpdate, eDel)

	lessons := &cobra.Command{
		Use:   "lessons [DATE]",
		Short: "List the lessons of a day (default today) in slot order",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLessons,
	}

	month := &cobra.Command{
		Use:   "month [YYYY-MM]",
		Short: "Show a month calendar with lesson and event counts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonth,
	}

	rootCmd.AddCommand(holidayCmd, slotCmd, eventCmd, lessons, month)
}

func eventFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&eventDate, "date", "", "event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&eventIn.Time, "time", "", "start time (HH:MM)")
}

// dayArg parses an optional date argument, defaulting to today.
func dayArg(a *app.App, args []string) (time.Time, error) {
	if len(args) == 0 {
		return a.Registry().Today(), nil
	}
	return schedule.ParseDate(args[0])
}

func runLessons(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		day, err := dayArg(a, args)
		if err != nil {
			return err
		}
		list := a.Registry().LessonsOn(day)
		return emit(list, func(w io.Writer) {
			fmt.Fprintf(w, "%s %s: %d lesson(s)\n", schedule.FormatDate(day), schedule.WeekdayLabel(day.Weekday()), len(list))
			rows := make([][]string, len(list))
			for i, l := range list {
				rows[i] = []string{
					l.Course.TimeSlot, l.Course.Name,
					fmt.Sprintf("%d/%d", l.Number(), len(l.Course.Schedule)),
					itoa(len(l.Course.EnrolledStudents)), l.Course.ID,
				}
			}
			table(w, []string{"SLOT", "COURSE", "LESSON", "STUDENTS", "ID"}, rows)
		})
	})
}

func runMonth(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		today := a.Registry().Today()
		year, month := today.Year(), today.Month()
		if len(args) == 1 {
			t, err := time.Parse("2006-01", strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid month %q (want YYYY-MM)", args[0])
			}
			year, month = t.Year(), t.Month()
		}
		g, err := a.Registry().Month(year, month)
		if err != nil {
			return err
		}
		return emit(g, func(w io.Writer) { printMonth(w, g) })
	})
}

// printMonth renders the grid as seven columns; each cell shows the day, the
// lesson count and the event count, "*" marks today and "H" a holiday.
func printMonth(w io.Writer, g registry.MonthGrid) {
	fmt.Fprintf(w, "%d-%02d\n", g.Year, int(g.Month))
	header := []string{"日", "一", "二", "三", "四", "五", "六"}
	var rows [][]string
	for week := 0; week < 6; week++ {
		row := make([]string, 7)
		for d := 0; d < 7; d++ {
			c := g.Cells[week*7+d]
			if !c.InMonth {
				row[d] = "."
				continue
			}
			s := strconv.Itoa(c.Date.Day())
			if c.Today {
				s += "*"
			}
			if c.Holiday != "" {
				s += "H"
			}
			if n := len(c.Lessons); n > 0 {
				s += fmt.Sprintf(" L%d", n)
			}
			if n := len(c.Events); n > 0 {
				s += fmt.Sprintf(" E%d", n)
			}
			row[d] = s
		}
		rows = append(rows, row)
	}
	table(w, header, rows)
}
