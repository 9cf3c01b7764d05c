package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"eduadmin/internal/app"
	"eduadmin/internal/schedule"

	"github.com/spf13/cobra"
)

var (
	schedStart     string
	schedCount     int
	schedDay       string
	schedRule      string
	schedBlackouts []string
	schedHolidays  bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Preview a lesson schedule without storing anything",
	Long: `Generate lesson dates from a start date and a cadence.

Weekly cadence (spring/autumn terms) meets once a week on Friday, Saturday or
Sunday. Intensive cadence (winter/summer terms) follows a work/rest rule.

Examples:
  eduadmin schedule --start 2024-01-06 --count 15 --day 周六
  eduadmin schedule --start 2024-07-01 --count 12 --rule 上6天休1天 --holidays
  eduadmin schedule --start 2024-07-01 --count 5 --rule "work 2 days rest 1 days" --blackout 2024-07-04
`,
	RunE: runSchedule,
}

func init() {
	f := scheduleCmd.Flags()
	f.StringVar(&schedStart, "start", "", "first eligible date (YYYY-MM-DD)")
	f.IntVarP(&schedCount, "count", "n", 15, "number of lessons")
	f.StringVar(&schedDay, "day", "", "weekly class day (周五/周六/周日 or fri/sat/sun)")
	f.StringVar(&schedRule, "rule", "", "intensive work/rest rule (上N天休M天)")
	f.StringSliceVar(&schedBlackouts, "blackout", nil, "extra blackout date (repeatable)")
	f.BoolVar(&schedHolidays, "holidays", false, "also skip the stored holidays")
	_ = scheduleCmd.MarkFlagRequired("start")
	scheduleCmd.MarkFlagsMutuallyExclusive("day", "rule")
	rootCmd.AddCommand(scheduleCmd)
}

func scheduleRequest() (schedule.Request, error) {
	start, err := schedule.ParseDate(schedStart)
	if err != nil {
		return schedule.Request{}, err
	}
	blackouts, err := schedule.ParseBlackouts(schedBlackouts)
	if err != nil {
		return schedule.Request{}, err
	}
	req := schedule.Request{Start: start, TotalLessons: schedCount, Blackouts: blackouts}
	switch {
	case strings.TrimSpace(schedDay) != "":
		d, err := schedule.ParseWeekday(schedDay)
		if err != nil {
			return schedule.Request{}, err
		}
		req.Cadence = schedule.Weekly{Day: d}
	case strings.TrimSpace(schedRule) != "":
		c, err := schedule.ParseRule(schedRule)
		if err != nil {
			return schedule.Request{}, err
		}
		req.Cadence = c
	}
	return req, nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	req, err := scheduleRequest()
	if err != nil {
		return err
	}
	var out schedule.Schedule
	if schedHolidays {
		err = withApp(cmd, func(ctx context.Context, a *app.App) error {
			out, err = a.Registry().PreviewSchedule(req)
			return err
		})
	} else {
		out, err = schedule.Generate(req)
	}
	if err != nil {
		return err
	}

	cadence := "every day"
	if req.Cadence != nil {
		cadence = req.Cadence.String()
	}
	return emit(out.Strings(), func(w io.Writer) {
		rows := make([][]string, len(out))
		for i, d := range out {
			rows[i] = []string{itoa(i + 1), schedule.FormatDate(d), schedule.WeekdayLabel(d.Weekday())}
		}
		fmt.Fprintf(w, "%d lessons, %s\n", len(out), cadence)
		table(w, []string{"#", "DATE", "DAY"}, rows)
	})
}
