package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidCadence      = errors.New("invalid cadence")
	ErrInvalidRequest      = errors.New("invalid schedule request")
	ErrScheduleUnreachable = errors.New("schedule unreachable")
)

// DateLayout is the ISO calendar date format used for persisted schedules.
const DateLayout = "2006-01-02"

// MaxLessons caps TotalLessons so the bounded walk stays small.
const MaxLessons = 5000

// MaxCycleDays caps each half of an intensive cycle so the walk bound cannot
// overflow.
const MaxCycleDays = 366

// Cadence describes which calendar days are eligible lesson days.
// Implementations are Weekly and Intensive.
type Cadence interface {
	// Kind is "weekly" or "intensive".
	Kind() string
	Validate() error
	String() string

	cadence()
}

// Weekly schedules one lesson per week on Day (Friday, Saturday or Sunday).
type Weekly struct {
	Day time.Weekday
}

func (Weekly) cadence()         {}
func (Weekly) Kind() string     { return "weekly" }
func (w Weekly) String() string { return "weekly " + WeekdayLabel(w.Day) }

func (w Weekly) Validate() error {
	switch w.Day {
	case time.Friday, time.Saturday, time.Sunday:
		return nil
	default:
		return fmt.Errorf("%w: weekday %d is not one of Fri/Sat/Sun", ErrInvalidCadence, int(w.Day))
	}
}

// Intensive schedules lessons on every day of a WorkDays stretch, then pauses for
// RestDays, cycling.
type Intensive struct {
	WorkDays int
	RestDays int
}

// DefaultIntensive is the cadence used when no rule is given: every day is a
// lesson day.
func DefaultIntensive() Intensive { return Intensive{WorkDays: 1, RestDays: 0} }

func (Intensive) cadence()         {}
func (Intensive) Kind() string     { return "intensive" }
func (c Intensive) String() string { return FormatRule(c) }

func (c Intensive) Validate() error {
	if c.WorkDays < 1 {
		return fmt.Errorf("%w: work days must be >= 1, got %d", ErrInvalidCadence, c.WorkDays)
	}
	if c.RestDays < 0 {
		return fmt.Errorf("%w: rest days must be >= 0, got %d", ErrInvalidCadence, c.RestDays)
	}
	if c.WorkDays > MaxCycleDays || c.RestDays > MaxCycleDays {
		return fmt.Errorf("%w: work and rest days must be <= %d, got %d/%d", ErrInvalidCadence, MaxCycleDays, c.WorkDays, c.RestDays)
	}
	return nil
}

// Request is the input of Generate.
//
// A nil Cadence means "no explicit rule" and behaves as DefaultIntensive().
type Request struct {
	Start        time.Time
	TotalLessons int
	Cadence      Cadence
	Blackouts    BlackoutSet
}

// Schedule is an ordered list of lesson dates (UTC midnight), strictly increasing.
type Schedule []time.Time

// Strings formats the schedule as ISO dates.
func (s Schedule) Strings() []string {
	out := make([]string, len(s))
	for i, d := range s {
		out[i] = FormatDate(d)
	}
	return out
}

// Last returns the final lesson date.
func (s Schedule) Last() (time.Time, bool) {
	if len(s) == 0 {
		return time.Time{}, false
	}
	return s[len(s)-1], true
}

// ---- Calendar dates ----

// Day truncates t to its calendar date, expressed as UTC midnight.
// The date is read in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// FormatDate renders the calendar date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return Day(t).Format(DateLayout) }

// ---- Blackouts ----

// BlackoutSet is a set of calendar dates on which no lesson may be scheduled.
// The zero value (nil) is an empty set.
type BlackoutSet map[time.Time]struct{}

func NewBlackoutSet(dates ...time.Time) BlackoutSet {
	b := make(BlackoutSet, len(dates))
	for _, d := range dates {
		b.Add(d)
	}
	return b
}

// ParseBlackouts builds a set from ISO date strings. Blank entries are skipped.
func ParseBlackouts(dates []string) (BlackoutSet, error) {
	b := make(BlackoutSet, len(dates))
	for _, s := range dates {
		if strings.TrimSpace(s) == "" {
			continue
		}
		d, err := ParseDate(s)
		if err != nil {
			return nil, err
		}
		b.Add(d)
	}
	return b, nil
}

func (b BlackoutSet) Add(t time.Time) { b[Day(t)] = struct{}{} }

func (b BlackoutSet) Has(t time.Time) bool {
	if b == nil {
		return false
	}
	_, ok := b[Day(t)]
	return ok
}

func (b BlackoutSet) Len() int { return len(b) }

// Merge returns a new set holding the dates of b and o.
func (b BlackoutSet) Merge(o BlackoutSet) BlackoutSet {
	out := make(BlackoutSet, len(b)+len(o))
	for d := range b {
		out[d] = struct{}{}
	}
	for d := range o {
		out[d] = struct{}{}
	}
	return out
}

// Sorted returns the dates in increasing order.
func (b BlackoutSet) Sorted() []time.Time {
	out := make([]time.Time, 0, len(b))
	for d := range b {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
