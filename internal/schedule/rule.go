package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reRuleZH = regexp.MustCompile(`上\s*(\d+)\s*天\s*休\s*(\d+)\s*天`)
	reRuleEN = regexp.MustCompile(`(?i)^work\s+(\d+)\s+days?\s*,?\s*rest\s+(\d+)\s+days?$`)
)

var weekdayAliases = map[string]time.Weekday{
	"周五": time.Friday, "星期五": time.Friday, "fri": time.Friday, "friday": time.Friday,
	"周六": time.Saturday, "星期六": time.Saturday, "sat": time.Saturday, "saturday": time.Saturday,
	"周日": time.Sunday, "星期日": time.Sunday, "星期天": time.Sunday, "sun": time.Sunday, "sunday": time.Sunday,
}

// ParseWeekday parses a weekly class-day label. Only Friday, Saturday and Sunday
// are valid class days.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if d, ok := weekdayAliases[key]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("%w: unknown class day %q (want 周五/周六/周日 or fri/sat/sun)", ErrInvalidCadence, s)
}

// WeekdayLabel returns the display label of a class day (周五/周六/周日).
func WeekdayLabel(d time.Weekday) string {
	switch d {
	case time.Friday:
		return "周五"
	case time.Saturday:
		return "周六"
	case time.Sunday:
		return "周日"
	default:
		return d.String()
	}
}

// ParseRule parses an intensive rule: "上6天休1天" or "work 6 days rest 1 day".
func ParseRule(s string) (Intensive, error) {
	s = strings.TrimSpace(s)
	m := reRuleZH.FindStringSubmatch(s)
	if m == nil {
		m = reRuleEN.FindStringSubmatch(s)
	}
	if m == nil {
		return Intensive{}, fmt.Errorf("%w: unrecognized rule %q", ErrInvalidCadence, s)
	}

	work, err := strconv.Atoi(m[1])
	if err != nil {
		return Intensive{}, fmt.Errorf("%w: work days %q: %v", ErrInvalidCadence, m[1], err)
	}
	rest, err := strconv.Atoi(m[2])
	if err != nil {
		return Intensive{}, fmt.Errorf("%w: rest days %q: %v", ErrInvalidCadence, m[2], err)
	}

	c := Intensive{WorkDays: work, RestDays: rest}
	if err := c.Validate(); err != nil {
		return Intensive{}, err
	}
	return c, nil
}

// RuleOrDefault parses s, falling back to DefaultIntensive() when s is empty or
// cannot be parsed.
func RuleOrDefault(s string) Intensive {
	c, err := ParseRule(s)
	if err != nil {
		return DefaultIntensive()
	}
	return c
}

// FormatRule renders c in the stored form "上{N}天休{M}天".
func FormatRule(c Intensive) string {
	return "上" + strconv.Itoa(c.WorkDays) + "天休" + strconv.Itoa(c.RestDays) + "天"
}
