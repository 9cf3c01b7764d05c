package model

import (
	"fmt"
	"strings"
	"time"

	"eduadmin/internal/schedule"
)

// ---- Students ----

type Student struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Grade      string `json:"grade"`
	IsEnrolled bool   `json:"isEnrolled"`
	Remark     string `json:"remark,omitempty"`
}

// ---- Terms ----

type Term string

const (
	TermSpring Term = "spring"
	TermAutumn Term = "autumn"
	TermWinter Term = "winter"
	TermSummer Term = "summer"
)

var Terms = []Term{TermSpring, TermAutumn, TermWinter, TermSummer}

// Periods are the class-day labels of intensive (holiday) terms.
var Periods = []string{"一期", "二期", "三期"}

// ParseTerm accepts the stored value or its Chinese label.
func ParseTerm(s string) (Term, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spring", "春", "春季":
		return TermSpring, nil
	case "autumn", "fall", "秋", "秋季":
		return TermAutumn, nil
	case "winter", "寒", "寒假":
		return TermWinter, nil
	case "summer", "暑", "暑假":
		return TermSummer, nil
	}
	return "", fmt.Errorf("unknown course type %q (want spring/autumn/winter/summer)", s)
}

func (t Term) Valid() bool {
	switch t {
	case TermSpring, TermAutumn, TermWinter, TermSummer:
		return true
	}
	return false
}

// Weekly reports whether courses of this term meet once a week.
// Winter and summer courses use an intensive work/rest rule instead.
func (t Term) Weekly() bool { return t == TermSpring || t == TermAutumn }

func (t Term) Label() string {
	switch t {
	case TermSpring:
		return "春季"
	case TermAutumn:
		return "秋季"
	case TermWinter:
		return "寒假"
	case TermSummer:
		return "暑假"
	}
	return string(t)
}

func (t Term) Short() string {
	switch t {
	case TermSpring:
		return "春"
	case TermAutumn:
		return "秋"
	case TermWinter:
		return "寒"
	case TermSummer:
		return "暑"
	}
	return ""
}

// DefaultClassDay is the first class-day choice of a term.
func (t Term) DefaultClassDay() string {
	if t.Weekly() {
		return "周五"
	}
	return Periods[0]
}

// ---- Courses ----

type Course struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Type             Term     `json:"type"`
	ClassDay         string   `json:"上课Day"`
	HolidayRule      string   `json:"holidayRule,omitempty"`
	TimeSlot         string   `json:"timeSlot"`
	StartDate        string   `json:"startTime"`
	TotalLessons     int      `json:"totalLessons"`
	EnrolledStudents []string `json:"enrolledStudents"`
	IsCompleted      bool     `json:"isCompleted"`
	Schedule         []string `json:"schedule"`
}

// Cadence returns the typed cadence of the course: the class weekday for weekly
// terms, the work/rest rule (default 上1天休0天) for intensive terms.
func (c *Course) Cadence() (schedule.Cadence, error) {
	if c.Type.Weekly() {
		d, err := schedule.ParseWeekday(c.ClassDay)
		if err != nil {
			return nil, err
		}
		return schedule.Weekly{Day: d}, nil
	}
	return schedule.RuleOrDefault(c.HolidayRule), nil
}

// SlotID is the slot identifier of TimeSlot ("A" of "A 08:00").
func (c *Course) SlotID() string { return SlotID(c.TimeSlot) }

// SlotTime is the start time of TimeSlot ("08:00" of "A 08:00").
func (c *Course) SlotTime() string {
	_, after, ok := strings.Cut(strings.TrimSpace(c.TimeSlot), " ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(after)
}

// HasStudent reports whether studentID is on the roster.
func (c *Course) HasStudent(studentID string) bool {
	for _, id := range c.EnrolledStudents {
		if id == studentID {
			return true
		}
	}
	return false
}

// LessonDate parses the date of lesson i.
func (c *Course) LessonDate(i int) (time.Time, bool) {
	if i < 0 || i >= len(c.Schedule) {
		return time.Time{}, false
	}
	d, err := schedule.ParseDate(c.Schedule[i])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// LessonsDone counts scheduled lessons dated on or before today.
func (c *Course) LessonsDone(today time.Time) int {
	day := schedule.FormatDate(today)
	n := 0
	for _, d := range c.Schedule {
		if d <= day {
			n++
		}
	}
	return n
}

// SlotID extracts the identifier of a "ID HH:MM" slot label.
func SlotID(label string) string {
	id, _, _ := strings.Cut(strings.TrimSpace(label), " ")
	return id
}

// CourseName generates the conventional course name, e.g. 24年春周六A班.
func CourseName(term Term, year int, classDay, slotLabel string) string {
	return fmt.Sprintf("%02d年%s%s%s班", year%100, term.Short(), classDay, SlotID(slotLabel))
}

// ---- Per-lesson records ----

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceMakeup  AttendanceStatus = "makeup"
)

func ParseAttendance(s string) (AttendanceStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "出勤":
		return AttendancePresent, nil
	case "absent", "leave", "请假":
		return AttendanceAbsent, nil
	case "makeup", "已补":
		return AttendanceMakeup, nil
	}
	return "", fmt.Errorf("unknown attendance status %q (want present/absent/makeup)", s)
}

func (s AttendanceStatus) Label() string {
	switch s {
	case AttendancePresent:
		return "出勤"
	case AttendanceAbsent:
		return "请假"
	case AttendanceMakeup:
		return "已补"
	}
	return ""
}

type RenewalStatus string

const (
	RenewalRenewed    RenewalStatus = "renewed"
	RenewalNotRenewed RenewalStatus = "not-renewed"
	RenewalPending    RenewalStatus = "pending"
)

func ParseRenewal(s string) (RenewalStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "renewed", "已续费":
		return RenewalRenewed, nil
	case "not-renewed", "not_renewed", "未续费":
		return RenewalNotRenewed, nil
	case "pending", "待确认":
		return RenewalPending, nil
	}
	return "", fmt.Errorf("unknown renewal status %q (want renewed/not-renewed/pending)", s)
}

func (s RenewalStatus) Label() string {
	switch s {
	case RenewalRenewed:
		return "已续费"
	case RenewalNotRenewed:
		return "未续费"
	case RenewalPending:
		return "待确认"
	}
	return ""
}

type Renewal struct {
	Status RenewalStatus `json:"status,omitempty"`
	Remark string        `json:"remark,omitempty"`
}

// Lesson-keyed records: course ID → student ID → lesson index.
type (
	Attendance     map[string]map[string]map[int]AttendanceStatus
	ServiceRecords map[string]map[string]map[int]string
	Renewals       map[string]map[string]Renewal
)

// ---- Calendar ----

type Event struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	IsCourse bool   `json:"isCourse,omitempty"`
}

type Holiday struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Name string `json:"name"`
}

type TimeSlot struct {
	ID   string `json:"id"`
	Time string `json:"time"`
}

// Label renders the slot the way courses store it ("A 08:00").
func (s TimeSlot) Label() string { return s.ID + " " + s.Time }

// ---- Document ----

type Data struct {
	Students       []Student      `json:"students"`
	Courses        []Course       `json:"courses"`
	Attendance     Attendance     `json:"attendance"`
	ServiceRecords ServiceRecords `json:"serviceRecords"`
	Renewals       Renewals       `json:"renewals"`
	Events         []Event        `json:"events"`
	Holidays       []Holiday      `json:"holidays"`
	TimeSlots      []TimeSlot     `json:"timeSlots"`
}
