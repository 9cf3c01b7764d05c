package model

import (
	"fmt"
	"slices"
	"time"

	"eduadmin/internal/schedule"
)

// Default returns the initial document: sample students, one spring course
// starting today and the four standard time slots.
func Default(now time.Time) *Data {
	today := schedule.Day(now)
	slots := DefaultTimeSlots()

	course := Course{
		ID:               "1",
		Name:             CourseName(TermSpring, today.Year(), "周六", slots[0].Label()),
		Type:             TermSpring,
		ClassDay:         "周六",
		TimeSlot:         slots[0].Label(),
		StartDate:        schedule.FormatDate(today),
		TotalLessons:     15,
		EnrolledStudents: []string{"1", "2", "4"},
	}
	if sched, err := schedule.Generate(schedule.Request{
		Start:        today,
		TotalLessons: course.TotalLessons,
		Cadence:      schedule.Weekly{Day: time.Saturday},
	}); err == nil {
		course.Schedule = sched.Strings()
	}

	d := &Data{
		Students: []Student{
			{ID: "1", Name: "张三", Grade: "七", IsEnrolled: true, Remark: "学习认真"},
			{ID: "2", Name: "李四", Grade: "八", IsEnrolled: true, Remark: "成绩优异"},
			{ID: "3", Name: "王五", Grade: "九", IsEnrolled: false, Remark: "需要加强练习"},
			{ID: "4", Name: "赵六", Grade: "高一", IsEnrolled: true, Remark: "积极参与课堂"},
			{ID: "5", Name: "钱七", Grade: "高二", IsEnrolled: false, Remark: "基础扎实"},
			{ID: "6", Name: "孙八", Grade: "高三", IsEnrolled: false, Remark: "即将毕业"},
		},
		Courses:   []Course{course},
		TimeSlots: slots,
	}
	d.Normalize()
	return d
}

func DefaultTimeSlots() []TimeSlot {
	return []TimeSlot{
		{ID: "A", Time: "08:00"},
		{ID: "B", Time: "10:10"},
		{ID: "C", Time: "14:00"},
		{ID: "D", Time: "16:10"},
	}
}

// DefaultHolidays is the standard public-holiday list for year.
func DefaultHolidays(year int) []Holiday {
	days := []struct{ md, name string }{
		{"01-01", "元旦"},
		{"02-11", "春节"},
		{"02-12", "春节"},
		{"02-13", "春节"},
		{"04-04", "清明节"},
		{"05-01", "劳动节"},
		{"06-14", "端午节"},
		{"10-01", "国庆节"},
		{"10-02", "国庆节"},
		{"10-03", "国庆节"},
	}
	out := make([]Holiday, 0, len(days))
	for _, d := range days {
		date := fmt.Sprintf("%04d-%s", year, d.md)
		out = append(out, Holiday{ID: "holiday-" + date, Date: date, Name: d.name})
	}
	return out
}

// Normalize replaces nil collections so the document always serializes with
// empty arrays and objects.
func (d *Data) Normalize() {
	if d.Students == nil {
		d.Students = []Student{}
	}
	if d.Courses == nil {
		d.Courses = []Course{}
	}
	for i := range d.Courses {
		c := &d.Courses[i]
		if c.EnrolledStudents == nil {
			c.EnrolledStudents = []string{}
		}
		if c.Schedule == nil {
			c.Schedule = []string{}
		}
	}
	if d.Attendance == nil {
		d.Attendance = Attendance{}
	}
	if d.ServiceRecords == nil {
		d.ServiceRecords = ServiceRecords{}
	}
	if d.Renewals == nil {
		d.Renewals = Renewals{}
	}
	if d.Events == nil {
		d.Events = []Event{}
	}
	if d.Holidays == nil {
		d.Holidays = []Holiday{}
	}
	if d.TimeSlots == nil {
		d.TimeSlots = []TimeSlot{}
	}
}

// Clone returns a deep copy.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := &Data{
		Students:  slices.Clone(d.Students),
		Courses:   make([]Course, len(d.Courses)),
		Events:    slices.Clone(d.Events),
		Holidays:  slices.Clone(d.Holidays),
		TimeSlots: slices.Clone(d.TimeSlots),
	}
	for i, c := range d.Courses {
		c.EnrolledStudents = slices.Clone(c.EnrolledStudents)
		c.Schedule = slices.Clone(c.Schedule)
		out.Courses[i] = c
	}

	out.Attendance = make(Attendance, len(d.Attendance))
	for cid, byStudent := range d.Attendance {
		m := make(map[string]map[int]AttendanceStatus, len(byStudent))
		for sid, lessons := range byStudent {
			l := make(map[int]AttendanceStatus, len(lessons))
			for k, v := range lessons {
				l[k] = v
			}
			m[sid] = l
		}
		out.Attendance[cid] = m
	}

	out.ServiceRecords = make(ServiceRecords, len(d.ServiceRecords))
	for cid, byStudent := range d.ServiceRecords {
		m := make(map[string]map[int]string, len(byStudent))
		for sid, lessons := range byStudent {
			l := make(map[int]string, len(lessons))
			for k, v := range lessons {
				l[k] = v
			}
			m[sid] = l
		}
		out.ServiceRecords[cid] = m
	}

	out.Renewals = make(Renewals, len(d.Renewals))
	for cid, byStudent := range d.Renewals {
		m := make(map[string]Renewal, len(byStudent))
		for sid, r := range byStudent {
			m[sid] = r
		}
		out.Renewals[cid] = m
	}

	out.Normalize()
	return out
}

// ---- Lookups ----

func (d *Data) StudentIndex(id string) int {
	return slices.IndexFunc(d.Students, func(s Student) bool { return s.ID == id })
}

func (d *Data) CourseIndex(id string) int {
	return slices.IndexFunc(d.Courses, func(c Course) bool { return c.ID == id })
}

func (d *Data) Student(id string) (*Student, bool) {
	i := d.StudentIndex(id)
	if i < 0 {
		return nil, false
	}
	return &d.Students[i], true
}

func (d *Data) Course(id string) (*Course, bool) {
	i := d.CourseIndex(id)
	if i < 0 {
		return nil, false
	}
	return &d.Courses[i], true
}

// Blackouts returns the holiday registry as a blackout set. Malformed dates
// are skipped.
func (d *Data) Blackouts() schedule.BlackoutSet {
	b := schedule.NewBlackoutSet()
	for _, h := range d.Holidays {
		if t, err := schedule.ParseDate(h.Date); err == nil {
			b.Add(t)
		}
	}
	return b
}

// RecomputeEnrollment sets IsEnrolled on every student: true exactly when the
// student is on the roster of at least one active course.
func (d *Data) RecomputeEnrollment() {
	active := make(map[string]bool)
	for _, c := range d.Courses {
		if c.IsCompleted {
			continue
		}
		for _, id := range c.EnrolledStudents {
			active[id] = true
		}
	}
	for i := range d.Students {
		d.Students[i].IsEnrolled = active[d.Students[i].ID]
	}
}

// AttendanceOf returns the explicit attendance mark of a lesson, else present
// for lessons dated before today, else "" (not yet held).
func (d *Data) AttendanceOf(courseID, studentID string, lesson int, today time.Time) AttendanceStatus {
	if s, ok := d.Attendance[courseID][studentID][lesson]; ok {
		return s
	}
	c, ok := d.Course(courseID)
	if !ok {
		return ""
	}
	if date, ok := c.LessonDate(lesson); ok && date.Before(schedule.Day(today)) {
		return AttendancePresent
	}
	return ""
}
