package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"eduadmin/internal/model"
)

// Courses tabulates courses with their roster names.
func Courses(d *model.Data, courses []model.Course) Table {
	t := Table{
		Sheet:   string(KindCourses),
		Headers: []string{"课程名称", "课程类型", "上课日/期数", "上课时间", "开始日期", "课时总数", "是否结课", "学生名单"},
	}
	for _, c := range courses {
		done := "否"
		if c.IsCompleted {
			done = "是"
		}
		t.Rows = append(t.Rows, []string{
			c.Name,
			c.Type.Label(),
			c.ClassDay,
			c.TimeSlot,
			c.StartDate,
			strconv.Itoa(c.TotalLessons),
			done,
			strings.Join(rosterNames(d, c), ", "),
		})
	}
	return t
}

// Attendance tabulates the effective attendance of every rostered student
// for every lesson of c as of today.
func Attendance(d *model.Data, c model.Course, today time.Time) Table {
	return perLesson(d, c, func(studentID string, i int) string {
		return d.AttendanceOf(c.ID, studentID, i, today).Label()
	})
}

// ServiceNotes tabulates the per-lesson service notes of c.
func ServiceNotes(d *model.Data, c model.Course) Table {
	return perLesson(d, c, func(studentID string, i int) string {
		return d.ServiceRecords[c.ID][studentID][i]
	})
}

// Renewals tabulates renewal status and remark per rostered student.
func Renewals(d *model.Data, c model.Course) Table {
	t := Table{Sheet: c.Name, Headers: []string{"学生姓名", "续费状态", "续费备注"}}
	for _, id := range c.EnrolledStudents {
		rn := d.Renewals[c.ID][id]
		status := rn.Status
		if status == "" {
			status = model.RenewalNotRenewed
		}
		t.Rows = append(t.Rows, []string{studentName(d, id), status.Label(), rn.Remark})
	}
	return t
}

func perLesson(d *model.Data, c model.Course, cell func(studentID string, i int) string) Table {
	t := Table{Sheet: c.Name, Headers: make([]string, 0, len(c.Schedule)+1)}
	t.Headers = append(t.Headers, "学生姓名")
	for i, date := range c.Schedule {
		t.Headers = append(t.Headers, fmt.Sprintf("第%d次课（%s）", i+1, date))
	}
	for _, id := range c.EnrolledStudents {
		row := make([]string, 0, len(c.Schedule)+1)
		row = append(row, studentName(d, id))
		for i := range c.Schedule {
			row = append(row, cell(id, i))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func rosterNames(d *model.Data, c model.Course) []string {
	out := make([]string, 0, len(c.EnrolledStudents))
	for _, id := range c.EnrolledStudents {
		if s, ok := d.Student(id); ok {
			out = append(out, s.Name)
		}
	}
	return out
}

func studentName(d *model.Data, id string) string {
	if s, ok := d.Student(id); ok {
		return s.Name
	}
	return id
}
