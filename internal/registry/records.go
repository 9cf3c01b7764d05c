package registry

import (
	"context"
	"fmt"
	"strings"

	"eduadmin/internal/eventbus"
	"eduadmin/internal/model"
)

// lessonRef checks that course and student exist, the student is on the
// roster and lesson is a valid index (lesson < 0 skips the index check).
func lessonRef(d *model.Data, courseID, studentID string, lesson int) (*model.Course, error) {
	c, ok := d.Course(courseID)
	if !ok {
		return nil, notFound("course", courseID)
	}
	if d.StudentIndex(studentID) < 0 {
		return nil, notFound("student", studentID)
	}
	if !c.HasStudent(studentID) {
		return nil, fmt.Errorf("student %q not on course %q: %w", studentID, courseID, ErrNotFound)
	}
	if lesson >= len(c.Schedule) {
		return nil, fmt.Errorf("lesson %d of course %q (has %d): %w", lesson+1, courseID, len(c.Schedule), ErrNotFound)
	}
	return c, nil
}

func recordTarget(courseID, studentID string, lesson int) string {
	if lesson < 0 {
		return courseID + "/" + studentID
	}
	return fmt.Sprintf("%s/%s/%d", courseID, studentID, lesson)
}

// ---- Attendance ----

// MarkAttendance sets the status of one lesson (zero-based). An empty status
// clears the explicit mark.
func (r *Registry) MarkAttendance(ctx context.Context, courseID, studentID string, lesson int, status model.AttendanceStatus) error {
	if lesson < 0 {
		return invalid("lesson", "must be >= 1")
	}
	ch := change{eventbus.RecordChanged, "attendance", recordTarget(courseID, studentID, lesson)}
	return r.mutate(ctx, ch, func(d *model.Data) error {
		if _, err := lessonRef(d, courseID, studentID, lesson); err != nil {
			return err
		}
		setAttendance(d, courseID, studentID, lesson, status)
		return nil
	})
}

// MarkAttendanceBatch sets status on every lesson of the course for each
// student.
func (r *Registry) MarkAttendanceBatch(ctx context.Context, courseID string, studentIDs []string, status model.AttendanceStatus) error {
	return r.mutate(ctx, change{eventbus.RecordChanged, "attendance-batch", courseID}, func(d *model.Data) error {
		for _, sid := range studentIDs {
			c, err := lessonRef(d, courseID, sid, -1)
			if err != nil {
				return err
			}
			for i := range c.Schedule {
				setAttendance(d, courseID, sid, i, status)
			}
		}
		return nil
	})
}

func setAttendance(d *model.Data, courseID, studentID string, lesson int, status model.AttendanceStatus) {
	if status == "" {
		if m := d.Attendance[courseID][studentID]; m != nil {
			delete(m, lesson)
			if len(m) == 0 {
				delete(d.Attendance[courseID], studentID)
			}
		}
		return
	}
	byStudent := d.Attendance[courseID]
	if byStudent == nil {
		byStudent = map[string]map[int]model.AttendanceStatus{}
		d.Attendance[courseID] = byStudent
	}
	lessons := byStudent[studentID]
	if lessons == nil {
		lessons = map[int]model.AttendanceStatus{}
		byStudent[studentID] = lessons
	}
	lessons[lesson] = status
}

// AttendanceStatus returns the explicit status of a lesson, else present for
// lessons dated before today, else "" (not yet held).
func (r *Registry) AttendanceStatus(courseID, studentID string, lesson int) (model.AttendanceStatus, error) {
	if lesson < 0 {
		return "", invalid("lesson", "must be >= 1")
	}
	var (
		out model.AttendanceStatus
		err error
	)
	today := r.Today()
	r.view(func(d *model.Data) {
		if _, err = lessonRef(d, courseID, studentID, lesson); err != nil {
			return
		}
		out = d.AttendanceOf(courseID, studentID, lesson, today)
	})
	return out, err
}

// AbsentCount counts explicit absences of a student across active courses.
func (r *Registry) AbsentCount(studentID string) int {
	n := 0
	r.view(func(d *model.Data) {
		for _, c := range d.Courses {
			if c.IsCompleted {
				continue
			}
			for _, s := range d.Attendance[c.ID][studentID] {
				if s == model.AttendanceAbsent {
					n++
				}
			}
		}
	})
	return n
}

// ---- Service notes ----

// SetServiceNote stores the note of one lesson. Empty text deletes it.
func (r *Registry) SetServiceNote(ctx context.Context, courseID, studentID string, lesson int, text string) error {
	if lesson < 0 {
		return invalid("lesson", "must be >= 1")
	}
	text = strings.TrimSpace(text)
	if len([]rune(text)) > 2000 {
		return invalid("note", "must be at most 2000 characters")
	}
	ch := change{eventbus.RecordChanged, "note", recordTarget(courseID, studentID, lesson)}
	return r.mutate(ctx, ch, func(d *model.Data) error {
		if _, err := lessonRef(d, courseID, studentID, lesson); err != nil {
			return err
		}
		if text == "" {
			if m := d.ServiceRecords[courseID][studentID]; m != nil {
				delete(m, lesson)
				if len(m) == 0 {
					delete(d.ServiceRecords[courseID], studentID)
				}
			}
			return nil
		}
		byStudent := d.ServiceRecords[courseID]
		if byStudent == nil {
			byStudent = map[string]map[int]string{}
			d.ServiceRecords[courseID] = byStudent
		}
		if byStudent[studentID] == nil {
			byStudent[studentID] = map[int]string{}
		}
		byStudent[studentID][lesson] = text
		return nil
	})
}

func (r *Registry) ServiceNote(courseID, studentID string, lesson int) string {
	var out string
	r.view(func(d *model.Data) { out = d.ServiceRecords[courseID][studentID][lesson] })
	return out
}

// ---- Renewals ----

// Renewal returns the renewal record; a missing status reads as not-renewed.
func (r *Registry) Renewal(courseID, studentID string) model.Renewal {
	var out model.Renewal
	r.view(func(d *model.Data) { out = d.Renewals[courseID][studentID] })
	if out.Status == "" {
		out.Status = model.RenewalNotRenewed
	}
	return out
}

// SetRenewalStatus sets the status. An empty status clears it, and the record
// goes away once it holds nothing.
func (r *Registry) SetRenewalStatus(ctx context.Context, courseID, studentID string, status model.RenewalStatus) error {
	return r.renewal(ctx, courseID, studentID, "renewal", func(rn *model.Renewal) { rn.Status = status })
}

func (r *Registry) SetRenewalRemark(ctx context.Context, courseID, studentID, remark string) error {
	remark = strings.TrimSpace(remark)
	if len([]rune(remark)) > 500 {
		return invalid("remark", "must be at most 500 characters")
	}
	return r.renewal(ctx, courseID, studentID, "renewal-remark", func(rn *model.Renewal) { rn.Remark = remark })
}

func (r *Registry) renewal(ctx context.Context, courseID, studentID, action string, fn func(*model.Renewal)) error {
	ch := change{eventbus.RecordChanged, action, recordTarget(courseID, studentID, -1)}
	return r.mutate(ctx, ch, func(d *model.Data) error {
		if _, err := lessonRef(d, courseID, studentID, -1); err != nil {
			return err
		}
		byStudent := d.Renewals[courseID]
		if byStudent == nil {
			byStudent = map[string]model.Renewal{}
			d.Renewals[courseID] = byStudent
		}
		rn := byStudent[studentID]
		fn(&rn)
		if rn == (model.Renewal{}) {
			delete(byStudent, studentID)
			if len(byStudent) == 0 {
				delete(d.Renewals, courseID)
			}
			return nil
		}
		byStudent[studentID] = rn
		return nil
	})
}
