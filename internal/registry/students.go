package registry

import (
	"context"
	"slices"
	"strings"

	"eduadmin/internal/eventbus"
	"eduadmin/internal/model"
	logx "eduadmin/pkg/logx"
)

// StudentFilter selects students. Zero value matches all.
type StudentFilter struct {
	Query    string // name substring, case-insensitive
	Enrolled *bool
}

func (f StudentFilter) match(s model.Student) bool {
	if q := strings.TrimSpace(f.Query); q != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(q)) {
		return false
	}
	if f.Enrolled != nil && s.IsEnrolled != *f.Enrolled {
		return false
	}
	return true
}

func (r *Registry) Students(f StudentFilter) []model.Student {
	var out []model.Student
	r.view(func(d *model.Data) {
		for _, s := range d.Students {
			if f.match(s) {
				out = append(out, s)
			}
		}
	})
	return out
}

func (r *Registry) Student(id string) (model.Student, error) {
	var (
		out model.Student
		ok  bool
	)
	r.view(func(d *model.Data) {
		var p *model.Student
		if p, ok = d.Student(id); ok {
			out = *p
		}
	})
	if !ok {
		return model.Student{}, notFound("student", id)
	}
	return out, nil
}

// AddStudent creates a student. Enrollment follows course rosters, so a new
// student starts unenrolled.
func (r *Registry) AddStudent(ctx context.Context, in StudentInput) (model.Student, error) {
	if err := r.check(in); err != nil {
		return model.Student{}, err
	}
	s := model.Student{
		ID:     r.newID(),
		Name:   strings.TrimSpace(in.Name),
		Grade:  strings.TrimSpace(in.Grade),
		Remark: strings.TrimSpace(in.Remark),
	}
	err := r.mutate(ctx, change{eventbus.StudentChanged, "add", s.ID}, func(d *model.Data) error {
		d.Students = append(d.Students, s)
		return nil
	})
	if err != nil {
		return model.Student{}, err
	}
	r.log.Info("student added", logx.String("id", s.ID), logx.String("name", s.Name))
	return s, nil
}

func (r *Registry) UpdateStudent(ctx context.Context, id string, in StudentInput) (model.Student, error) {
	if err := r.check(in); err != nil {
		return model.Student{}, err
	}
	var out model.Student
	err := r.mutate(ctx, change{eventbus.StudentChanged, "update", id}, func(d *model.Data) error {
		s, ok := d.Student(id)
		if !ok {
			return notFound("student", id)
		}
		s.Name = strings.TrimSpace(in.Name)
		s.Grade = strings.TrimSpace(in.Grade)
		s.Remark = strings.TrimSpace(in.Remark)
		out = *s
		return nil
	})
	return out, err
}

// DeleteStudent removes the student, takes them off every roster and drops
// their attendance, service and renewal records.
func (r *Registry) DeleteStudent(ctx context.Context, id string) error {
	return r.mutate(ctx, change{eventbus.StudentChanged, "delete", id}, func(d *model.Data) error {
		i := d.StudentIndex(id)
		if i < 0 {
			return notFound("student", id)
		}
		d.Students = slices.Delete(d.Students, i, i+1)
		for ci := range d.Courses {
			c := &d.Courses[ci]
			c.EnrolledStudents = slices.DeleteFunc(c.EnrolledStudents, func(s string) bool { return s == id })
		}
		for _, m := range d.Attendance {
			delete(m, id)
		}
		for _, m := range d.ServiceRecords {
			delete(m, id)
		}
		for _, m := range d.Renewals {
			delete(m, id)
		}
		d.RecomputeEnrollment()
		return nil
	})
}
