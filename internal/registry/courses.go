package registry

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"eduadmin/internal/eventbus"
	"eduadmin/internal/model"
	"eduadmin/internal/schedule"
	logx "eduadmin/pkg/logx"
)

// Course status filter values.
const (
	StatusAll       = "all"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// CourseFilter selects courses. Zero value matches all.
type CourseFilter struct {
	Query     string     // name substring, case-insensitive
	Type      model.Term // empty matches every term
	Status    string     // all | active | completed
	StudentID string     // roster contains
}

func (f CourseFilter) match(c model.Course) bool {
	if q := strings.TrimSpace(f.Query); q != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(q)) {
		return false
	}
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	switch f.Status {
	case StatusActive:
		if c.IsCompleted {
			return false
		}
	case StatusCompleted:
		if !c.IsCompleted {
			return false
		}
	}
	if f.StudentID != "" && !c.HasStudent(f.StudentID) {
		return false
	}
	return true
}

func (r *Registry) Courses(f CourseFilter) []model.Course {
	var out []model.Course
	r.view(func(d *model.Data) {
		for _, c := range d.Courses {
			if f.match(c) {
				out = append(out, cloneCourse(c))
			}
		}
	})
	return out
}

func (r *Registry) Course(id string) (model.Course, error) {
	var (
		out model.Course
		ok  bool
	)
	r.view(func(d *model.Data) {
		var p *model.Course
		if p, ok = d.Course(id); ok {
			out = cloneCourse(*p)
		}
	})
	if !ok {
		return model.Course{}, notFound("course", id)
	}
	return out, nil
}

func cloneCourse(c model.Course) model.Course {
	c.EnrolledStudents = slices.Clone(c.EnrolledStudents)
	c.Schedule = slices.Clone(c.Schedule)
	return c
}

// AddCourse creates a course and generates its schedule around the holiday
// registry.
func (r *Registry) AddCourse(ctx context.Context, in CourseInput) (model.Course, error) {
	if err := r.check(in); err != nil {
		return model.Course{}, err
	}
	var out model.Course
	id := r.newID()
	err := r.mutate(ctx, change{eventbus.CourseChanged, "add", id}, func(d *model.Data) error {
		c := model.Course{ID: id}
		if err := r.applyCourseInput(d, &c, in); err != nil {
			return err
		}
		d.Courses = append(d.Courses, c)
		d.RecomputeEnrollment()
		out = cloneCourse(c)
		return nil
	})
	if err != nil {
		return model.Course{}, err
	}
	r.log.Info("course added", logx.String("id", out.ID), logx.String("name", out.Name),
		logx.Int("lessons", len(out.Schedule)))
	return out, nil
}

// UpdateCourse replaces the editable fields and regenerates the schedule.
// Records for lessons past the new schedule length are dropped.
func (r *Registry) UpdateCourse(ctx context.Context, id string, in CourseInput) (model.Course, error) {
	if err := r.check(in); err != nil {
		return model.Course{}, err
	}
	var out model.Course
	err := r.mutate(ctx, change{eventbus.CourseChanged, "update", id}, func(d *model.Data) error {
		c, ok := d.Course(id)
		if !ok {
			return notFound("course", id)
		}
		next := model.Course{ID: c.ID, IsCompleted: c.IsCompleted}
		if err := r.applyCourseInput(d, &next, in); err != nil {
			return err
		}
		*c = next
		trimRecords(d, id, len(c.Schedule))
		d.RecomputeEnrollment()
		out = cloneCourse(*c)
		return nil
	})
	return out, err
}

// CopyCourse duplicates a course's type, day, rule, slot, lesson count and
// roster into a new course.
func (r *Registry) CopyCourse(ctx context.Context, id string, opts CopyOptions) (model.Course, error) {
	if err := r.check(opts); err != nil {
		return model.Course{}, err
	}
	src, err := r.Course(id)
	if err != nil {
		return model.Course{}, err
	}
	start := opts.StartDate
	if start == "" {
		start = schedule.FormatDate(r.Today())
	}
	return r.AddCourse(ctx, CourseInput{
		Name:         opts.Name,
		Type:         string(src.Type),
		ClassDay:     src.ClassDay,
		HolidayRule:  src.HolidayRule,
		TimeSlot:     src.TimeSlot,
		StartDate:    start,
		TotalLessons: src.TotalLessons,
		Students:     src.EnrolledStudents,
	})
}

// DeleteCourse drops the course and all of its records.
func (r *Registry) DeleteCourse(ctx context.Context, id string) error {
	return r.mutate(ctx, change{eventbus.CourseChanged, "delete", id}, func(d *model.Data) error {
		i := d.CourseIndex(id)
		if i < 0 {
			return notFound("course", id)
		}
		d.Courses = slices.Delete(d.Courses, i, i+1)
		delete(d.Attendance, id)
		delete(d.ServiceRecords, id)
		delete(d.Renewals, id)
		d.RecomputeEnrollment()
		return nil
	})
}

func (r *Registry) SetCourseCompleted(ctx context.Context, id string, completed bool) error {
	return r.mutate(ctx, change{eventbus.CourseChanged, "complete", id}, func(d *model.Data) error {
		c, ok := d.Course(id)
		if !ok {
			return notFound("course", id)
		}
		c.IsCompleted = completed
		d.RecomputeEnrollment()
		return nil
	})
}

// ToggleCourseCompleted flips the completion flag and returns the new value.
func (r *Registry) ToggleCourseCompleted(ctx context.Context, id string) (bool, error) {
	var now bool
	err := r.mutate(ctx, change{eventbus.CourseChanged, "complete", id}, func(d *model.Data) error {
		c, ok := d.Course(id)
		if !ok {
			return notFound("course", id)
		}
		c.IsCompleted = !c.IsCompleted
		now = c.IsCompleted
		d.RecomputeEnrollment()
		return nil
	})
	return now, err
}

// SetRoster replaces the course roster.
func (r *Registry) SetRoster(ctx context.Context, id string, studentIDs []string) error {
	return r.roster(ctx, id, "roster", func(_ []string, d *model.Data) ([]string, error) {
		return resolveStudents(d, studentIDs)
	})
}

// EnrollStudents adds students to the roster; students already on it are kept.
func (r *Registry) EnrollStudents(ctx context.Context, id string, studentIDs ...string) error {
	return r.roster(ctx, id, "enroll", func(cur []string, d *model.Data) ([]string, error) {
		add, err := resolveStudents(d, studentIDs)
		if err != nil {
			return nil, err
		}
		for _, s := range add {
			if !slices.Contains(cur, s) {
				cur = append(cur, s)
			}
		}
		return cur, nil
	})
}

func (r *Registry) UnenrollStudent(ctx context.Context, id, studentID string) error {
	return r.roster(ctx, id, "unenroll", func(cur []string, _ *model.Data) ([]string, error) {
		if !slices.Contains(cur, studentID) {
			return nil, fmt.Errorf("student %q not on course %q: %w", studentID, id, ErrNotFound)
		}
		return slices.DeleteFunc(cur, func(s string) bool { return s == studentID }), nil
	})
}

func (r *Registry) roster(ctx context.Context, id, action string, fn func(cur []string, d *model.Data) ([]string, error)) error {
	return r.mutate(ctx, change{eventbus.CourseChanged, action, id}, func(d *model.Data) error {
		c, ok := d.Course(id)
		if !ok {
			return notFound("course", id)
		}
		next, err := fn(c.EnrolledStudents, d)
		if err != nil {
			return err
		}
		c.EnrolledStudents = next
		d.RecomputeEnrollment()
		return nil
	})
}

// RegenerateSchedules re-runs the generator for every course (or only the
// active ones) against the current holiday registry. It returns the number of
// courses whose schedule changed. Any generator error aborts the whole run.
func (r *Registry) RegenerateSchedules(ctx context.Context, onlyActive bool) (int, error) {
	changed := 0
	err := r.mutate(ctx, change{eventbus.ScheduleChanged, "regenerate", ""}, func(d *model.Data) error {
		changed = 0
		for i := range d.Courses {
			c := &d.Courses[i]
			if onlyActive && c.IsCompleted {
				continue
			}
			before := c.Schedule
			if err := r.generate(d, c); err != nil {
				return fmt.Errorf("course %q: %w", c.Name, err)
			}
			if !slices.Equal(before, c.Schedule) {
				changed++
				trimRecords(d, c.ID, len(c.Schedule))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("schedules regenerated", logx.Int("changed", changed), logx.Bool("only_active", onlyActive))
	return changed, nil
}

// Progress is the completed share of a course's lessons.
type Progress struct {
	Done    int     `json:"done"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// Progress counts lessons dated on or before today.
func (r *Registry) Progress(id string) (Progress, error) {
	c, err := r.Course(id)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{Done: c.LessonsDone(r.Today()), Total: len(c.Schedule)}
	if p.Total > 0 {
		p.Percent = float64(p.Done) * 100 / float64(p.Total)
	}
	return p, nil
}

// PreviewSchedule runs the generator with the holiday registry merged into
// req.Blackouts. Nothing is stored.
func (r *Registry) PreviewSchedule(req schedule.Request) (schedule.Schedule, error) {
	var holidays schedule.BlackoutSet
	r.view(func(d *model.Data) { holidays = d.Blackouts() })
	req.Blackouts = holidays.Merge(req.Blackouts)
	out, err := schedule.Generate(req)
	r.obs.ObserveSchedule(req.Cadence, err)
	return out, err
}

// applyCourseInput normalizes in onto c and generates the schedule.
func (r *Registry) applyCourseInput(d *model.Data, c *model.Course, in CourseInput) error {
	term, err := model.ParseTerm(in.Type)
	if err != nil {
		return invalid("type", "%v", err)
	}
	c.Type = term

	c.ClassDay = strings.TrimSpace(in.ClassDay)
	if c.ClassDay == "" {
		c.ClassDay = term.DefaultClassDay()
	}
	c.HolidayRule = ""
	if term.Weekly() {
		wd, err := schedule.ParseWeekday(c.ClassDay)
		if err != nil {
			return invalid("classDay", "%v", err)
		}
		c.ClassDay = schedule.WeekdayLabel(wd)
	} else {
		if !slices.Contains(model.Periods, c.ClassDay) {
			return invalid("classDay", "must be one of %s", strings.Join(model.Periods, "/"))
		}
		c.HolidayRule = strings.TrimSpace(in.HolidayRule)
		if c.HolidayRule == "" {
			c.HolidayRule = r.rule
		}
		rule, err := schedule.ParseRule(c.HolidayRule)
		if err != nil {
			return invalid("holidayRule", "%v", err)
		}
		c.HolidayRule = schedule.FormatRule(rule)
	}

	slot, ok := resolveSlot(d, in.TimeSlot)
	if !ok {
		return invalid("timeSlot", "unknown time slot %q", in.TimeSlot)
	}
	c.TimeSlot = slot.Label()

	start, _ := schedule.ParseDate(in.StartDate)
	c.StartDate = schedule.FormatDate(start)

	c.TotalLessons = in.TotalLessons
	if c.TotalLessons == 0 {
		c.TotalLessons = r.lessons
	}

	students, err := resolveStudents(d, in.Students)
	if err != nil {
		return err
	}
	c.EnrolledStudents = students

	c.Name = strings.TrimSpace(in.Name)
	if c.Name == "" {
		c.Name = model.CourseName(term, r.Today().Year(), c.ClassDay, c.TimeSlot)
	}
	return r.generate(d, c)
}

// generate fills c.Schedule from its cadence, start date and the holiday
// registry of d.
func (r *Registry) generate(d *model.Data, c *model.Course) error {
	cad, err := c.Cadence()
	if err != nil {
		r.obs.ObserveSchedule(nil, err)
		return err
	}
	start, err := schedule.ParseDate(c.StartDate)
	if err != nil {
		return invalid("startDate", "%v", err)
	}
	out, err := schedule.Generate(schedule.Request{
		Start:        start,
		TotalLessons: c.TotalLessons,
		Cadence:      cad,
		Blackouts:    d.Blackouts(),
	})
	r.obs.ObserveSchedule(cad, err)
	if err != nil {
		return err
	}
	c.Schedule = out.Strings()
	return nil
}

func resolveSlot(d *model.Data, v string) (model.TimeSlot, bool) {
	v = strings.TrimSpace(v)
	for _, s := range d.TimeSlots {
		if strings.EqualFold(s.ID, v) || s.Label() == v {
			return s, true
		}
	}
	return model.TimeSlot{}, false
}

// resolveStudents dedups ids and checks that each one exists.
func resolveStudents(d *model.Data, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		if d.StudentIndex(id) < 0 {
			return nil, notFound("student", id)
		}
		out = append(out, id)
	}
	return out, nil
}

// trimRecords drops per-lesson records at index >= n.
func trimRecords(d *model.Data, courseID string, n int) {
	for _, lessons := range d.Attendance[courseID] {
		for i := range lessons {
			if i >= n {
				delete(lessons, i)
			}
		}
	}
	for _, lessons := range d.ServiceRecords[courseID] {
		for i := range lessons {
			if i >= n {
				delete(lessons, i)
			}
		}
	}
}

// ---- Lessons ----

// Lesson is one scheduled meeting of a course.
type Lesson struct {
	Course model.Course `json:"course"`
	Index  int          `json:"index"` // zero-based
	Date   time.Time    `json:"date"`
}

// Number is the one-based lesson number.
func (l Lesson) Number() int { return l.Index + 1 }

// LessonsOn returns the lessons scheduled on date, ordered by slot time.
// Completed courses are included.
func (r *Registry) LessonsOn(date time.Time) []Lesson {
	day := schedule.FormatDate(date)
	var out []Lesson
	r.view(func(d *model.Data) {
		out = lessonsOn(d, day)
	})
	return out
}

func lessonsOn(d *model.Data, day string) []Lesson {
	var out []Lesson
	for _, c := range d.Courses {
		for i, s := range c.Schedule {
			if s != day {
				continue
			}
			t, _ := schedule.ParseDate(s)
			out = append(out, Lesson{Course: cloneCourse(c), Index: i, Date: t})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Course, out[j].Course
		if a.SlotTime() != b.SlotTime() {
			return a.SlotTime() < b.SlotTime()
		}
		return a.Name < b.Name
	})
	return out
}
