package registry

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"eduadmin/internal/eventbus"
	"eduadmin/internal/model"
	"eduadmin/internal/schedule"
	"eduadmin/internal/store"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) set(t *testing.T, day string) {
	t.Helper()
	d, err := schedule.ParseDate(day)
	if err != nil {
		t.Fatal(err)
	}
	c.now = d.Add(10 * time.Hour)
}

// newTestRegistry returns a registry over an empty memory store with "today"
// fixed at Wednesday 2024-01-03.
func newTestRegistry(t *testing.T) (*Registry, *store.Memory, *clock) {
	t.Helper()
	mem := store.NewMemory()
	clk := &clock{}
	clk.set(t, "2024-01-03")
	r, err := New(context.Background(), Options{Store: mem, Now: clk.Now, Location: time.UTC})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, mem, clk
}

func wantFields(t *testing.T, err error, fields ...string) {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	got := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		got[i] = f.Field
	}
	if !slices.Equal(got, fields) {
		t.Fatalf("invalid fields = %v, want %v", got, fields)
	}
}

func TestNewSeedsDefaults(t *testing.T) {
	t.Parallel()
	r, mem, _ := newTestRegistry(t)
	if got := len(r.Students(StudentFilter{})); got != 6 {
		t.Fatalf("students = %d, want 6", got)
	}
	c, err := r.Course("1")
	if err != nil {
		t.Fatalf("Course(1): %v", err)
	}
	if c.Name != "24年春周六A班" || c.Schedule[0] != "2024-01-06" || len(c.Schedule) != 15 {
		t.Fatalf("default course = %+v", c)
	}
	if _, ok, _ := mem.Load(context.Background()); !ok {
		t.Fatal("defaults were not saved")
	}

	// A second registry over the same store loads instead of seeding.
	r2, err := New(context.Background(), Options{Store: mem, Now: r.now, Location: time.UTC})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r2.AddStudent(context.Background(), StudentInput{Name: "周九"}); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	r3, _ := New(context.Background(), Options{Store: mem, Location: time.UTC})
	if got := len(r3.Students(StudentFilter{})); got != 7 {
		t.Fatalf("reloaded students = %d, want 7", got)
	}
}

func TestAddCourseWeekly(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	c, err := r.AddCourse(ctx, CourseInput{
		Type: "春季", ClassDay: "saturday", TimeSlot: "B", StartDate: "2024-01-03",
		TotalLessons: 3, Students: []string{"3", "3", ""},
	})
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	want := []string{"2024-01-06", "2024-01-13", "2024-01-20"}
	if !slices.Equal(c.Schedule, want) {
		t.Fatalf("Schedule = %v, want %v", c.Schedule, want)
	}
	if c.Name != "24年春周六B班" || c.ClassDay != "周六" || c.TimeSlot != "B 10:10" || c.HolidayRule != "" {
		t.Fatalf("course = %+v", c)
	}
	if !slices.Equal(c.EnrolledStudents, []string{"3"}) {
		t.Fatalf("roster = %v", c.EnrolledStudents)
	}
	if s, _ := r.Student("3"); !s.IsEnrolled {
		t.Fatal("student 3 should be enrolled")
	}

	if _, err := r.AddHoliday(ctx, "2024-01-13", "测试"); err != nil {
		t.Fatalf("AddHoliday: %v", err)
	}
	c, err = r.AddCourse(ctx, CourseInput{Type: "autumn", TimeSlot: "C", StartDate: "2024-01-06", TotalLessons: 3})
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	// Default weekly class day is Friday.
	want = []string{"2024-01-12", "2024-01-19", "2024-01-26"}
	if c.ClassDay != "周五" || !slices.Equal(c.Schedule, want) {
		t.Fatalf("course = %s %v, want 周五 %v", c.ClassDay, c.Schedule, want)
	}

	c, err = r.AddCourse(ctx, CourseInput{Type: "spring", ClassDay: "周六", TimeSlot: "A", StartDate: "2024-01-06", TotalLessons: 3})
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	want = []string{"2024-01-06", "2024-01-20", "2024-01-27"}
	if !slices.Equal(c.Schedule, want) {
		t.Fatalf("Schedule with holiday = %v, want %v", c.Schedule, want)
	}
}

func TestAddCourseRosterCleanup(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		students []string
		want     []string
	}{
		{name: "duplicates only", students: []string{"2", "2"}, want: []string{"2"}},
		{name: "padded duplicates", students: []string{" 4", "4 ", "4"}, want: []string{"4"}},
		{name: "blanks only", students: []string{"", "  "}, want: nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, _, _ := newTestRegistry(t)
			c, err := r.AddCourse(context.Background(), CourseInput{
				Type: "spring", ClassDay: "周六", TimeSlot: "A", StartDate: "2024-01-06",
				TotalLessons: 2, Students: tt.students,
			})
			if err != nil {
				t.Fatalf("AddCourse(%q): %v", tt.students, err)
			}
			if !slices.Equal(c.EnrolledStudents, tt.want) {
				t.Fatalf("roster = %v, want %v", c.EnrolledStudents, tt.want)
			}
		})
	}
}

func TestAddCourseIntensive(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	c, err := r.AddCourse(ctx, CourseInput{Type: "winter", TimeSlot: "A 08:00", StartDate: "2024-01-03", TotalLessons: 8})
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	want := []string{
		"2024-01-03", "2024-01-04", "2024-01-05", "2024-01-06", "2024-01-07", "2024-01-08",
		"2024-01-10", "2024-01-11",
	}
	if c.ClassDay != "一期" || c.HolidayRule != "上6天休1天" || !slices.Equal(c.Schedule, want) {
		t.Fatalf("course = %s %s %v, want 一期 上6天休1天 %v", c.ClassDay, c.HolidayRule, c.Schedule, want)
	}
	if c.Name != "24年寒一期A班" {
		t.Fatalf("Name = %q", c.Name)
	}

	c, err = r.AddCourse(ctx, CourseInput{
		Type: "summer", ClassDay: "二期", HolidayRule: "work 2 days rest 1 days",
		TimeSlot: "D", StartDate: "2024-01-03",
	})
	if err != nil {
		t.Fatalf("AddCourse: %v", err)
	}
	if c.HolidayRule != "上2天休1天" || c.TotalLessons != 15 || len(c.Schedule) != 15 {
		t.Fatalf("course = %+v", c)
	}
	if c.Schedule[2] != "2024-01-06" {
		t.Fatalf("third lesson = %s, want 2024-01-06", c.Schedule[2])
	}
}

func TestAddCourseRejectsBadInput(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	base := CourseInput{Type: "spring", TimeSlot: "A", StartDate: "2024-01-03"}

	tests := []struct {
		name   string
		mutate func(in *CourseInput)
		fields []string
	}{
		{name: "missing type", mutate: func(in *CourseInput) { in.Type = "" }, fields: []string{"type"}},
		{name: "bad date", mutate: func(in *CourseInput) { in.StartDate = "2024-13-01" }, fields: []string{"startDate"}},
		{name: "too many lessons", mutate: func(in *CourseInput) { in.TotalLessons = 5001 }, fields: []string{"totalLessons"}},
		{name: "unknown type", mutate: func(in *CourseInput) { in.Type = "monsoon" }, fields: []string{"type"}},
		{name: "unknown slot", mutate: func(in *CourseInput) { in.TimeSlot = "Z" }, fields: []string{"timeSlot"}},
		{name: "bad weekday", mutate: func(in *CourseInput) { in.ClassDay = "someday" }, fields: []string{"classDay"}},
		{name: "thursday", mutate: func(in *CourseInput) { in.ClassDay = "周四" }, fields: []string{"classDay"}},
		{name: "bad period", mutate: func(in *CourseInput) { in.Type = "winter"; in.ClassDay = "周六" }, fields: []string{"classDay"}},
		{name: "bad rule", mutate: func(in *CourseInput) { in.Type = "winter"; in.HolidayRule = "上0天休1天" }, fields: []string{"holidayRule"}},
	}
	for _, tt := range tests {
		in := base
		tt.mutate(&in)
		_, err := r.AddCourse(ctx, in)
		if err == nil {
			t.Fatalf("%s: AddCourse succeeded", tt.name)
		}
		wantFields(t, err, tt.fields...)
	}

	in := base
	in.Students = []string{"nobody"}
	if _, err := r.AddCourse(ctx, in); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown student error = %v, want ErrNotFound", err)
	}

	if got := len(r.Courses(CourseFilter{})); got != 1 {
		t.Fatalf("courses = %d, want only the default", got)
	}
}

func TestUpdateCourseRegeneratesAndTrims(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.MarkAttendance(ctx, "1", "1", 14, model.AttendanceAbsent); err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if err := r.SetServiceNote(ctx, "1", "1", 2, "带作业本"); err != nil {
		t.Fatalf("SetServiceNote: %v", err)
	}
	c, err := r.UpdateCourse(ctx, "1", CourseInput{
		Name: "春季提高班", Type: "spring", ClassDay: "周日", TimeSlot: "A",
		StartDate: "2024-01-03", TotalLessons: 10, Students: []string{"1", "5"},
	})
	if err != nil {
		t.Fatalf("UpdateCourse: %v", err)
	}
	if c.Name != "春季提高班" || c.Schedule[0] != "2024-01-07" || len(c.Schedule) != 10 {
		t.Fatalf("updated course = %+v", c)
	}
	snap := r.Snapshot()
	if _, ok := snap.Attendance["1"]["1"][14]; ok {
		t.Fatal("attendance past the new schedule length should be dropped")
	}
	if snap.ServiceRecords["1"]["1"][2] != "带作业本" {
		t.Fatal("notes within range should be kept")
	}
	for id, want := range map[string]bool{"1": true, "2": false, "4": false, "5": true} {
		if s, _ := r.Student(id); s.IsEnrolled != want {
			t.Fatalf("student %s IsEnrolled = %v, want %v", id, s.IsEnrolled, want)
		}
	}
	if _, err := r.UpdateCourse(ctx, "missing", CourseInput{Type: "spring", TimeSlot: "A", StartDate: "2024-01-03"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateCourse(missing) = %v, want ErrNotFound", err)
	}
}

func TestCopyDeleteAndComplete(t *testing.T) {
	t.Parallel()
	r, _, clk := newTestRegistry(t)
	ctx := context.Background()

	clk.set(t, "2024-03-01")
	cp, err := r.CopyCourse(ctx, "1", CopyOptions{})
	if err != nil {
		t.Fatalf("CopyCourse: %v", err)
	}
	if cp.ID == "1" || cp.StartDate != "2024-03-01" || cp.Schedule[0] != "2024-03-02" {
		t.Fatalf("copy = %+v", cp)
	}
	if cp.TimeSlot != "A 08:00" || !slices.Equal(cp.EnrolledStudents, []string{"1", "2", "4"}) || cp.TotalLessons != 15 {
		t.Fatalf("copy did not keep slot/roster/lessons: %+v", cp)
	}

	if err := r.MarkAttendance(ctx, "1", "2", 0, model.AttendanceMakeup); err != nil {
		t.Fatal(err)
	}
	if err := r.SetRenewalStatus(ctx, "1", "2", model.RenewalRenewed); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteCourse(ctx, "1"); err != nil {
		t.Fatalf("DeleteCourse: %v", err)
	}
	snap := r.Snapshot()
	if _, ok := snap.Attendance["1"]; ok {
		t.Fatal("attendance of deleted course kept")
	}
	if _, ok := snap.Renewals["1"]; ok {
		t.Fatal("renewals of deleted course kept")
	}
	if err := r.DeleteCourse(ctx, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second DeleteCourse = %v, want ErrNotFound", err)
	}

	done, err := r.ToggleCourseCompleted(ctx, cp.ID)
	if err != nil || !done {
		t.Fatalf("ToggleCourseCompleted = %v, %v", done, err)
	}
	if s, _ := r.Student("1"); s.IsEnrolled {
		t.Fatal("students of completed courses are not enrolled")
	}
	if got := r.Courses(CourseFilter{Status: StatusActive}); len(got) != 0 {
		t.Fatalf("active courses = %v", got)
	}
	if err := r.SetCourseCompleted(ctx, cp.ID, false); err != nil {
		t.Fatal(err)
	}
	if s, _ := r.Student("1"); !s.IsEnrolled {
		t.Fatal("reopened course should enroll its students")
	}
}

func TestRosterOperations(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.EnrollStudents(ctx, "1", "3", "1"); err != nil {
		t.Fatalf("EnrollStudents: %v", err)
	}
	c, _ := r.Course("1")
	if !slices.Equal(c.EnrolledStudents, []string{"1", "2", "4", "3"}) {
		t.Fatalf("roster = %v", c.EnrolledStudents)
	}
	if err := r.UnenrollStudent(ctx, "1", "2"); err != nil {
		t.Fatalf("UnenrollStudent: %v", err)
	}
	if err := r.UnenrollStudent(ctx, "1", "2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second UnenrollStudent = %v, want ErrNotFound", err)
	}
	if err := r.SetRoster(ctx, "1", []string{"6"}); err != nil {
		t.Fatalf("SetRoster: %v", err)
	}
	enrolled := true
	got := r.Students(StudentFilter{Enrolled: &enrolled})
	if len(got) != 1 || got[0].ID != "6" {
		t.Fatalf("enrolled students = %+v", got)
	}
	if got := r.Courses(CourseFilter{StudentID: "6"}); len(got) != 1 {
		t.Fatalf("courses of student 6 = %d", len(got))
	}
}

func TestStudentsCRUD(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.AddStudent(ctx, StudentInput{Name: "  "}); err == nil {
		t.Fatal("blank name accepted")
	} else {
		wantFields(t, err, "name")
	}
	s, err := r.AddStudent(ctx, StudentInput{Name: " 周九 ", Grade: "七"})
	if err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	if s.Name != "周九" || s.ID == "" || s.IsEnrolled {
		t.Fatalf("student = %+v", s)
	}
	if got := r.Students(StudentFilter{Query: "九"}); len(got) != 1 {
		t.Fatalf("query match = %d", len(got))
	}
	if _, err := r.UpdateStudent(ctx, s.ID, StudentInput{Name: "周久", Grade: "八"}); err != nil {
		t.Fatalf("UpdateStudent: %v", err)
	}
	if got, _ := r.Student(s.ID); got.Grade != "八" {
		t.Fatalf("grade = %q", got.Grade)
	}

	if err := r.MarkAttendance(ctx, "1", "1", 0, model.AttendanceAbsent); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteStudent(ctx, "1"); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}
	c, _ := r.Course("1")
	if c.HasStudent("1") {
		t.Fatal("deleted student still on roster")
	}
	if _, ok := r.Snapshot().Attendance["1"]["1"]; ok {
		t.Fatal("deleted student's attendance kept")
	}
	if _, err := r.Student("1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Student(deleted) = %v", err)
	}
}

func TestSaveFailureKeepsState(t *testing.T) {
	t.Parallel()
	r, mem, _ := newTestRegistry(t)
	ctx := context.Background()

	mem.FailSave = errors.New("disk full")
	if _, err := r.AddStudent(ctx, StudentInput{Name: "周九"}); err == nil {
		t.Fatal("AddStudent succeeded with failing store")
	}
	if got := len(r.Students(StudentFilter{})); got != 6 {
		t.Fatalf("students after failed save = %d, want 6", got)
	}
	entries, _ := mem.RecentAudit(ctx, 1)
	if len(entries) != 1 || entries[0].OK || entries[0].Error != "disk full" {
		t.Fatalf("audit = %+v", entries)
	}

	mem.FailSave = nil
	if _, err := r.AddStudent(ctx, StudentInput{Name: "周九"}); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	entries, _ = mem.RecentAudit(ctx, 1)
	if len(entries) != 1 || !entries[0].OK || entries[0].Action != "student.changed.add" {
		t.Fatalf("audit = %+v", entries)
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ch, unsub := r.Bus().Subscribe(8)
	defer unsub()

	s, err := r.AddStudent(context.Background(), StudentInput{Name: "周九"})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-ch:
		if e.Type != eventbus.StudentChanged || e.Action != "add" || e.Target != s.ID {
			t.Fatalf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	// Rejected input publishes nothing.
	_, _ = r.AddStudent(context.Background(), StudentInput{})
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestAttendance(t *testing.T) {
	t.Parallel()
	r, _, clk := newTestRegistry(t)
	ctx := context.Background()

	if st, err := r.AttendanceStatus("1", "1", 0); err != nil || st != "" {
		t.Fatalf("future lesson status = %q, %v; want none", st, err)
	}
	clk.set(t, "2024-01-10")
	if st, _ := r.AttendanceStatus("1", "1", 0); st != model.AttendancePresent {
		t.Fatalf("past lesson status = %q, want present", st)
	}
	if st, _ := r.AttendanceStatus("1", "1", 1); st != "" {
		t.Fatalf("lesson on 01-13 status = %q, want none", st)
	}

	if err := r.MarkAttendance(ctx, "1", "1", 0, model.AttendanceAbsent); err != nil {
		t.Fatal(err)
	}
	if st, _ := r.AttendanceStatus("1", "1", 0); st != model.AttendanceAbsent {
		t.Fatalf("marked status = %q", st)
	}
	if n := r.AbsentCount("1"); n != 1 {
		t.Fatalf("AbsentCount = %d, want 1", n)
	}
	if err := r.MarkAttendance(ctx, "1", "1", 0, ""); err != nil {
		t.Fatal(err)
	}
	if st, _ := r.AttendanceStatus("1", "1", 0); st != model.AttendancePresent {
		t.Fatalf("cleared status = %q, want present", st)
	}

	if err := r.MarkAttendanceBatch(ctx, "1", []string{"2", "4"}, model.AttendanceAbsent); err != nil {
		t.Fatalf("MarkAttendanceBatch: %v", err)
	}
	if n := r.AbsentCount("4"); n != 15 {
		t.Fatalf("AbsentCount(4) = %d, want 15", n)
	}

	for name, err := range map[string]error{
		"lesson out of range": r.MarkAttendance(ctx, "1", "1", 15, model.AttendancePresent),
		"not on roster":       r.MarkAttendance(ctx, "1", "3", 0, model.AttendancePresent),
		"unknown course":      r.MarkAttendance(ctx, "9", "1", 0, model.AttendancePresent),
		"batch not on roster": r.MarkAttendanceBatch(ctx, "1", []string{"3"}, model.AttendancePresent),
	} {
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: error = %v, want ErrNotFound", name, err)
		}
	}
	if err := r.MarkAttendance(ctx, "1", "1", -1, model.AttendancePresent); err == nil {
		t.Fatal("negative lesson accepted")
	}
}

func TestNotesAndRenewals(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.SetServiceNote(ctx, "1", "2", 3, " 迟到十分钟 "); err != nil {
		t.Fatal(err)
	}
	if got := r.ServiceNote("1", "2", 3); got != "迟到十分钟" {
		t.Fatalf("note = %q", got)
	}
	if err := r.SetServiceNote(ctx, "1", "2", 3, ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Snapshot().ServiceRecords["1"]["2"]; ok {
		t.Fatal("empty note should delete the record")
	}

	if got := r.Renewal("1", "2"); got.Status != model.RenewalNotRenewed {
		t.Fatalf("default renewal = %+v", got)
	}
	if err := r.SetRenewalStatus(ctx, "1", "2", model.RenewalPending); err != nil {
		t.Fatal(err)
	}
	if err := r.SetRenewalRemark(ctx, "1", "2", "下周答复"); err != nil {
		t.Fatal(err)
	}
	if got := r.Renewal("1", "2"); got.Status != model.RenewalPending || got.Remark != "下周答复" {
		t.Fatalf("renewal = %+v", got)
	}
	if err := r.SetRenewalStatus(ctx, "1", "2", ""); err != nil {
		t.Fatal(err)
	}
	if got := r.Snapshot().Renewals["1"]["2"]; got.Status != "" || got.Remark != "下周答复" {
		t.Fatalf("renewal after clearing status = %+v", got)
	}
	if err := r.SetRenewalRemark(ctx, "1", "2", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Snapshot().Renewals["1"]; ok {
		t.Fatal("empty renewal should be removed")
	}
	if err := r.SetRenewalStatus(ctx, "1", "3", model.RenewalRenewed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("renewal for student off roster = %v", err)
	}
}

func TestHolidaysAndRegenerate(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.AddHoliday(ctx, "2024-01-20", "调休"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddHoliday(ctx, "2024-01-20", "重复"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate holiday = %v, want ErrConflict", err)
	}
	if _, err := r.AddHoliday(ctx, "20240120", "x"); err == nil {
		t.Fatal("malformed date accepted")
	}

	seeded, err := r.SeedHolidays(ctx, 2024)
	if err != nil {
		t.Fatalf("SeedHolidays: %v", err)
	}
	if len(seeded) != 10 {
		t.Fatalf("seeded = %d, want 10", len(seeded))
	}
	// Seeding replaces the year, including the manual entry.
	hs := r.Holidays(2024)
	if len(hs) != 10 || hs[0].Date != "2024-01-01" || hs[0].Name != "元旦" {
		t.Fatalf("holidays = %+v", hs)
	}
	if len(r.Holidays(2025)) != 0 {
		t.Fatal("no 2025 holidays expected")
	}

	if n, err := r.RegenerateSchedules(ctx, true); err != nil || n != 0 {
		t.Fatalf("RegenerateSchedules = %d, %v; want 0 changes", n, err)
	}
	if _, err := r.AddHoliday(ctx, "2024-01-20", "调休"); err != nil {
		t.Fatal(err)
	}
	if !r.Blackouts().Has(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("Blackouts missing 2024-01-20")
	}
	c, _ := r.Course("1")
	if c.Schedule[2] != "2024-01-20" {
		t.Fatalf("schedule changed before regenerate: %v", c.Schedule)
	}
	if n, err := r.RegenerateSchedules(ctx, false); err != nil || n != 1 {
		t.Fatalf("RegenerateSchedules = %d, %v; want 1 change", n, err)
	}
	c, _ = r.Course("1")
	if c.Schedule[2] != "2024-01-27" || c.Schedule[14] != "2024-04-20" {
		t.Fatalf("regenerated schedule = %v", c.Schedule)
	}

	if err := r.DeleteHoliday(ctx, "2024-01-20"); err != nil {
		t.Fatalf("DeleteHoliday by date: %v", err)
	}
	if err := r.DeleteHoliday(ctx, "holiday-2024-01-01"); err != nil {
		t.Fatalf("DeleteHoliday by id: %v", err)
	}
	if err := r.DeleteHoliday(ctx, "holiday-2024-01-01"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteHoliday(missing) = %v", err)
	}
}

func TestPreviewSchedule(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	if _, err := r.AddHoliday(context.Background(), "2024-01-13", "测试"); err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	got, err := r.PreviewSchedule(schedule.Request{
		Start:        start,
		TotalLessons: 3,
		Cadence:      schedule.Weekly{Day: time.Saturday},
		Blackouts:    schedule.NewBlackoutSet(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("PreviewSchedule: %v", err)
	}
	want := []string{"2024-01-06", "2024-01-27", "2024-02-03"}
	if !slices.Equal(got.Strings(), want) {
		t.Fatalf("preview = %v, want %v", got.Strings(), want)
	}
	if len(r.Courses(CourseFilter{})) != 1 {
		t.Fatal("preview must not store anything")
	}
}

func TestTimeSlots(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.AddTimeSlot(ctx, "a", "09:00"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate slot = %v, want ErrConflict", err)
	}
	if _, err := r.AddTimeSlot(ctx, "E", "25:00"); err == nil {
		t.Fatal("bad time accepted")
	} else {
		wantFields(t, err, "time")
	}
	if _, err := r.AddTimeSlot(ctx, "E", "18:30"); err != nil {
		t.Fatalf("AddTimeSlot: %v", err)
	}
	for _, id := range []string{"A", "B", "C", "D"} {
		if err := r.DeleteTimeSlot(ctx, id); err != nil {
			t.Fatalf("DeleteTimeSlot(%s): %v", id, err)
		}
	}
	if err := r.DeleteTimeSlot(ctx, "E"); !errors.Is(err, ErrConflict) {
		t.Fatalf("deleting last slot = %v, want ErrConflict", err)
	}
	if got := r.TimeSlots(); len(got) != 1 || got[0].Label() != "E 18:30" {
		t.Fatalf("slots = %+v", got)
	}
	// Existing courses keep their slot label.
	if c, _ := r.Course("1"); c.TimeSlot != "A 08:00" {
		t.Fatalf("course slot = %q", c.TimeSlot)
	}
}

func TestEventsAndMonth(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	e, err := r.AddEvent(ctx, EventInput{Title: "家长会", Date: "2024-01-06", Time: "19:00"})
	if err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	if _, err := r.AddEvent(ctx, EventInput{Title: "早会", Date: "2024-01-06", Time: "07:30"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddEvent(ctx, EventInput{Title: "x", Date: "2024-01-06", Time: "7pm"}); err == nil {
		t.Fatal("bad event time accepted")
	}
	day := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	evs := r.EventsOn(day)
	if len(evs) != 2 || evs[0].Title != "早会" {
		t.Fatalf("EventsOn = %+v", evs)
	}
	if _, err := r.UpdateEvent(ctx, e.ID, EventInput{Title: "家长会（改）", Date: "2024-01-07"}); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if len(r.EventsOn(day)) != 1 {
		t.Fatal("updated event should move off 01-06")
	}

	if _, err := r.SeedHolidays(ctx, 2024); err != nil {
		t.Fatal(err)
	}
	g, err := r.Month(2024, time.January)
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	if got := schedule.FormatDate(g.Cells[0].Date); got != "2023-12-31" || g.Cells[0].InMonth {
		t.Fatalf("first cell = %s (in month %v), want 2023-12-31 outside", got, g.Cells[0].InMonth)
	}
	if g.Cells[1].Holiday != "元旦" || !g.Cells[3].Today {
		t.Fatalf("cells 1/3 = %+v / %+v", g.Cells[1], g.Cells[3])
	}
	sat := g.Cells[6]
	if len(sat.Lessons) != 1 || sat.Lessons[0].Course.ID != "1" || sat.Lessons[0].Number() != 1 || len(sat.Events) != 1 {
		t.Fatalf("2024-01-06 cell = %+v", sat)
	}
	if got := schedule.FormatDate(g.Cells[41].Date); got != "2024-02-10" {
		t.Fatalf("last cell = %s", got)
	}
	if _, err := r.Month(2024, 13); err == nil {
		t.Fatal("month 13 accepted")
	}

	if err := r.DeleteEvent(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteEvent(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteEvent(missing) = %v", err)
	}
}

func TestLessonsOnOrdersBySlot(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	if _, err := r.AddCourse(ctx, CourseInput{Name: "晚班", Type: "spring", ClassDay: "周六", TimeSlot: "D", StartDate: "2024-01-06", TotalLessons: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddCourse(ctx, CourseInput{Name: "冬令营", Type: "winter", TimeSlot: "B", StartDate: "2024-01-05", TotalLessons: 3}); err != nil {
		t.Fatal(err)
	}
	got := r.LessonsOn(time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC))
	names := make([]string, len(got))
	for i, l := range got {
		names[i] = l.Course.Name
	}
	if !slices.Equal(names, []string{"24年春周六A班", "冬令营", "晚班"}) {
		t.Fatalf("LessonsOn order = %v", names)
	}
	if got[1].Number() != 2 {
		t.Fatalf("winter lesson number = %d, want 2", got[1].Number())
	}
}

func TestProgressStatsReplaceReset(t *testing.T) {
	t.Parallel()
	r, _, clk := newTestRegistry(t)
	ctx := context.Background()

	clk.set(t, "2024-01-14")
	p, err := r.Progress("1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Done != 2 || p.Total != 15 || p.Percent < 13.3 || p.Percent > 13.4 {
		t.Fatalf("Progress = %+v", p)
	}

	st := r.Stats()
	if st.Students != 6 || st.Enrolled != 3 || st.ActiveCourses != 1 || st.Grades["七"] != 1 || st.Types[model.TermSpring] != 1 {
		t.Fatalf("Stats = %+v", st)
	}

	bad := r.Snapshot()
	bad.Courses[0].Type = "monsoon"
	if err := r.Replace(ctx, bad); err == nil {
		t.Fatal("Replace accepted unknown course type")
	}
	imp := r.Snapshot()
	imp.Students = imp.Students[:2]
	imp.Courses[0].EnrolledStudents = []string{"1"}
	if err := r.Replace(ctx, imp); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if st := r.Stats(); st.Students != 2 || st.Enrolled != 1 {
		t.Fatalf("Stats after replace = %+v", st)
	}

	if err := r.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if st := r.Stats(); st.Students != 6 {
		t.Fatalf("Stats after reset = %+v", st)
	}
	c, _ := r.Course("1")
	if c.StartDate != "2024-01-14" {
		t.Fatalf("reset course start = %s, want today", c.StartDate)
	}
}
