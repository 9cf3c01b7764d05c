package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"eduadmin/internal/schedule"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC) // Monday
	d := Default(now)

	if len(d.Students) != 6 {
		t.Fatalf("students = %d, want 6", len(d.Students))
	}
	if len(d.TimeSlots) != 4 || d.TimeSlots[1].Label() != "B 10:10" {
		t.Fatalf("time slots = %+v", d.TimeSlots)
	}
	if len(d.Courses) != 1 {
		t.Fatalf("courses = %d, want 1", len(d.Courses))
	}
	c := d.Courses[0]
	if c.Name != "24年春周六A班" {
		t.Fatalf("course name = %q, want 24年春周六A班", c.Name)
	}
	if len(c.Schedule) != 15 {
		t.Fatalf("schedule length = %d, want 15", len(c.Schedule))
	}
	if c.Schedule[0] != "2024-03-09" {
		t.Fatalf("first lesson = %s, want 2024-03-09", c.Schedule[0])
	}
	for _, id := range []string{"1", "2", "4"} {
		s, ok := d.Student(id)
		if !ok || !s.IsEnrolled {
			t.Fatalf("student %s should be enrolled", id)
		}
	}
}

func TestDefaultHolidays(t *testing.T) {
	t.Parallel()
	h := DefaultHolidays(2025)
	if len(h) != 10 {
		t.Fatalf("holidays = %d, want 10", len(h))
	}
	if h[0].Date != "2025-01-01" || h[0].Name != "元旦" {
		t.Fatalf("first holiday = %+v", h[0])
	}
	seen := map[string]bool{}
	for _, x := range h {
		if seen[x.ID] {
			t.Fatalf("duplicate holiday id %s", x.ID)
		}
		seen[x.ID] = true
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	d := Default(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	d.Attendance["1"] = map[string]map[int]AttendanceStatus{"1": {0: AttendanceAbsent}}
	d.ServiceRecords["1"] = map[string]map[int]string{"1": {0: "note"}}
	d.Renewals["1"] = map[string]Renewal{"1": {Status: RenewalPending}}

	cp := d.Clone()
	cp.Courses[0].EnrolledStudents[0] = "x"
	cp.Courses[0].Schedule[0] = "x"
	cp.Students[0].Name = "x"
	cp.Attendance["1"]["1"][0] = AttendancePresent
	cp.ServiceRecords["1"]["1"][0] = "changed"
	cp.Renewals["1"]["1"] = Renewal{Status: RenewalRenewed}

	if d.Courses[0].EnrolledStudents[0] != "1" || d.Courses[0].Schedule[0] == "x" || d.Students[0].Name != "张三" {
		t.Fatal("clone shares slices with original")
	}
	if d.Attendance["1"]["1"][0] != AttendanceAbsent {
		t.Fatal("clone shares attendance with original")
	}
	if d.ServiceRecords["1"]["1"][0] != "note" {
		t.Fatal("clone shares service records with original")
	}
	if d.Renewals["1"]["1"].Status != RenewalPending {
		t.Fatal("clone shares renewals with original")
	}
}

func TestDataJSONShape(t *testing.T) {
	t.Parallel()
	d := &Data{}
	d.Normalize()
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"students":[],"courses":[],"attendance":{},"serviceRecords":{},"renewals":{},"events":[],"holidays":[],"timeSlots":[]}`
	if string(raw) != want {
		t.Fatalf("json = %s, want %s", raw, want)
	}

	legacy := `{"courses":[{"id":"9","name":"n","type":"summer","上课Day":"一期","holidayRule":"上6天休1天","timeSlot":"C 14:00","startTime":"2024-07-01","totalLessons":2,"enrolledStudents":[],"isCompleted":false,"schedule":["2024-07-01","2024-07-02"]}],"attendance":{"9":{"1":{"0":"makeup"}}}}`
	var got Data
	if err := json.Unmarshal([]byte(legacy), &got); err != nil {
		t.Fatalf("Unmarshal legacy: %v", err)
	}
	c := got.Courses[0]
	if c.ClassDay != "一期" || c.StartDate != "2024-07-01" || c.SlotID() != "C" || c.SlotTime() != "14:00" {
		t.Fatalf("legacy course = %+v", c)
	}
	if got.Attendance["9"]["1"][0] != AttendanceMakeup {
		t.Fatalf("legacy attendance = %+v", got.Attendance)
	}
}

func TestCourseCadence(t *testing.T) {
	t.Parallel()
	weekly := Course{Type: TermAutumn, ClassDay: "周日"}
	c, err := weekly.Cadence()
	if err != nil {
		t.Fatalf("Cadence error: %v", err)
	}
	if c != (schedule.Weekly{Day: time.Sunday}) {
		t.Fatalf("Cadence = %v, want weekly sunday", c)
	}

	bad := Course{Type: TermSpring, ClassDay: "一期"}
	if _, err := bad.Cadence(); err == nil {
		t.Fatal("expected error for period label on weekly term")
	}

	intensive := Course{Type: TermWinter, ClassDay: "二期", HolidayRule: "上5天休2天"}
	c, _ = intensive.Cadence()
	if c != (schedule.Intensive{WorkDays: 5, RestDays: 2}) {
		t.Fatalf("Cadence = %v, want 上5天休2天", c)
	}

	norule := Course{Type: TermSummer, ClassDay: "一期"}
	c, _ = norule.Cadence()
	if c != schedule.DefaultIntensive() {
		t.Fatalf("Cadence = %v, want default", c)
	}
}

func TestRecomputeEnrollment(t *testing.T) {
	t.Parallel()
	d := &Data{
		Students: []Student{{ID: "a"}, {ID: "b", IsEnrolled: true}, {ID: "c", IsEnrolled: true}},
		Courses: []Course{
			{ID: "1", EnrolledStudents: []string{"a"}},
			{ID: "2", EnrolledStudents: []string{"b"}, IsCompleted: true},
		},
	}
	d.RecomputeEnrollment()
	got := []bool{d.Students[0].IsEnrolled, d.Students[1].IsEnrolled, d.Students[2].IsEnrolled}
	if got[0] != true || got[1] != false || got[2] != false {
		t.Fatalf("IsEnrolled = %v, want [true false false]", got)
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()
	if CourseName(TermSummer, 2025, "一期", "B 10:10") != "25年暑一期B班" {
		t.Fatalf("CourseName = %q", CourseName(TermSummer, 2025, "一期", "B 10:10"))
	}
	for _, s := range []string{"出勤", "absent", "MAKEUP"} {
		if _, err := ParseAttendance(s); err != nil {
			t.Fatalf("ParseAttendance(%q): %v", s, err)
		}
	}
	if _, err := ParseRenewal("maybe"); err == nil || !strings.Contains(err.Error(), "maybe") {
		t.Fatalf("ParseRenewal error = %v", err)
	}
	if RenewalPending.Label() != "待确认" || AttendanceAbsent.Label() != "请假" || TermWinter.Label() != "寒假" {
		t.Fatal("unexpected labels")
	}
}
