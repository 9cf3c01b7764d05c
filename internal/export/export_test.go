package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"eduadmin/internal/model"

	"github.com/xuri/excelize/v2"
)

func fixture(t *testing.T) (*model.Data, model.Course, time.Time) {
	t.Helper()
	today := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	d := model.Default(time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC))
	c := d.Courses[0]
	d.Attendance["1"] = map[string]map[int]model.AttendanceStatus{"2": {0: model.AttendanceAbsent}}
	d.ServiceRecords["1"] = map[string]map[int]string{"1": {1: `带"错题本", 复习`}}
	d.Renewals["1"] = map[string]model.Renewal{"4": {Status: model.RenewalRenewed, Remark: "已付全年"}}
	return d, c, today
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Format{"": FormatCSV, "CSV": FormatCSV, "xlsx": FormatXLSX, "excel": FormatXLSX} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatal("ParseFormat(pdf) succeeded")
	}
}

func TestCoursesTable(t *testing.T) {
	t.Parallel()
	d, c, _ := fixture(t)
	tbl := Courses(d, []model.Course{c})
	if len(tbl.Headers) != 8 || tbl.Headers[2] != "上课日/期数" {
		t.Fatalf("headers = %v", tbl.Headers)
	}
	want := []string{"24年春周六A班", "春季", "周六", "A 08:00", "2024-01-03", "15", "否", "张三, 李四, 赵六"}
	if strings.Join(tbl.Rows[0], "|") != strings.Join(want, "|") {
		t.Fatalf("row = %v, want %v", tbl.Rows[0], want)
	}
}

func TestPerLessonTables(t *testing.T) {
	t.Parallel()
	d, c, today := fixture(t)

	att := Attendance(d, c, today)
	if len(att.Headers) != 16 || att.Headers[1] != "第1次课（2024-01-06）" {
		t.Fatalf("attendance headers = %v", att.Headers[:2])
	}
	if len(att.Rows) != 3 {
		t.Fatalf("attendance rows = %d, want 3", len(att.Rows))
	}
	// Student 1: lesson 1 already held, lesson 2 not yet.
	if att.Rows[0][0] != "张三" || att.Rows[0][1] != "出勤" || att.Rows[0][2] != "" {
		t.Fatalf("row 张三 = %v", att.Rows[0][:3])
	}
	if att.Rows[1][1] != "请假" {
		t.Fatalf("row 李四 lesson 1 = %q, want 请假", att.Rows[1][1])
	}

	notes := ServiceNotes(d, c)
	if notes.Rows[0][2] != `带"错题本", 复习` {
		t.Fatalf("note = %q", notes.Rows[0][2])
	}

	rn := Renewals(d, c)
	if strings.Join(rn.Headers, ",") != "学生姓名,续费状态,续费备注" {
		t.Fatalf("renewal headers = %v", rn.Headers)
	}
	if rn.Rows[0][1] != "未续费" || rn.Rows[2][1] != "已续费" || rn.Rows[2][2] != "已付全年" {
		t.Fatalf("renewal rows = %v", rn.Rows)
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()
	d, c, _ := fixture(t)
	var buf bytes.Buffer
	if err := Write(&buf, ServiceNotes(d, c), FormatCSV); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	b := buf.Bytes()
	if !bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatal("missing UTF-8 BOM")
	}
	if !bytes.Contains(b, []byte(`"带""错题本"", 复习"`)) {
		t.Fatalf("quoted field missing:\n%s", b)
	}
	recs, err := csv.NewReader(bytes.NewReader(b[3:])).ReadAll()
	if err != nil {
		t.Fatalf("re-read csv: %v", err)
	}
	if len(recs) != 4 || recs[1][2] != `带"错题本", 复习` {
		t.Fatalf("records = %v", recs)
	}
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()
	d, c, _ := fixture(t)
	tbl := Courses(d, []model.Course{c})
	tbl.Sheet = "课程表/2024"

	var buf bytes.Buffer
	if err := Write(&buf, tbl, FormatXLSX); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != "课程表_2024" {
		t.Fatalf("sheets = %v", sheets)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "课程名称" || rows[1][0] != "24年春周六A班" || rows[1][7] != "张三, 李四, 赵六" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestFilename(t *testing.T) {
	t.Parallel()
	today := time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC)
	if got := Filename(KindCourses, "", today, FormatCSV); got != "课程表_2024-01-06.csv" {
		t.Fatalf("Filename = %q", got)
	}
	if got := Filename(KindAttendance, "24年春周六A班", today, FormatXLSX); got != "出勤表_24年春周六A班_2024-01-06.xlsx" {
		t.Fatalf("Filename = %q", got)
	}
	if got := sheetName(strings.Repeat("长", 40)); len([]rune(got)) != 31 {
		t.Fatalf("sheetName length = %d", len([]rune(got)))
	}
}
