// Package export renders courses and per-lesson records as tables and writes
// them as CSV (UTF-8 with BOM, for spreadsheet apps) or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"eduadmin/internal/schedule"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or xlsx)", s)
}

// Kind names an export and is the filename prefix.
type Kind string

const (
	KindCourses    Kind = "课程表"
	KindAttendance Kind = "出勤表"
	KindService    Kind = "服务记录表"
	KindRenewals   Kind = "续费表"
)

// Table is a header row plus data rows. Rows may be shorter than Headers.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]string
}

// Write renders t in format f.
func Write(w io.Writer, t Table, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	}
	return fmt.Errorf("unknown export format %q", f)
}

const bom = "\ufeff"

// WriteCSV writes t as comma-separated UTF-8 with a leading BOM.
func WriteCSV(w io.Writer, t Table) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes t as a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, t Table) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	sheet := sheetName(t.Sheet)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if len(t.Headers) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(t.Headers), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return err
		}
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// sheetName makes s a valid worksheet name (max 31 chars, no []:*?/\).
func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return "Sheet1"
	}
	if r := []rune(s); len(r) > 31 {
		s = string(r[:31])
	}
	return s
}

// Filename is the conventional download name, e.g. 课程表_2024-01-06.csv or
// 出勤表_24年春周六A班_2024-01-06.xlsx. courseName is omitted when empty.
func Filename(kind Kind, courseName string, today time.Time, f Format) string {
	parts := []string{string(kind)}
	if n := strings.TrimSpace(courseName); n != "" {
		parts = append(parts, strings.NewReplacer("/", "_", `\`, "_").Replace(n))
	}
	parts = append(parts, schedule.FormatDate(today))
	return strings.Join(parts, "_") + "." + string(f)
}
