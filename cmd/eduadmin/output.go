package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

var stdout io.Writer = os.Stdout

// emit prints v as JSON with --json, otherwise calls text.
func emit(v any, text func(w io.Writer)) error {
	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(stdout)
	return nil
}

// table prints tab-separated rows aligned in columns.
func table(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// lessonIndex converts a one-based lesson flag to the stored index.
func lessonIndex(n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("--lesson must be >= 1")
	}
	return n - 1, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
