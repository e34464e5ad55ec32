package core

import (
	"path/filepath"
	"strings"
)

const (
	// FieldSeparator separates roster columns.
	FieldSeparator = ";"
	// OutputPrefix is prepended to the uploaded file name for the result.
	OutputPrefix = "modified_"

	rosterColumns = 5
)

// splitLines splits raw roster text on LF or CRLF and drops blank lines.
func splitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// parseRow splits a data line positionally. Missing trailing columns are
// empty and columns past the fifth are ignored.
func parseRow(line string) CapacityEntry {
	parts := strings.Split(line, FieldSeparator)
	field := func(i int) string {
		if i >= len(parts) {
			return ""
		}
		return strings.TrimSpace(parts[i])
	}
	return CapacityEntry{
		Name:         field(0),
		Capacity:     field(1),
		Month:        field(2),
		Year:         field(3),
		BusinessUnit: field(4),
	}
}

func formatRow(e CapacityEntry) string {
	return strings.Join(e.Fields(), FieldSeparator)
}

func serialize(header string, entries []CapacityEntry) string {
	var b strings.Builder
	b.WriteString(header)
	for _, e := range entries {
		b.WriteByte('\n')
		b.WriteString(formatRow(e))
	}
	return b.String()
}

// countDataRows returns the number of lines after the header.
func countDataRows(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n")
}

// SplitRow splits a serialized output row into its columns.
func SplitRow(line string) []string {
	cols := strings.Split(line, FieldSeparator)
	for len(cols) < rosterColumns {
		cols = append(cols, "")
	}
	return cols
}

// OutputFileName returns the download name for an uploaded roster.
func OutputFileName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "roster.csv"
	}
	return OutputPrefix + base
}

// Table splits roster content into rows of at least five columns,
// header included. Blank lines are dropped.
func Table(content string) [][]string {
	lines := splitLines(content)
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, SplitRow(line))
	}
	return rows
}
