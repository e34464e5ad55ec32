package google

import (
	"fmt"
	"strings"

	"capext/internal/core"
)

// tabName returns "<base> MM/YYYY" for the target month.
func tabName(base string, target core.Date) string {
	return fmt.Sprintf("%s %02d/%04d", strings.TrimSpace(base), target.Month(), target.Year())
}

// quoteSheet quotes a sheet title for use in an A1 range.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// rosterValues converts roster content into the values matrix sent to the
// Sheets API, header row first.
func rosterValues(content string) [][]interface{} {
	table := core.Table(content)
	values := make([][]interface{}, 0, len(table))
	for _, row := range table {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		values = append(values, cells)
	}
	return values
}
