package report

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// FormatTables pads every markdown table in content so that columns line up
// by display width. Non-table lines are left untouched.
func FormatTables(content string) string {
	lines := strings.Split(content, "\n")

	var (
		formatted   []string
		tableBuffer []string
	)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			tableBuffer = append(tableBuffer, line)
			continue
		}

		if len(tableBuffer) > 0 {
			formatted = append(formatted, processTable(tableBuffer)...)
			tableBuffer = nil
		}

		formatted = append(formatted, line)
	}

	if len(tableBuffer) > 0 {
		formatted = append(formatted, processTable(tableBuffer)...)
	}

	return strings.Join(formatted, "\n")
}

func splitRow(row string) []string {
	parts := strings.Split(row, "|")

	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}

	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}

	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}

	return cells
}

func isSeparator(cells []string) bool {
	for _, cell := range cells {
		if strings.Trim(cell, "-: ") != "" {
			return false
		}
	}

	return true
}

// rightAligned reports whether a separator cell requests right alignment.
func rightAligned(cell string) bool {
	cell = strings.TrimSpace(cell)
	return strings.HasSuffix(cell, ":") && !strings.HasPrefix(cell, ":")
}

func processTable(rows []string) []string {
	// A header without a separator is not a table.
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, len(rows))
	for i, row := range rows {
		table[i] = splitRow(row)
	}

	colCount := 0
	for _, row := range table {
		colCount = max(colCount, len(row))
	}

	separatorRowIdx := -1
	if isSeparator(table[1]) {
		separatorRowIdx = 1
	}

	colWidths := make([]int, colCount)
	right := make([]bool, colCount)

	for rIdx, row := range table {
		if rIdx == separatorRowIdx {
			for i := 0; i < len(row) && i < colCount; i++ {
				right[i] = rightAligned(row[i])
			}

			continue
		}

		for i := 0; i < len(row) && i < colCount; i++ {
			colWidths[i] = max(colWidths[i], runewidth.StringWidth(row[i]))
		}
	}

	for i := range colWidths {
		colWidths[i] = max(colWidths[i], 3)
	}

	result := make([]string, 0, len(table))

	for i, row := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for j := 0; j < colCount; j++ {
			sb.WriteString(" ")

			content := ""
			if j < len(row) {
				content = row[j]
			}

			switch {
			case i == separatorRowIdx && right[j]:
				sb.WriteString(strings.Repeat("-", colWidths[j]-1) + ":")
			case i == separatorRowIdx:
				sb.WriteString(strings.Repeat("-", colWidths[j]))
			case right[j]:
				sb.WriteString(runewidth.FillLeft(content, colWidths[j]))
			default:
				sb.WriteString(runewidth.FillRight(content, colWidths[j]))
			}

			sb.WriteString(" |")
		}

		result = append(result, sb.String())
	}

	return result
}
