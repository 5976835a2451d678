package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SimpleTable is a simple table component for rendering static data.
type SimpleTable struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  []string // optional totals row, set off by a divider

	right map[int]bool
}

// NewSimpleTable creates a new SimpleTable with the given title and headers.
func NewSimpleTable(title string, headers []string) *SimpleTable {
	return &SimpleTable{
		Title:   title,
		Headers: headers,
		Rows:    make([][]string, 0),
		right:   make(map[int]bool),
	}
}

// AlignRight right-aligns the given columns (counts, sizes).
func (t *SimpleTable) AlignRight(cols ...int) *SimpleTable {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

// AddRow adds a row to the table.
func (t *SimpleTable) AddRow(row ...string) {
	t.Rows = append(t.Rows, row)
}

// View renders the table using the provided styles.
func (t *SimpleTable) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	var sb strings.Builder

	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	colWidths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		colWidths[i] = lipgloss.Width(h)
	}
	for _, row := range append(t.Rows, t.Footer) {
		for i, cell := range row {
			if i < len(colWidths) {
				colWidths[i] = max(colWidths[i], lipgloss.Width(cell))
			}
		}
	}
	// lipgloss Width includes padding
	for i := range colWidths {
		colWidths[i] += 2
	}

	headerStyle := styles.Bold.Padding(0, 1)
	rowStyle := styles.Body.Padding(0, 1)
	sepStyle := styles.Muted

	totalWidth := len(t.Headers) - 1
	for _, w := range colWidths {
		totalWidth += w
	}
	divider := sepStyle.Render(strings.Repeat("-", totalWidth)) + "\n"

	t.renderRow(&sb, t.Headers, colWidths, headerStyle, sepStyle)
	sb.WriteString(divider)
	for _, row := range t.Rows {
		t.renderRow(&sb, row, colWidths, rowStyle, sepStyle)
	}
	if len(t.Footer) > 0 {
		sb.WriteString(divider)
		t.renderRow(&sb, t.Footer, colWidths, headerStyle, sepStyle)
	}
	sb.WriteString("\n")

	return sb.String()
}

func (t *SimpleTable) renderRow(sb *strings.Builder, row []string, widths []int, style, sep lipgloss.Style) {
	for i, cell := range row {
		if i >= len(widths) {
			break
		}
		s := style.Width(widths[i])
		if t.right[i] {
			s = s.Align(lipgloss.Right)
		}
		sb.WriteString(s.Render(cell))
		if i < len(row)-1 && i < len(widths)-1 {
			sb.WriteString(sep.Render("|"))
		}
	}
	sb.WriteString("\n")
}
