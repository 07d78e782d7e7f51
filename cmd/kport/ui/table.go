package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"kernelport/internal/verify"
)

// Tone colours a single cell.
type Tone int

const (
	Plain Tone = iota
	Good
	Warn
	Bad
	Faint
)

// Cell is one table cell. Width is measured on Text, before colouring.
type Cell struct {
	Text string
	Tone Tone
}

// Text returns an uncoloured cell.
func Text(s string) Cell { return Cell{Text: s} }

// Count returns a cell for a tally. Zero renders faint.
func Count(n int) Cell {
	c := Cell{Text: strconv.Itoa(n)}
	if n == 0 {
		c.Tone = Faint
	}
	return c
}

// OutcomeCell renders an outcome in its status colour.
func OutcomeCell(o verify.Outcome) Cell {
	return Cell{Text: o.String(), Tone: outcomeTone(o)}
}

func outcomeTone(o verify.Outcome) Tone {
	switch o {
	case verify.Pass:
		return Good
	case verify.Race, verify.Fail:
		return Bad
	default:
		return Warn
	}
}

// Column describes one table column. Numeric columns are right-aligned.
type Column struct {
	Title   string
	Numeric bool
}

// Table renders a titled result table with an optional total line.
type Table struct {
	title   string
	columns []Column
	rows    [][]Cell
	footer  []Cell
}

// NewTable creates an empty table.
func NewTable(title string, columns ...Column) *Table {
	return &Table{title: title, columns: columns}
}

// Row appends a row. Cells beyond the column count are dropped and missing
// cells render empty.
func (t *Table) Row(cells ...Cell) *Table {
	t.rows = append(t.rows, t.fit(cells))
	return t
}

// Footer sets the line rendered below a rule after the last row.
func (t *Table) Footer(cells ...Cell) *Table {
	t.footer = t.fit(cells)
	return t
}

func (t *Table) fit(cells []Cell) []Cell {
	row := make([]Cell, len(t.columns))
	copy(row, cells)
	return row
}

// View renders the table. A table without rows or columns renders as nothing.
func (t *Table) View(styles Styles) string {
	if len(t.rows) == 0 || len(t.columns) == 0 {
		return ""
	}

	widths := make([]int, len(t.columns))
	for i, c := range t.columns {
		widths[i] = lipgloss.Width(c.Title)
	}
	measure := func(row []Cell) {
		for i, c := range row {
			if w := lipgloss.Width(c.Text); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for _, row := range t.rows {
		measure(row)
	}
	if t.footer != nil {
		measure(t.footer)
	}

	sep := styles.Muted.Render(" | ")
	rule := 0
	for _, w := range widths {
		rule += w
	}
	rule += 3 * (len(widths) - 1)

	var sb strings.Builder
	if t.title != "" {
		sb.WriteString(styles.Title.Render(t.title))
		sb.WriteString("\n")
	}

	line := func(cells []string) {
		sb.WriteString(strings.Join(cells, sep))
		sb.WriteString("\n")
	}

	header := make([]string, len(t.columns))
	for i, c := range t.columns {
		header[i] = t.align(styles.Bold, i, widths[i]).Render(c.Title)
	}
	line(header)
	sb.WriteString(styles.Muted.Render(strings.Repeat("-", rule)))
	sb.WriteString("\n")

	for _, row := range t.rows {
		line(t.render(styles, row, widths, false))
	}
	if t.footer != nil {
		sb.WriteString(styles.Muted.Render(strings.Repeat("-", rule)))
		sb.WriteString("\n")
		line(t.render(styles, t.footer, widths, true))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (t *Table) render(styles Styles, row []Cell, widths []int, bold bool) []string {
	out := make([]string, len(row))
	for i, c := range row {
		s := styles.tone(c.Tone)
		if bold {
			s = s.Bold(true)
		}
		out[i] = t.align(s, i, widths[i]).Render(c.Text)
	}
	return out
}

func (t *Table) align(s lipgloss.Style, col, width int) lipgloss.Style {
	s = s.Width(width)
	if t.columns[col].Numeric {
		return s.Align(lipgloss.Right)
	}
	return s.Align(lipgloss.Left)
}

func (s Styles) tone(t Tone) lipgloss.Style {
	switch t {
	case Good:
		return s.Success
	case Warn:
		return s.Warning
	case Bad:
		return s.Error
	case Faint:
		return s.Muted
	default:
		return s.Body
	}
}
