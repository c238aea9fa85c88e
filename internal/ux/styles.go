package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Styles groups the lipgloss styles used for text output.
type Styles struct {
	Heading lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style

	noColor bool
}

// NewStyles returns the default palette, or bold-only styles when noColor is set.
func NewStyles(noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{
			Heading: plain.Bold(true),
			Label:   plain,
			Value:   plain,
			Muted:   plain,
			Success: plain,
			Warning: plain,
			Error:   plain,
			Header:  plain.Bold(true).Padding(0, 1),
			Cell:    plain.Padding(0, 1),
			noColor: true,
		}
	}
	return Styles{
		Heading: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			Padding(0, 1),
		Cell: lipgloss.NewStyle().
			Padding(0, 1),
	}
}

// NoColor reports whether the palette is uncolored.
func (s Styles) NoColor() bool {
	return s.noColor
}

// Table is a text-only tabular view. JSON and YAML output carry the
// underlying records instead.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Empty is printed instead of the table when there are no rows.
	Empty string
}

// NewTable creates a table with the given column headers.
func NewTable(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers}
}

// AddRow appends a row. Missing cells render empty.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Headers))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// RenderText implements TextRenderer.
func (t *Table) RenderText(s Styles) string {
	var b strings.Builder
	if t.Title != "" {
		b.WriteString(s.Heading.Render(t.Title))
		b.WriteString("\n")
	}
	if len(t.Rows) == 0 {
		empty := t.Empty
		if empty == "" {
			empty = "No records."
		}
		b.WriteString(s.Muted.Render(empty))
		return b.String()
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Muted).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return s.Cell
		})
	b.WriteString(tbl.String())
	return b.String()
}

// Field is one label/value line of a Detail view.
type Field struct {
	Label string
	Value string
}

// Detail renders a single record as aligned label/value lines.
type Detail struct {
	Title  string
	Fields []Field
}

// NewDetail creates a detail view.
func NewDetail(title string) *Detail {
	return &Detail{Title: title}
}

// Add appends a field. Empty values are skipped.
func (d *Detail) Add(label, value string) *Detail {
	if value != "" {
		d.Fields = append(d.Fields, Field{Label: label, Value: value})
	}
	return d
}

// Addf appends a formatted field.
func (d *Detail) Addf(label, format string, args ...any) *Detail {
	return d.Add(label, fmt.Sprintf(format, args...))
}

// RenderText implements TextRenderer.
func (d *Detail) RenderText(s Styles) string {
	width := 0
	for _, f := range d.Fields {
		width = max(width, len(f.Label))
	}

	var b strings.Builder
	if d.Title != "" {
		b.WriteString(s.Heading.Render(d.Title))
		b.WriteString("\n")
	}
	for i, f := range d.Fields {
		if i > 0 {
			b.WriteString("\n")
		}
		label := fmt.Sprintf("%-*s", width+1, f.Label+":")
		b.WriteString(s.Label.Render(label))
		b.WriteString(" ")
		b.WriteString(s.Value.Render(f.Value))
	}
	return b.String()
}

// Sections renders several views separated by blank lines.
type Sections []TextRenderer

// RenderText implements TextRenderer.
func (ss Sections) RenderText(s Styles) string {
	parts := make([]string, 0, len(ss))
	for _, sec := range ss {
		parts = append(parts, sec.RenderText(s))
	}
	return strings.Join(parts, "\n\n")
}

// Message is a single styled line.
type Message struct {
	Text  string
	Style func(Styles) lipgloss.Style
}

// RenderText implements TextRenderer.
func (m Message) RenderText(s Styles) string {
	if m.Style == nil {
		return m.Text
	}
	return m.Style(s).Render(m.Text)
}

// Successf returns a success message.
func Successf(format string, args ...any) Message {
	return Message{Text: "✓ " + fmt.Sprintf(format, args...), Style: func(s Styles) lipgloss.Style { return s.Success }}
}

// Warningf returns a warning message.
func Warningf(format string, args ...any) Message {
	return Message{Text: "! " + fmt.Sprintf(format, args...), Style: func(s Styles) lipgloss.Style { return s.Warning }}
}

var (
	_ TextRenderer = (*Table)(nil)
	_ TextRenderer = (*Detail)(nil)
	_ TextRenderer = Sections(nil)
	_ TextRenderer = Message{}
)
