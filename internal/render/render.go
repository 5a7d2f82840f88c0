// Package render produces human-readable bit-layout tables (§4.5.2 of
// the spec): one row per field with columns Field, Type, Bit Range,
// Bits, Constraints. Three variants are offered: a boxed ASCII grid,
// GitHub-flavored Markdown, and a lipgloss-styled terminal variant
// that falls back to the ASCII grid when stdout isn't a color TTY.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bitschema/bitschema/internal/layout"
	"github.com/bitschema/bitschema/internal/model"
)

var columns = []string{"Field", "Type", "Bit Range", "Bits", "Constraints"}

func row(l layout.FieldLayout) [5]string {
	return [5]string{
		l.Name,
		string(l.Kind),
		fmt.Sprintf("%d:%d", l.Offset, l.Offset+l.Bits-1),
		fmt.Sprintf("%d", l.Bits),
		constraints(l),
	}
}

func constraints(l layout.FieldLayout) string {
	var base string

	switch l.Kind {
	case model.KindBool:
		base = "-"
	case model.KindInt:
		base = fmt.Sprintf("[%d..%d]", l.Int.Min, l.Int.Max)
	case model.KindEnum:
		base = fmt.Sprintf("%d values", len(l.Enum.Values))
	case model.KindDate:
		layoutFmt := "2006-01-02"
		if l.Date.Resolution != model.ResolutionDay {
			layoutFmt = "2006-01-02T15:04:05"
		}
		base = fmt.Sprintf("%s..%s (%s)",
			l.Date.MinDate.Format(layoutFmt), l.Date.MaxDate.Format(layoutFmt), l.Date.Resolution)
	case model.KindBitmask:
		base = fmt.Sprintf("%d flags: %s", len(l.Bitmask.Flags), strings.Join(l.Bitmask.Flags, ", "))
	default:
		panic(fmt.Sprintf("render: unreachable field kind %q", l.Kind))
	}

	if l.Nullable {
		base += " (nullable)"
	}
	return base
}

func rows(layouts []layout.FieldLayout) [][5]string {
	out := make([][5]string, len(layouts))
	for i, l := range layouts {
		out[i] = row(l)
	}
	return out
}

// ASCII renders a boxed grid, e.g.:
//
//	+-------+------+-----------+------+-------------+
//	| Field | Type | Bit Range | Bits | Constraints |
//	+-------+------+-----------+------+-------------+
//	| a     | bool | 0:0       | 1    | -           |
//	+-------+------+-----------+------+-------------+
func ASCII(layouts []layout.FieldLayout) string {
	data := rows(layouts)
	widths := columnWidths(data)

	var b strings.Builder
	writeRule(&b, widths)
	writeRow(&b, columns, widths)
	writeRule(&b, widths)
	for _, r := range data {
		writeRow(&b, []string{r[0], r[1], r[2], r[3], r[4]}, widths)
	}
	writeRule(&b, widths)

	return b.String()
}

func columnWidths(data [][5]string) [5]int {
	var w [5]int
	for i, c := range columns {
		w[i] = len(c)
	}
	for _, r := range data {
		for i, v := range r {
			if len(v) > w[i] {
				w[i] = len(v)
			}
		}
	}
	return w
}

func writeRule(b *strings.Builder, widths [5]int) {
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	b.WriteByte('\n')
}

func writeRow(b *strings.Builder, cells []string, widths [5]int) {
	b.WriteByte('|')
	for i, c := range cells {
		b.WriteByte(' ')
		b.WriteString(c)
		b.WriteString(strings.Repeat(" ", widths[i]-len(c)))
		b.WriteByte(' ')
		b.WriteByte('|')
	}
	b.WriteByte('\n')
}

// Markdown renders a GitHub-flavored Markdown table.
func Markdown(layouts []layout.FieldLayout) string {
	var b strings.Builder

	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")

	for _, l := range layouts {
		r := row(l)
		b.WriteString("| " + strings.Join(r[:], " | ") + " |\n")
	}

	return b.String()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	fieldStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	rangeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("186"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// Terminal renders the same grid as ASCII but with lipgloss styling
// applied to the field name, bit range, and header row, for use when
// writing directly to an interactive terminal.
func Terminal(layouts []layout.FieldLayout) string {
	data := rows(layouts)
	widths := columnWidths(data)

	var b strings.Builder
	writeRule(&b, widths)
	writeStyledRow(&b, columns, widths, headerStyle, headerStyle, headerStyle)
	writeRule(&b, widths)
	for _, r := range data {
		writeStyledRow(&b, []string{r[0], r[1], r[2], r[3], r[4]}, widths, fieldStyle, rangeStyle, dimStyle)
	}
	writeRule(&b, widths)

	return b.String()
}

// writeStyledRow styles the Field column with fieldStyle, the Bit
// Range column with rangeStyle, and the Constraints column with
// dimStyle; Type and Bits render unstyled.
func writeStyledRow(b *strings.Builder, cells []string, widths [5]int, fieldStyle, rangeStyle, dimStyle lipgloss.Style) {
	b.WriteByte('|')
	for i, c := range cells {
		styled := c
		switch i {
		case 0:
			styled = fieldStyle.Render(c)
		case 2:
			styled = rangeStyle.Render(c)
		case 4:
			styled = dimStyle.Render(c)
		}
		pad := widths[i] - len(c)

		b.WriteByte(' ')
		b.WriteString(styled)
		b.WriteString(strings.Repeat(" ", pad))
		b.WriteByte(' ')
		b.WriteByte('|')
	}
	b.WriteByte('\n')
}
