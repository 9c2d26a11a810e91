package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

var cardGlyph = map[Cardinality]string{
	ZeroOrOne:  "0..1",
	ExactlyOne: "1",
	ZeroOrMore: "0..*",
	OneOrMore:  "1..*",
}

// RenderASCII renders a Model as text: one box per entity followed by a
// list of relationships with their cardinalities.
func RenderASCII(model *Model) string {
	var b strings.Builder

	var boxes []asciiBox
	for _, e := range model.Entities {
		boxes = append(boxes, makeBox(e))
	}

	// Wrap boxes into rows of up to three.
	const perRow = 3
	for i := 0; i < len(boxes); i += perRow {
		end := min(i+perRow, len(boxes))
		renderBoxRow(&b, boxes[i:end])
		b.WriteByte('\n')
	}

	if len(model.Relationships) > 0 {
		b.WriteString("Relationships:\n")
		for _, r := range model.Relationships {
			line := "──"
			if !r.Identifying {
				line = "┄┄"
			}
			fmt.Fprintf(&b, "  %s [%s] %s%s [%s] %s : %s\n",
				r.From, cardGlyph[r.FromCard], line, "▶", cardGlyph[r.ToCard], r.To, r.Label)
		}
	}
	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

func makeBox(e *Entity) asciiBox {
	header := e.Label()
	var rows []string
	for _, a := range e.Attributes {
		row := a.Type + " " + a.Name
		if len(a.Keys) > 0 {
			row += " " + strings.Join(a.Keys, ",")
		}
		rows = append(rows, row)
	}

	inner := utf8.RuneCountInString(header)
	for _, r := range rows {
		inner = max(inner, utf8.RuneCountInString(r))
	}
	width := inner + 4 // 2 border + 2 padding

	pad := func(s string) string {
		return "│ " + s + strings.Repeat(" ", inner-utf8.RuneCountInString(s)) + " │"
	}
	rule := strings.Repeat("─", width-2)

	lines := []string{"┌" + rule + "┐", pad(header)}
	if len(rows) > 0 {
		lines = append(lines, "├"+rule+"┤")
		for _, r := range rows {
			lines = append(lines, pad(r))
		}
	}
	lines = append(lines, "└"+rule+"┘")
	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	maxHeight := 0
	for _, box := range boxes {
		maxHeight = max(maxHeight, len(box.lines))
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}
