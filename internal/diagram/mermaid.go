package diagram

import (
	"fmt"
	"regexp"
	"strings"
)

var cardLeft = map[Cardinality]string{
	ZeroOrOne: "|o", ExactlyOne: "||", ZeroOrMore: "}o", OneOrMore: "}|",
}

var cardRight = map[Cardinality]string{
	ZeroOrOne: "o|", ExactlyOne: "||", ZeroOrMore: "o{", OneOrMore: "|{",
}

var bareName = regexp.MustCompile(`^[A-Za-z_][\w-]*$`)

// Format writes a Model as canonical erDiagram source. Parsing the output
// yields an equivalent Model.
func Format(m *Model) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')

	if m.Direction != "" && m.Direction != DirectionTB {
		fmt.Fprintf(&b, "    direction %s\n", m.Direction)
	}

	for _, e := range m.Entities {
		alias := ""
		if e.Alias != "" {
			alias = fmt.Sprintf("[%q]", e.Alias)
		}
		if len(e.Attributes) == 0 {
			fmt.Fprintf(&b, "    %s%s\n", mermaidName(e.Name), alias)
			continue
		}
		fmt.Fprintf(&b, "    %s%s {\n", mermaidName(e.Name), alias)
		for _, a := range e.Attributes {
			fmt.Fprintf(&b, "        %s %s", a.Type, a.Name)
			if len(a.Keys) > 0 {
				fmt.Fprintf(&b, " %s", strings.Join(a.Keys, ","))
			}
			if a.Comment != "" {
				fmt.Fprintf(&b, " %q", strings.ReplaceAll(a.Comment, `"`, "'"))
			}
			b.WriteByte('\n')
		}
		b.WriteString("    }\n")
	}

	for _, r := range m.Relationships {
		line := "--"
		if !r.Identifying {
			line = ".."
		}
		fmt.Fprintf(&b, "    %s %s%s%s %s : %s\n",
			mermaidName(r.From), cardLeft[r.FromCard], line, cardRight[r.ToCard],
			mermaidName(r.To), mermaidLabel(r.Label))
	}
	return b.String()
}

// mermaidName quotes names that are not bare identifiers.
func mermaidName(name string) string {
	if bareName.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, "'") + `"`
}

func mermaidLabel(label string) string {
	if label != "" && bareName.MatchString(label) {
		return label
	}
	return `"` + strings.ReplaceAll(label, `"`, "'") + `"`
}
