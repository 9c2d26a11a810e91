package diagram

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rendis/erdstudio/pkg/schema"
)

// Header is the keyword every diagram source starts with.
const Header = "erDiagram"

var (
	entityName = `(?:[\p{L}_][\p{L}\p{N}_-]*|"[^"]+")`

	// Word cardinalities read the same on either side; longer forms come
	// first so alternation prefers them.
	wordCard  = `only one|one or zero|zero or one|one or more|one or many|zero or more|zero or many|many\([01]\)|many|one|1\+|0\+|1`
	leftCard  = `\|o|\|\||\}o|\}\||` + wordCard
	rightCard = `o\||\|\||o\{|\|\{|` + wordCard
	relKind   = `--|\.\.|optionally to|to`

	relationshipRe = regexp.MustCompile(`^(` + entityName + `)\s*(` + leftCard + `)\s*(` + relKind + `)\s*(` + rightCard + `)\s*(` + entityName + `)\s*(?::\s*(.*))?$`)
	blockOpenRe    = regexp.MustCompile(`^(` + entityName + `)(?:\s*\[\s*("[^"]*"|[^\]]*)\s*\])?\s*\{(.*)$`)
	entityOnlyRe   = regexp.MustCompile(`^(` + entityName + `)(?:\s*\[\s*("[^"]*"|[^\]]*)\s*\])?$`)
	attrTypeRe     = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_\-\[\](),.]*$`)
	attrNameRe     = regexp.MustCompile(`^\*?[\p{L}_][\p{L}\p{N}_\-\[\]().]*$`)
	directionRe    = regexp.MustCompile(`^direction\s+(TB|BT|LR|RL|TD)$`)
)

var leftCards = map[string]Cardinality{
	"|o": ZeroOrOne, "||": ExactlyOne, "}o": ZeroOrMore, "}|": OneOrMore,
}

var rightCards = map[string]Cardinality{
	"o|": ZeroOrOne, "||": ExactlyOne, "o{": ZeroOrMore, "|{": OneOrMore,
}

var wordCards = map[string]Cardinality{
	"only one": ExactlyOne, "one": ExactlyOne, "1": ExactlyOne,
	"zero or one": ZeroOrOne, "one or zero": ZeroOrOne,
	"one or more": OneOrMore, "one or many": OneOrMore, "many(1)": OneOrMore, "1+": OneOrMore,
	"zero or more": ZeroOrMore, "zero or many": ZeroOrMore, "many(0)": ZeroOrMore, "many": ZeroOrMore, "0+": ZeroOrMore,
}

var attrKeys = map[string]bool{"PK": true, "FK": true, "UK": true}

func cardinality(token string, symbols map[string]Cardinality) Cardinality {
	if c, ok := symbols[token]; ok {
		return c
	}
	return wordCards[token]
}

// Parse reads an erDiagram source. All problems found are collected; the
// returned error is a RENDER_INVALID_SYNTAX ErdError naming the first one
// with its line number.
func Parse(source string) (*Model, error) {
	m, diags := parse(source)
	if err := diags.ToError(); err != nil {
		return nil, err
	}
	return m, nil
}

// Lint parses source and returns every diagnostic, including warnings.
func Lint(source string) *schema.Diagnostics {
	_, diags := parse(source)
	return diags
}

func parse(source string) (*Model, *schema.Diagnostics) {
	diags := &schema.Diagnostics{}
	m := &Model{Direction: DirectionTB}

	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	headerSeen := false
	var open *Entity
	openLine := 0

	for i, raw := range lines {
		lineNo := i + 1
		line := stripComment(raw)
		if line == "" {
			continue
		}

		if !headerSeen {
			rest, ok := strings.CutPrefix(line, Header)
			if !ok || (rest != "" && !strings.HasPrefix(rest, " ") && !strings.HasPrefix(rest, "\t")) {
				diags.AddError(lineNo, "expected %q, got %q", Header, truncate(line))
				return m, diags
			}
			headerSeen = true
			line = strings.TrimSpace(rest)
			if line == "" {
				continue
			}
		}

		if open != nil {
			if !addAttributes(diags, lineNo, open, line) {
				open = nil
			}
			continue
		}

		if sm := directionRe.FindStringSubmatch(line); sm != nil {
			d := Direction(sm[1])
			if d == "TD" {
				d = DirectionTB
			}
			m.Direction = d
			continue
		}

		if sm := relationshipRe.FindStringSubmatch(line); sm != nil {
			if !strings.Contains(line, ":") || strings.TrimSpace(sm[6]) == "" {
				diags.AddError(lineNo, "relationship %s-%s is missing ': label'", unquote(sm[1]), unquote(sm[5]))
				continue
			}
			from, to := unquote(sm[1]), unquote(sm[5])
			m.ensureEntity(from, lineNo)
			m.ensureEntity(to, lineNo)
			m.Relationships = append(m.Relationships, Relationship{
				From:        from,
				To:          to,
				FromCard:    cardinality(sm[2], leftCards),
				ToCard:      cardinality(sm[4], rightCards),
				Identifying: sm[3] == "--" || sm[3] == "to",
				Label:       unquote(strings.TrimSpace(sm[6])),
				Line:        lineNo,
			})
			continue
		}

		if sm := blockOpenRe.FindStringSubmatch(line); sm != nil {
			e := m.ensureEntity(unquote(sm[1]), lineNo)
			if alias := unquote(strings.TrimSpace(sm[2])); alias != "" {
				e.Alias = alias
			}
			if addAttributes(diags, lineNo, e, sm[3]) {
				open = e
				openLine = lineNo
			}
			continue
		}

		if sm := entityOnlyRe.FindStringSubmatch(line); sm != nil {
			e := m.ensureEntity(unquote(sm[1]), lineNo)
			if alias := unquote(strings.TrimSpace(sm[2])); alias != "" {
				e.Alias = alias
			}
			continue
		}

		if looksLikeRelationship(line) {
			diags.AddError(lineNo, "invalid relationship %q", truncate(line))
			continue
		}
		diags.AddError(lineNo, "unexpected %q", truncate(line))
	}

	if !headerSeen {
		diags.AddError(0, "diagram is empty; expected %q", Header)
	}
	if open != nil {
		diags.AddError(openLine, "entity %s block is not closed with '}'", open.Name)
	}
	for _, e := range m.Entities {
		if len(e.Attributes) == 0 && !referenced(m, e.Name) {
			diags.AddWarning(e.Line, "entity %s has no attributes or relationships", e.Name)
		}
	}
	return m, diags
}

// addAttributes parses the block text of one line into e. It reports
// whether the block is still open afterwards.
func addAttributes(diags *schema.Diagnostics, lineNo int, e *Entity, text string) bool {
	body, rest, closed := text, "", false
	if i := closingBrace(text); i >= 0 {
		body, rest, closed = text[:i], text[i+1:], true
	}
	if body = strings.TrimSpace(body); body != "" {
		attrs, ok := parseAttributes(body)
		if !ok {
			diags.AddError(lineNo, "invalid attribute %q in entity %s", truncate(body), e.Name)
		}
		e.Attributes = append(e.Attributes, attrs...)
	}
	if rest = strings.TrimSpace(rest); rest != "" {
		diags.AddError(lineNo, "unexpected %q after entity %s block", truncate(rest), e.Name)
	}
	return !closed
}

// parseAttributes reads one or more "type name [keys] [\"comment\"]"
// attributes from whitespace separated tokens.
func parseAttributes(text string) ([]Attribute, bool) {
	tokens := tokenize(text)
	var out []Attribute
	for i := 0; i < len(tokens); {
		if i+1 >= len(tokens) || !attrTypeRe.MatchString(tokens[i]) || !attrNameRe.MatchString(tokens[i+1]) {
			return out, false
		}
		a := Attribute{Type: tokens[i], Name: tokens[i+1]}
		i += 2
		for i < len(tokens) {
			keys, ok := keyList(tokens[i])
			if !ok {
				break
			}
			a.Keys = append(a.Keys, keys...)
			i++
		}
		if i < len(tokens) && isQuoted(tokens[i]) {
			a.Comment = unquote(tokens[i])
			i++
		}
		out = append(out, a)
	}
	return out, true
}

// keyList accepts "PK", "PK,FK", "PK," and a lone ",".
func keyList(token string) ([]string, bool) {
	var keys []string
	for _, k := range strings.Split(token, ",") {
		if k == "" {
			continue
		}
		if !attrKeys[k] {
			return nil, false
		}
		keys = append(keys, k)
	}
	return keys, true
}

// tokenize splits on whitespace, keeping a "quoted string" as one token.
func tokenize(text string) []string {
	var (
		tokens []string
		cur    strings.Builder
		inQ    bool
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == '"':
			inQ = !inQ
			cur.WriteRune(r)
		case !inQ && unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// closingBrace returns the offset of the first } outside quotes, or -1.
func closingBrace(s string) int {
	inQ := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQ = !inQ
		case '}':
			if !inQ {
				return i
			}
		}
	}
	return -1
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

// stripComment drops a %% comment and surrounding whitespace. A %% inside
// a quoted label is kept.
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line)-1; i++ {
		switch {
		case line[i] == '"':
			inQuote = !inQuote
		case !inQuote && line[i] == '%' && line[i+1] == '%':
			return strings.TrimSpace(line[:i])
		}
	}
	return strings.TrimSpace(line)
}

func looksLikeRelationship(line string) bool {
	return strings.Contains(line, "--") || strings.Contains(line, "..") || strings.Contains(line, " to ")
}

func referenced(m *Model, name string) bool {
	for _, r := range m.Relationships {
		if r.From == name || r.To == name {
			return true
		}
	}
	return false
}

func unquote(s string) string {
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}

func truncate(s string) string {
	const limit = 60
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
