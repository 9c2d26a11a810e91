package diagram

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// crow's-foot arrow shapes; the leftmost shape sits against the entity.
var arrowFor = map[Cardinality]cgraph.ArrowType{
	ExactlyOne: cgraph.ArrowType("teetee"),
	ZeroOrOne:  cgraph.ArrowType("teeodot"),
	OneOrMore:  cgraph.ArrowType("crowtee"),
	ZeroOrMore: cgraph.ArrowType("crowodot"),
}

var rankFor = map[Direction]cgraph.RankDir{
	DirectionTB: cgraph.TBRank,
	DirectionBT: cgraph.BTRank,
	DirectionLR: cgraph.LRRank,
	DirectionRL: cgraph.RLRank,
}

// LayoutSVG lays the model out with dot and returns the SVG bytes.
// Entities are record nodes (name over attribute rows); relationships are
// two-headed edges whose arrowheads encode the cardinality at each end.
func LayoutSVG(ctx context.Context, model *Model) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	dir := model.Direction
	if _, ok := rankFor[dir]; !ok {
		dir = DirectionTB
	}
	graph.SetRankDir(rankFor[dir])

	gvNodes := make(map[string]*cgraph.Node, len(model.Entities))
	for i, e := range model.Entities {
		// Node names are positional so entity names never clash with DOT keywords.
		n, nErr := graph.CreateNodeByName(fmt.Sprintf("e%d", i))
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", e.Name, nErr)
		}
		n.SetShape(cgraph.Shape("record"))
		n.SetFontName("Helvetica")
		n.SetFontSize(12)
		n.SetStyle(cgraph.FilledNodeStyle)
		n.SetFillColor("#ffffff")
		n.SetColor("#334155")
		n.SetLabel(recordLabel(e, dir == DirectionLR || dir == DirectionRL))
		gvNodes[e.Name] = n
	}

	for _, r := range model.Relationships {
		from, to := gvNodes[r.From], gvNodes[r.To]
		if from == nil || to == nil {
			return nil, fmt.Errorf("diagram: relationship on line %d references unknown entity", r.Line)
		}
		e, eErr := graph.CreateEdgeByName("", from, to)
		if eErr != nil {
			return nil, fmt.Errorf("diagram: create edge %s-%s: %w", r.From, r.To, eErr)
		}
		e.SetDir(cgraph.BothDir)
		e.SetArrowTail(arrowFor[r.FromCard])
		e.SetArrowHead(arrowFor[r.ToCard])
		e.SetFontName("Helvetica")
		e.SetFontSize(10)
		e.SetColor("#475569")
		if !r.Identifying {
			e.SetStyle(cgraph.DashedEdgeStyle)
		}
		if r.Label != "" {
			e.SetLabel(r.Label)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render SVG: %w", err)
	}
	return buf.Bytes(), nil
}

// recordLabel builds a record-shape label. Top-level record fields run
// perpendicular to the rank direction, so TB layouts need one extra brace
// level to stack the name above the attributes.
func recordLabel(e *Entity, horizontal bool) string {
	fields := []string{recordEscape(e.Label())}
	if len(e.Attributes) > 0 {
		var rows strings.Builder
		for _, a := range e.Attributes {
			row := a.Type + " " + a.Name
			if len(a.Keys) > 0 {
				row += " " + strings.Join(a.Keys, ",")
			}
			rows.WriteString(recordEscape(row))
			rows.WriteString(`\l`)
		}
		fields = append(fields, rows.String())
	}
	label := strings.Join(fields, "|")
	if horizontal {
		return label
	}
	return "{" + label + "}"
}

var recordReplacer = strings.NewReplacer(
	`\`, `\\`, "{", `\{`, "}", `\}`, "|", `\|`, "<", `\<`, ">", `\>`, `"`, `\"`,
)

func recordEscape(s string) string {
	return recordReplacer.Replace(s)
}
