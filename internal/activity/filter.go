package activity

import (
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/erdstudio/pkg/schema"
)

// env is the variable set visible to filter expressions.
type env struct {
	ID          string    `expr:"id"`
	Tool        string    `expr:"tool"`
	Title       string    `expr:"title"`
	Description string    `expr:"description"`
	CreatedAt   time.Time `expr:"created_at"`
	Age         float64   `expr:"age_hours"`
}

// Filter is a compiled boolean expression over activity fields, e.g.
//
//	title == "Exported ERD" && description contains "SVG"
type Filter struct {
	source string
	prg    *vm.Program
	now    func() time.Time
}

// NewFilter compiles expression. An empty expression matches everything.
func NewFilter(expression string) (*Filter, error) {
	f := &Filter{source: expression, now: time.Now}
	if expression == "" {
		return f, nil
	}
	prg, err := expr.Compile(expression, expr.Env(env{}), expr.AsBool())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"invalid activity filter %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	f.prg = prg
	return f, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.source }

// Match reports whether a satisfies the filter.
func (f *Filter) Match(a *schema.Activity) (bool, error) {
	if f.prg == nil {
		return true, nil
	}
	out, err := vm.Run(f.prg, env{
		ID:          a.ID,
		Tool:        a.Tool,
		Title:       a.Title,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
		Age:         f.now().Sub(a.CreatedAt).Hours(),
	})
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"activity filter %q failed: %s", f.source, err.Error()).WithCause(err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Apply returns the entries of list that match, preserving order.
func (f *Filter) Apply(list []*schema.Activity) ([]*schema.Activity, error) {
	if f.prg == nil {
		return list, nil
	}
	out := make([]*schema.Activity, 0, len(list))
	for _, a := range list {
		ok, err := f.Match(a)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}
