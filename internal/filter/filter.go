// Package filter evaluates user-supplied boolean expressions against papers,
// e.g. `year >= 2017 && has_pdf` or `author contains "Hinton"`.
package filter

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// ErrInvalidFilter wraps compile and evaluation failures. It matches
// types.ErrInvalidContent.
var ErrInvalidFilter = fmt.Errorf("%w: invalid filter expression", types.ErrInvalidContent)

// Filter is a compiled expression. It is safe to reuse across papers.
type Filter struct {
	source  string
	program *vm.Program
}

// Compile parses expression. The expression must evaluate to a bool and may
// refer to: id, title, author, year (int, 0 when unknown), doi, key, notes,
// has_pdf, fields (map of every stored field), created_at and
// last_accessed (time values).
func Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("%w: expression must not be empty", ErrInvalidFilter)
	}
	program, err := expr.Compile(expression,
		expr.Env(env(&types.Paper{Fields: map[string]string{}})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return &Filter{source: expression, program: program}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.source
}

// Match reports whether p satisfies the filter.
func (f *Filter) Match(p *types.Paper) (bool, error) {
	out, err := expr.Run(f.program, env(p))
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, p.ShortID(), err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Apply returns the papers that satisfy the filter, in their original order.
func (f *Filter) Apply(papers []*types.Paper) ([]*types.Paper, error) {
	var out []*types.Paper
	for _, p := range papers {
		ok, err := f.Match(p)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func env(p *types.Paper) map[string]any {
	fields := p.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	return map[string]any{
		"id":            p.PaperID,
		"title":         fields[types.FieldTitle],
		"author":        fields[types.FieldAuthor],
		"year":          p.Year(),
		"doi":           fields[types.FieldDOI],
		"key":           fields[types.FieldKey],
		"notes":         p.Notes,
		"has_pdf":       p.HasPDF(),
		"fields":        fields,
		"created_at":    p.CreatedAt,
		"last_accessed": p.LastAccessed,
	}
}
