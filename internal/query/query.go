// Package query holds the compiled form of a structure query and a fluent
// builder for it.
package query

import (
	"fmt"

	"github.com/roach88/structdb/internal/expr"
	"github.com/roach88/structdb/internal/lambda"
)

// Query is a compiled where/order/paging/projection request.
// A nil Where matches every structure.
type Query struct {
	Where      []lambda.Node
	Sortings   []lambda.SortingMember
	Skip       int
	Take       int
	HasTake    bool
	Projection []string
}

// HasPaging reports whether the query limits its result window.
func (q Query) HasPaging() bool {
	return q.Skip > 0 || q.HasTake
}

func (q Query) String() string {
	s := "where: " + lambda.Format(q.Where)
	if len(q.Where) == 0 {
		s = "where: <all>"
	}
	for _, sm := range q.Sortings {
		s += "; order: " + sm.String()
	}
	if q.Skip > 0 {
		s += fmt.Sprintf("; skip: %d", q.Skip)
	}
	if q.HasTake {
		s += fmt.Sprintf("; take: %d", q.Take)
	}
	return s
}

// Builder assembles a Query. The first error sticks and is returned by Build.
type Builder struct {
	r          lambda.Resolver
	predicates [][]lambda.Node
	q          Query
	err        error
}

// NewBuilder starts a query over the members of r.
func NewBuilder(r lambda.Resolver) *Builder {
	return &Builder{r: r}
}

// Where adds a predicate in text form. Multiple predicates combine with and.
func (b *Builder) Where(src string) *Builder {
	if b.err != nil {
		return b
	}
	l, err := expr.Parse(src)
	if err != nil {
		b.err = err
		return b
	}
	return b.WhereExpr(l)
}

// WhereExpr adds a parsed predicate.
func (b *Builder) WhereExpr(l *expr.Lambda) *Builder {
	if b.err != nil {
		return b
	}
	nodes, err := lambda.Compile(l, b.r)
	if err != nil {
		b.err = err
		return b
	}
	if len(nodes) > 0 {
		b.predicates = append(b.predicates, nodes)
	}
	return b
}

// OrderBy adds an ascending ordering key.
func (b *Builder) OrderBy(src string) *Builder {
	return b.orderBy(src, lambda.Ascending)
}

// OrderByDescending adds a descending ordering key.
func (b *Builder) OrderByDescending(src string) *Builder {
	return b.orderBy(src, lambda.Descending)
}

func (b *Builder) orderBy(src string, dir lambda.Direction) *Builder {
	if b.err != nil {
		return b
	}
	l, err := expr.Parse(src)
	if err != nil {
		b.err = err
		return b
	}
	sm, err := lambda.CompileOrderBy(l, b.r, dir)
	if err != nil {
		b.err = err
		return b
	}
	b.q.Sortings = append(b.q.Sortings, sm)
	return b
}

// Skip moves the window start forward by n. After Take, the window
// shrinks by the same amount.
func (b *Builder) Skip(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n < 0 {
		b.err = fmt.Errorf("skip must not be negative: %d", n)
		return b
	}
	b.q.Skip += n
	if b.q.HasTake {
		b.q.Take = max(b.q.Take-n, 0)
	}
	return b
}

// Take limits the window to at most n rows. Repeated Takes keep the smallest.
func (b *Builder) Take(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n < 0 {
		b.err = fmt.Errorf("take must not be negative: %d", n)
		return b
	}
	if b.q.HasTake {
		n = min(b.q.Take, n)
	}
	b.q.Take = n
	b.q.HasTake = true
	return b
}

// Page selects page index (zero based) of the given size.
func (b *Builder) Page(index, size int) *Builder {
	if index < 0 || size <= 0 {
		if b.err == nil {
			b.err = fmt.Errorf("invalid page %d of size %d", index, size)
		}
		return b
	}
	return b.Skip(index * size).Take(size)
}

// First limits the window to one row.
func (b *Builder) First() *Builder {
	return b.Take(1)
}

// Single limits the window to one row.
func (b *Builder) Single() *Builder {
	return b.Take(1)
}

// Select sets the projection.
func (b *Builder) Select(src string) *Builder {
	if b.err != nil {
		return b
	}
	l, err := expr.Parse(src)
	if err != nil {
		b.err = err
		return b
	}
	paths, err := lambda.CompileSelect(l, b.r)
	if err != nil {
		b.err = err
		return b
	}
	b.q.Projection = paths
	return b
}

// Build returns the assembled query.
func (b *Builder) Build() (Query, error) {
	if b.err != nil {
		return Query{}, b.err
	}
	q := b.q
	q.Where = Combine(b.predicates...)
	return q, nil
}

// Combine joins predicate sequences with and. A single sequence is returned
// unchanged; with several, each is wrapped in its own group.
func Combine(predicates ...[]lambda.Node) []lambda.Node {
	switch len(predicates) {
	case 0:
		return nil
	case 1:
		return predicates[0]
	}
	var out []lambda.Node
	for i, p := range predicates {
		if i > 0 {
			out = append(out, lambda.Operator{Symbol: lambda.OpAnd})
		}
		out = append(out, lambda.StartGroup{})
		out = append(out, p...)
		out = append(out, lambda.EndGroup{})
	}
	return out
}
