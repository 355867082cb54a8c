package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/structdb/internal/query"
)

// QuerySpec is a named query declared next to the structures it reads.
type QuerySpec struct {
	Name      string     `json:"name"`
	Structure string     `json:"structure"`
	Where     []string   `json:"where,omitempty"`
	OrderBy   []Ordering `json:"order_by,omitempty"`
	Skip      int        `json:"skip,omitempty"`
	Take      *int       `json:"take,omitempty"`
	Select    string     `json:"select,omitempty"`
}

// Ordering is one order_by entry.
type Ordering struct {
	Member     string `json:"member"`
	Descending bool   `json:"descending,omitempty"`
}

// Apply adds the query's clauses to b. It has the signature of a db query
// function so a spec can be passed where one is expected.
func (q QuerySpec) Apply(b *query.Builder) *query.Builder {
	for _, w := range q.Where {
		b = b.Where(w)
	}
	for _, o := range q.OrderBy {
		if o.Descending {
			b = b.OrderByDescending(o.Member)
		} else {
			b = b.OrderBy(o.Member)
		}
	}
	if q.Skip > 0 {
		b = b.Skip(q.Skip)
	}
	if q.Take != nil {
		b = b.Take(*q.Take)
	}
	if q.Select != "" {
		b = b.Select(q.Select)
	}
	return b
}

// CompileQuery parses a CUE value into a QuerySpec.
//
// The CUE value should be the query struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`query: topScorers: { structure: "Person", where: "Score > 10" }`)
//	spec, err := CompileQuery(v.LookupPath(cue.ParsePath("query.topScorers")))
func CompileQuery(v cue.Value) (*QuerySpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &QuerySpec{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = unquote(labels[len(labels)-1].String())
	}

	structVal := v.LookupPath(cue.ParsePath("structure"))
	if !structVal.Exists() {
		return nil, &CompileError{
			Field:   "structure",
			Message: "structure is required",
			Pos:     v.Pos(),
		}
	}
	s, err := structVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Structure = s

	spec.Where, err = parseWhere(v)
	if err != nil {
		return nil, err
	}

	spec.OrderBy, err = parseOrderBy(v)
	if err != nil {
		return nil, err
	}

	if skipVal := v.LookupPath(cue.ParsePath("skip")); skipVal.Exists() {
		n, err := skipVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Skip = int(n)
	}
	if takeVal := v.LookupPath(cue.ParsePath("take")); takeVal.Exists() {
		n, err := takeVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		take := int(n)
		spec.Take = &take
	}

	if selectVal := v.LookupPath(cue.ParsePath("select")); selectVal.Exists() {
		sel, err := selectVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Select = sel
	}

	return spec, nil
}

// parseWhere supports a single predicate string or a list of predicates
// combined with and.
func parseWhere(v cue.Value) ([]string, error) {
	whereVal := v.LookupPath(cue.ParsePath("where"))
	if !whereVal.Exists() {
		return nil, nil
	}
	if s, err := whereVal.String(); err == nil {
		return []string{s}, nil
	}
	iter, err := whereVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "where",
			Message: "must be a predicate string or a list of them",
			Pos:     whereVal.Pos(),
		}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// parseOrderBy supports:
// - a member string: order_by: "Score"
// - an object: order_by: { member: "Score", descending: true }
// - a list of strings or objects
func parseOrderBy(v cue.Value) ([]Ordering, error) {
	orderVal := v.LookupPath(cue.ParsePath("order_by"))
	if !orderVal.Exists() {
		return nil, nil
	}
	if orderVal.IncompleteKind() != cue.ListKind {
		o, err := parseOrdering(orderVal)
		if err != nil {
			return nil, err
		}
		return []Ordering{o}, nil
	}

	iter, err := orderVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []Ordering
	for iter.Next() {
		o, err := parseOrdering(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func parseOrdering(v cue.Value) (Ordering, error) {
	if s, err := v.String(); err == nil {
		return Ordering{Member: s}, nil
	}

	memberVal := v.LookupPath(cue.ParsePath("member"))
	if !memberVal.Exists() {
		return Ordering{}, &CompileError{
			Field:   "order_by",
			Message: "must be a member string or object with member field",
			Pos:     v.Pos(),
		}
	}
	member, err := memberVal.String()
	if err != nil {
		return Ordering{}, formatCUEError(err)
	}
	o := Ordering{Member: member}
	if descVal := v.LookupPath(cue.ParsePath("descending")); descVal.Exists() {
		o.Descending, err = descVal.Bool()
		if err != nil {
			return Ordering{}, formatCUEError(err)
		}
	}
	return o, nil
}

func (q QuerySpec) String() string {
	return fmt.Sprintf("%s over %s", q.Name, q.Structure)
}
