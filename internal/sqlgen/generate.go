// Package sqlgen renders Lambda IR queries as SQL against the per data type
// index tables of a structure schema.
//
// A predicate becomes a subquery selecting matching StructureIds. Each
// comparison or string operation is an EXISTS test against the index table
// of its member's data type, so it yields one truth value per structure and
// NOT, AND and OR combine those values as written. Each distinct member path
// gets one alias (mem0, mem1, ...), reused by every later reference to the
// same member. IR groups become parentheses as written. Parameters are named
// p0, p1, ... in IR value order.
//
// Every ordered query ends with StructureId ASC so results are deterministic
// even when ordering keys tie.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/roach88/structdb/internal/dialect"
	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/lambda"
	"github.com/roach88/structdb/internal/query"
	"github.com/roach88/structdb/internal/schema"
)

// Generator produces SQL for one dialect. It holds no per-query state and
// is safe for concurrent use.
type Generator struct {
	dialect *dialect.Provider
	cache   *PlanCache
}

// Option configures a Generator.
type Option func(*Generator)

// WithPlanCache reuses SQL text across queries with the same shape.
func WithPlanCache(c *PlanCache) Option {
	return func(g *Generator) {
		g.cache = c
	}
}

// NewGenerator creates a generator for d.
func NewGenerator(d *dialect.Provider, opts ...Option) *Generator {
	g := &Generator{dialect: d}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Cache returns the plan cache, or nil.
func (g *Generator) Cache() *PlanCache {
	return g.cache
}

// Dialect returns the dialect the generator renders for.
func (g *Generator) Dialect() *dialect.Provider {
	return g.dialect
}

// Generate renders q over s in the requested shape.
func (g *Generator) Generate(q query.Query, s *schema.StructureSchema, shape Shape) (SQLQuery, error) {
	if g.cache == nil {
		return g.generate(q, s, shape)
	}
	key := newPlanKey(q, s, shape)
	if text, ok := g.cache.get(key); ok {
		params, err := bindParams(q.Where, s)
		if err != nil {
			return SQLQuery{}, err
		}
		return SQLQuery{SQL: text, Params: params}, nil
	}
	out, err := g.generate(q, s, shape)
	if err != nil {
		return SQLQuery{}, err
	}
	g.cache.put(key, out.SQL)
	return out, nil
}

func (g *Generator) generate(q query.Query, s *schema.StructureSchema, shape Shape) (SQLQuery, error) {
	where, err := GenerateWhere(q.Where, s)
	if err != nil {
		return SQLQuery{}, err
	}

	var b strings.Builder
	switch shape {
	case Count:
		b.WriteString("SELECT COUNT(*) FROM [" + s.Tables.Structures + "] s")
		writeFilter(&b, s, where)
		return SQLQuery{SQL: b.String(), Params: where.Params}, nil
	case IdsOnly:
		b.WriteString("SELECT s.StructureId FROM [" + s.Tables.Structures + "] s")
	default:
		b.WriteString("SELECT s.StructureId, s.Json FROM [" + s.Tables.Structures + "] s")
	}

	sorts, err := sortJoins(q.Sortings, s)
	if err != nil {
		return SQLQuery{}, err
	}
	for _, j := range sorts {
		b.WriteString(" " + j.SQL("s"))
	}
	writeFilter(&b, s, where)

	b.WriteString(" ORDER BY ")
	for _, sm := range q.Sortings {
		fmt.Fprintf(&b, "%s.Value %s, ", sorts[sortAliasIndex(sorts, sm.Path)].Alias, sm.Direction)
	}
	b.WriteString("s.StructureId ASC")

	paging, err := g.paging(q)
	if err != nil {
		return SQLQuery{}, err
	}
	if paging != "" {
		b.WriteString(" " + paging)
	}
	return SQLQuery{SQL: b.String(), Params: where.Params}, nil
}

func writeFilter(b *strings.Builder, s *schema.StructureSchema, where Where) {
	if where.IsEmpty() {
		return
	}
	b.WriteString(" WHERE s.StructureId IN (SELECT m.StructureId FROM [" + s.Tables.Structures + "] m WHERE " + where.SQL + ")")
}

func (g *Generator) paging(q query.Query) (string, error) {
	switch {
	case q.HasTake && q.Skip > 0:
		return g.dialect.Templates.Format("Page", q.Skip, q.Take)
	case q.HasTake:
		return g.dialect.Templates.Format("Limit", q.Take)
	case q.Skip > 0:
		return g.dialect.Templates.Format("Offset", q.Skip)
	}
	return "", nil
}

// sortJoins allocates one srtN alias per distinct ordering path.
func sortJoins(sortings []lambda.SortingMember, s *schema.StructureSchema) ([]Join, error) {
	var joins []Join
	for _, sm := range sortings {
		if sortAliasIndex(joins, sm.Path) >= 0 {
			continue
		}
		f, ok := s.Field(sm.Path)
		if !ok {
			return nil, &UnresolvableMemberError{Schema: s.Name, Path: sm.Path, Reason: "no such member"}
		}
		if !f.Indexed {
			return nil, &UnresolvableMemberError{Schema: s.Name, Path: sm.Path, Reason: "member is not indexed"}
		}
		if f.Enumerable {
			return nil, &AmbiguousOrderingError{Schema: s.Name, Path: sm.Path, Reason: "collection members have no single value per structure"}
		}
		if !f.DataType.Orderable() {
			return nil, &AmbiguousOrderingError{Schema: s.Name, Path: sm.Path, Reason: fmt.Sprintf("%s values have no total order", f.DataType)}
		}
		table, err := s.Tables.IndexTable(f.DataType)
		if err != nil {
			return nil, err
		}
		joins = append(joins, Join{
			Alias:    fmt.Sprintf("srt%d", len(joins)),
			Table:    table,
			Path:     sm.Path,
			DataType: f.DataType,
		})
	}
	return joins, nil
}

// CheckSortings reports the first ordering key of sortings that cannot be
// rendered over s.
func CheckSortings(sortings []lambda.SortingMember, s *schema.StructureSchema) error {
	_, err := sortJoins(sortings, s)
	return err
}

func sortAliasIndex(joins []Join, path string) int {
	for i, j := range joins {
		if j.Path == path {
			return i
		}
	}
	return -1
}

// GenerateWhere renders a predicate. An empty sequence yields an empty
// Where that matches everything.
func GenerateWhere(nodes []lambda.Node, s *schema.StructureSchema) (Where, error) {
	if len(nodes) == 0 {
		return Where{}, nil
	}
	if err := lambda.Validate(nodes); err != nil {
		return Where{}, fmt.Errorf("generate where for %s: %w", s.Name, err)
	}

	w := &whereBuilder{s: s}
	for i := 0; i < len(nodes); i++ {
		switch n := nodes[i].(type) {
		case lambda.Member:
			j, err := w.join(n)
			if err != nil {
				return Where{}, err
			}
			switch next := nodes[i+1].(type) {
			case lambda.StringOp:
				p, err := w.param(j.DataType, likePattern(next))
				if err != nil {
					return Where{}, err
				}
				w.b.WriteString(j.Exists("m", fmt.Sprintf(`%s.Value LIKE %s ESCAPE '\'`, j.Alias, p)))
				i++
			case lambda.Operator:
				v := nodes[i+2].(lambda.Value)
				p, err := w.param(j.DataType, v.Value)
				if err != nil {
					return Where{}, err
				}
				// index tables hold no NULL values, so a null test asks
				// whether the member has any row at all
				switch next.Symbol {
				case lambda.OpIs:
					w.b.WriteString("NOT " + j.Exists("m", fmt.Sprintf("%s.Value IS NOT %s", j.Alias, p)))
				case lambda.OpIsNot:
					w.b.WriteString(j.Exists("m", fmt.Sprintf("%s.Value IS NOT %s", j.Alias, p)))
				default:
					w.b.WriteString(j.Exists("m", fmt.Sprintf("%s.Value %s %s", j.Alias, next.Symbol, p)))
				}
				i += 2
			}
		case lambda.Operator:
			switch n.Symbol {
			case lambda.OpAnd:
				w.b.WriteString(" AND ")
			case lambda.OpOr:
				w.b.WriteString(" OR ")
			case lambda.OpNot:
				w.b.WriteString("NOT ")
			}
		case lambda.StartGroup:
			w.b.WriteByte('(')
		case lambda.EndGroup:
			w.b.WriteByte(')')
		}
	}
	return Where{Joins: w.joins, SQL: w.b.String(), Params: w.params}, nil
}

type whereBuilder struct {
	s      *schema.StructureSchema
	b      strings.Builder
	joins  []Join
	params []Parameter
}

// join returns the alias for a member, allocating it on first reference.
func (w *whereBuilder) join(m lambda.Member) (Join, error) {
	f, err := resolve(w.s, m)
	if err != nil {
		return Join{}, err
	}
	for _, j := range w.joins {
		if j.Path == f.Path && j.DataType == f.DataType {
			return j, nil
		}
	}
	table, err := w.s.Tables.IndexTable(f.DataType)
	if err != nil {
		return Join{}, err
	}
	j := Join{
		Alias:    fmt.Sprintf("mem%d", len(w.joins)),
		Table:    table,
		Path:     f.Path,
		DataType: f.DataType,
	}
	w.joins = append(w.joins, j)
	return j, nil
}

func (w *whereBuilder) param(code schema.DataTypeCode, v any) (string, error) {
	sv, err := paramValue(code, v)
	if err != nil {
		return "", err
	}
	p := Parameter{Name: fmt.Sprintf("p%d", len(w.params)), Value: sv}
	w.params = append(w.params, p)
	return p.Placeholder(), nil
}

func resolve(s *schema.StructureSchema, m lambda.Member) (*schema.Field, error) {
	f, ok := s.Field(m.Path)
	if !ok {
		return nil, &UnresolvableMemberError{Schema: s.Name, Path: m.Path, Reason: "no such member"}
	}
	if !f.Indexed {
		return nil, &UnresolvableMemberError{Schema: s.Name, Path: m.Path, Reason: "member is not indexed"}
	}
	return f, nil
}

func paramValue(code schema.DataTypeCode, v any) (any, error) {
	sv, err := schema.StorageValue(code, v)
	if err != nil {
		return nil, fmt.Errorf("bind parameter: %w", err)
	}
	return sv, nil
}

// bindParams rebuilds the parameter list of nodes without rendering SQL.
// It yields exactly the parameters GenerateWhere would.
func bindParams(nodes []lambda.Node, s *schema.StructureSchema) ([]Parameter, error) {
	var params []Parameter
	var code schema.DataTypeCode
	for _, n := range nodes {
		var v any
		switch x := n.(type) {
		case lambda.Member:
			f, err := resolve(s, x)
			if err != nil {
				return nil, err
			}
			code = f.DataType
			continue
		case lambda.Value:
			v = x.Value
		case lambda.StringOp:
			v = likePattern(x)
		default:
			continue
		}
		sv, err := paramValue(code, v)
		if err != nil {
			return nil, err
		}
		params = append(params, Parameter{Name: fmt.Sprintf("p%d", len(params)), Value: sv})
	}
	return params, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds the LIKE pattern of a string operation, escaping the
// operation's literal so it only matches itself.
func likePattern(op lambda.StringOp) string {
	v := likeEscaper.Replace(op.Value)
	switch op.Kind {
	case lambda.StartsWith:
		return v + "%"
	case lambda.EndsWith:
		return "%" + v
	default:
		return "%" + v + "%"
	}
}

// GenerateGetByIDs returns one query per batch of at most
// MaxBatchedIdsSize ids.
func (g *Generator) GenerateGetByIDs(s *schema.StructureSchema, idList []ids.StructureID) ([]SQLQuery, error) {
	return g.byIDs("GetByIds", s.Tables.Structures, idList)
}

// GenerateDeleteByIDs returns, per table of s, one delete per batch of ids.
// Index and unique rows come before the structure rows.
func (g *Generator) GenerateDeleteByIDs(s *schema.StructureSchema, idList []ids.StructureID) ([]SQLQuery, error) {
	tables := append(s.Tables.IndexTables(), s.Tables.Uniques, s.Tables.Structures)
	var out []SQLQuery
	for _, t := range tables {
		qs, err := g.byIDs("DeleteByStructureIds", t, idList)
		if err != nil {
			return nil, err
		}
		out = append(out, qs...)
	}
	return out, nil
}

func (g *Generator) byIDs(template, table string, idList []ids.StructureID) ([]SQLQuery, error) {
	size := g.dialect.MaxBatchedIdsSize
	var out []SQLQuery
	for start := 0; start < len(idList); start += size {
		batch := idList[start:min(start+size, len(idList))]
		params := make([]Parameter, len(batch))
		holders := make([]string, len(batch))
		for i, id := range batch {
			params[i] = Parameter{Name: fmt.Sprintf("p%d", i), Value: id.Value()}
			holders[i] = params[i].Placeholder()
		}
		text, err := g.dialect.Templates.Format(template, table, strings.Join(holders, ", "))
		if err != nil {
			return nil, err
		}
		out = append(out, SQLQuery{SQL: text, Params: params})
	}
	return out, nil
}
