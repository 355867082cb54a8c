package sqlgen

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/structdb/internal/schema"
)

// Shape selects what a generated query returns.
type Shape int

const (
	// FullRows returns StructureId and Json of every match.
	FullRows Shape = iota
	// IdsOnly returns only StructureId.
	IdsOnly
	// Count returns one scalar row. Ordering and paging are ignored.
	Count
)

func (s Shape) String() string {
	switch s {
	case IdsOnly:
		return "ids"
	case Count:
		return "count"
	default:
		return "rows"
	}
}

// ParseShape parses the names produced by Shape.String.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(s) {
	case "rows", "":
		return FullRows, nil
	case "ids":
		return IdsOnly, nil
	case "count":
		return Count, nil
	}
	return 0, fmt.Errorf("unknown shape %q (want rows, ids or count)", s)
}

// Parameter is one bound value. Names are p0, p1, ... in emission order.
type Parameter struct {
	Name  string
	Value any
}

// Placeholder is the parameter reference used in SQL text.
func (p Parameter) Placeholder() string {
	return "@" + p.Name
}

// SQLQuery is generated SQL text with its parameters.
type SQLQuery struct {
	SQL    string
	Params []Parameter
}

// Args returns the parameters as named arguments for database/sql.
func (q SQLQuery) Args() []any {
	out := make([]any, len(q.Params))
	for i, p := range q.Params {
		out[i] = sql.Named(p.Name, p.Value)
	}
	return out
}

// String renders the SQL followed by one comment line per parameter.
func (q SQLQuery) String() string {
	var b strings.Builder
	b.WriteString(q.SQL)
	b.WriteByte('\n')
	for _, p := range q.Params {
		fmt.Fprintf(&b, "-- %s = %s\n", p.Placeholder(), formatParam(p.Value))
	}
	return b.String()
}

func formatParam(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q (string)", x)
	default:
		return fmt.Sprintf("%v (%T)", x, x)
	}
}

// Join binds an alias to the index table holding one member path.
type Join struct {
	Alias    string
	Table    string
	Path     string
	DataType schema.DataTypeCode
}

// SQL renders the join against the structure alias root. Ordering keys use
// it; collection members never reach it.
func (j Join) SQL(root string) string {
	return fmt.Sprintf("LEFT JOIN [%s] %s ON %s.StructureId = %s.StructureId AND %s.MemberPath = %s",
		j.Table, j.Alias, j.Alias, root, j.Alias, quoteLiteral(j.Path))
}

// Exists renders a test that some index row of the member, belonging to the
// structure alias root, satisfies cond.
func (j Join) Exists(root, cond string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM [%s] %s WHERE %s.StructureId = %s.StructureId AND %s.MemberPath = %s AND %s)",
		j.Table, j.Alias, j.Alias, root, j.Alias, quoteLiteral(j.Path), cond)
}

// Where is the SQL rendering of a predicate: the member aliases it binds,
// its boolean expression and the parameters referenced from it.
type Where struct {
	Joins  []Join
	SQL    string
	Params []Parameter
}

// IsEmpty reports whether the predicate matches everything.
func (w Where) IsEmpty() bool {
	return w.SQL == ""
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
