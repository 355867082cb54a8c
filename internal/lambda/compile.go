package lambda

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/structdb/internal/expr"
	"github.com/roach88/structdb/internal/schema"
)

// Resolver looks up schema members by path. *schema.StructureSchema
// satisfies it. A nil Resolver infers every data type from its literal.
type Resolver interface {
	Field(path string) (*schema.Field, bool)
}

var comparisonSymbols = map[expr.Op]string{
	expr.OpEq: OpEqual,
	expr.OpNe: OpNotEqual,
	expr.OpLt: OpLess,
	expr.OpLe: OpLessEqual,
	expr.OpGt: OpGreater,
	expr.OpGe: OpGreaterEqual,
}

// flipped maps an operator to its mirror for "literal op member" operands.
var flipped = map[string]string{
	OpEqual:        OpEqual,
	OpNotEqual:     OpNotEqual,
	OpLess:         OpGreater,
	OpLessEqual:    OpGreaterEqual,
	OpGreater:      OpLess,
	OpGreaterEqual: OpLessEqual,
}

// Compile compiles a boolean predicate into an IR sequence.
func Compile(l *expr.Lambda, r Resolver) ([]Node, error) {
	if l == nil {
		return nil, nil
	}
	c := newCompiler(l, r)
	if err := c.predicate(l.Body); err != nil {
		return nil, err
	}
	return c.nodes, nil
}

// CompileSource parses src and compiles it as a predicate.
func CompileSource(src string, r Resolver) ([]Node, error) {
	l, err := expr.Parse(src)
	if err != nil {
		return nil, err
	}
	return Compile(l, r)
}

// CompileOrderBy compiles an ordering key selector.
func CompileOrderBy(l *expr.Lambda, r Resolver, dir Direction) (SortingMember, error) {
	c := newCompiler(l, r)
	m, ok := c.member(l.Body)
	if !ok {
		return SortingMember{}, unsupported(l.Body, "ordering key must be a member")
	}
	return SortingMember{Path: m.Path, DataType: m.DataType, Enumerable: m.Enumerable, Direction: dir}, nil
}

// CompileSelect compiles a projection into member paths. The body is a
// single member or new(a, b, ...).
func CompileSelect(l *expr.Lambda, r Resolver) ([]string, error) {
	c := newCompiler(l, r)
	args := []expr.Expr{l.Body}
	if n, ok := l.Body.(*expr.New); ok {
		args = n.Args
	}
	paths := make([]string, 0, len(args))
	for _, a := range args {
		m, ok := c.member(a)
		if !ok {
			return nil, unsupported(a, "projection arguments must be members")
		}
		paths = append(paths, m.Path)
	}
	return paths, nil
}

type compiler struct {
	r        Resolver
	bindings map[*expr.Param]string
	nodes    []Node
}

func newCompiler(l *expr.Lambda, r Resolver) *compiler {
	return &compiler{
		r:        r,
		bindings: map[*expr.Param]string{l.Param: ""},
	}
}

func (c *compiler) emit(n ...Node) {
	c.nodes = append(c.nodes, n...)
}

func unsupported(e expr.Expr, reason string) error {
	return &UnsupportedExpressionError{Expr: expr.Format(e), Reason: reason}
}

func (c *compiler) predicate(e expr.Expr) error {
	switch n := e.(type) {
	case *expr.Binary:
		if n.Op.IsLogical() {
			return c.logical(n)
		}
		return c.comparison(n)
	case *expr.Not:
		return c.not(n)
	case *expr.Member, *expr.Param:
		m, ok := c.member(n)
		if !ok {
			return unsupported(e, "not a member")
		}
		if err := c.requireBool(m, e); err != nil {
			return err
		}
		c.emit(c.typed(m, true), Operator{Symbol: OpEqual}, Value{Value: true})
		return nil
	case *expr.Call:
		return c.call(n)
	}
	return unsupported(e, "not a boolean expression")
}

func (c *compiler) requireBool(m Member, e expr.Expr) error {
	if m.DataType != schema.Bool && m.DataType != schema.Unknown {
		return unsupported(e, fmt.Sprintf("member %s is %s, not Bool", m.Path, m.DataType))
	}
	return nil
}

func (c *compiler) logical(b *expr.Binary) error {
	symbol := OpAnd
	if b.Op == expr.OpOrElse {
		symbol = OpOr
	}
	if err := c.operand(b.Left, b.Op, true); err != nil {
		return err
	}
	c.emit(Operator{Symbol: symbol})
	return c.operand(b.Right, b.Op, false)
}

// operand compiles one side of a logical operator, grouping it unless it is
// the left operand with the same operator.
func (c *compiler) operand(e expr.Expr, parent expr.Op, left bool) error {
	child, ok := e.(*expr.Binary)
	if !ok || !child.Op.IsLogical() || (left && child.Op == parent) {
		return c.predicate(e)
	}
	c.emit(StartGroup{})
	if err := c.predicate(e); err != nil {
		return err
	}
	c.emit(EndGroup{})
	return nil
}

func (c *compiler) not(n *expr.Not) error {
	if m, ok := c.member(n.X); ok {
		if err := c.requireBool(m, n); err != nil {
			return err
		}
		c.emit(c.typed(m, false), Operator{Symbol: OpEqual}, Value{Value: false})
		return nil
	}
	c.emit(Operator{Symbol: OpNot}, StartGroup{})
	if err := c.predicate(n.X); err != nil {
		return err
	}
	c.emit(EndGroup{})
	return nil
}

func (c *compiler) comparison(b *expr.Binary) error {
	symbol, ok := comparisonSymbols[b.Op]
	if !ok {
		return unsupported(b, "unknown operator")
	}

	m, isMember := c.member(b.Left)
	lit, isConst := b.Right.(*expr.Const)
	if !isMember || !isConst {
		m, isMember = c.member(b.Right)
		lit, isConst = b.Left.(*expr.Const)
		if !isMember || !isConst {
			return unsupported(b, "comparisons need one member and one literal")
		}
		symbol = flipped[symbol]
	}

	if lit.Value == nil {
		switch symbol {
		case OpEqual:
			symbol = OpIs
		case OpNotEqual:
			symbol = OpIsNot
		default:
			return unsupported(b, "null only compares with == or !=")
		}
		c.emit(c.typed(m, nil), Operator{Symbol: symbol}, Value{Value: nil})
		return nil
	}

	m = c.typed(m, lit.Value)
	v, err := Coerce(m.DataType, lit.Value)
	if err != nil {
		return unsupported(b, err.Error())
	}
	c.emit(m, Operator{Symbol: symbol}, Value{Value: v})
	return nil
}

var stringOps = map[string]StringOpKind{
	"contains":   Contains,
	"startswith": StartsWith,
	"endswith":   EndsWith,
}

func (c *compiler) call(n *expr.Call) error {
	method := strings.ToLower(n.Method)
	if method == "any" {
		return c.any(n)
	}

	kind, ok := stringOps[method]
	if !ok {
		return unsupported(n, fmt.Sprintf("method %s is not supported", n.Method))
	}
	m, ok := c.member(n.Recv)
	if !ok {
		return unsupported(n, "receiver must be a member")
	}
	if len(n.Args) != 1 {
		return unsupported(n, fmt.Sprintf("%s takes one argument", n.Method))
	}
	lit, ok := n.Args[0].(*expr.Const)
	if !ok || lit.Value == nil {
		return unsupported(n, fmt.Sprintf("%s needs a literal argument", n.Method))
	}

	// Contains on a collection member tests element equality.
	if kind == Contains && m.Enumerable {
		v, err := Coerce(m.DataType, lit.Value)
		if err != nil {
			return unsupported(n, err.Error())
		}
		c.emit(m, Operator{Symbol: OpEqual}, Value{Value: v})
		return nil
	}

	s, ok := lit.Value.(string)
	if !ok {
		return unsupported(n, fmt.Sprintf("%s needs a string argument", n.Method))
	}
	m = c.typed(m, s)
	switch m.DataType {
	case schema.String, schema.Text, schema.Enum:
	default:
		return unsupported(n, fmt.Sprintf("%s applies to strings, member %s is %s", n.Method, m.Path, m.DataType))
	}
	c.emit(m, StringOp{Kind: kind, Value: s})
	return nil
}

// any binds the quantifier parameter to the collection path and compiles
// the inner predicate against it.
func (c *compiler) any(n *expr.Call) error {
	prefix, ok := c.path(n.Recv)
	if !ok || prefix == "" {
		return unsupported(n, "Any receiver must be a collection member")
	}
	if len(n.Args) != 1 {
		return unsupported(n, "Any takes one predicate")
	}
	inner, ok := n.Args[0].(*expr.Lambda)
	if !ok {
		return unsupported(n, "Any takes a lambda predicate")
	}
	c.bindings[inner.Param] = prefix
	defer delete(c.bindings, inner.Param)
	return c.predicate(inner.Body)
}

// path resolves member access chains to a dot-joined path. The root
// parameter resolves to "", quantifier parameters to their collection path.
func (c *compiler) path(e expr.Expr) (string, bool) {
	switch n := e.(type) {
	case *expr.Param:
		p, ok := c.bindings[n]
		return p, ok
	case *expr.Member:
		prefix, ok := c.path(n.X)
		if !ok {
			return "", false
		}
		if prefix == "" {
			return n.Name, true
		}
		return prefix + "." + n.Name, true
	}
	return "", false
}

// member resolves e to a Member node. Unknown paths get DataType Unknown
// until typed by a literal.
func (c *compiler) member(e expr.Expr) (Member, bool) {
	p, ok := c.path(e)
	if !ok || p == "" {
		return Member{}, false
	}
	m := Member{Path: p}
	if c.r != nil {
		if f, ok := c.r.Field(p); ok {
			m.DataType = f.DataType
			m.Enumerable = f.Enumerable
		}
	}
	return m, true
}

// typed fills in the data type of an unresolved member from its literal.
func (c *compiler) typed(m Member, lit any) Member {
	if m.DataType == schema.Unknown {
		m.DataType = InferDataType(lit)
	}
	return m
}

// InferDataType maps a literal to the data type it would be stored as.
func InferDataType(v any) schema.DataTypeCode {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return schema.IntegerNumber
	case float32, float64:
		return schema.FractalNumber
	case bool:
		return schema.Bool
	case time.Time:
		return schema.DateTime
	case uuid.UUID:
		return schema.Guid
	case string:
		return schema.String
	case fmt.Stringer:
		return schema.Enum
	}
	return schema.Unknown
}

// Coerce converts a literal to the Go type of code: int64, float64, bool,
// time.Time, uuid.UUID or string. String literals are parsed for DateTime
// and Guid members.
func Coerce(code schema.DataTypeCode, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch code {
	case schema.IntegerNumber:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			return schema.Float64ToInt64(n)
		}
	case schema.FractalNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case schema.Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.DateTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				parsed, err = time.Parse("2006-01-02", t)
			}
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as %s", t, code)
			}
			return parsed.UTC(), nil
		}
	case schema.Guid:
		switch g := v.(type) {
		case uuid.UUID:
			return g, nil
		case string:
			parsed, err := uuid.Parse(g)
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as %s", g, code)
			}
			return parsed, nil
		}
	case schema.String, schema.Text:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case schema.Enum:
		switch s := v.(type) {
		case string:
			return s, nil
		case fmt.Stringer:
			return s.String(), nil
		}
	case schema.Unknown:
		return v, nil
	}
	return nil, fmt.Errorf("cannot compare %s member with %T literal", code, v)
}
