package lambda

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/structdb/internal/schema"
)

// Node is one element of a Lambda IR sequence.
//
// This is a sealed interface. Only types in this package implement it.
type Node interface {
	irNode()
	String() string
}

// Member references an indexed member by its dot-joined path.
type Member struct {
	Path       string
	DataType   schema.DataTypeCode
	Enumerable bool
}

// Operator symbols.
const (
	OpEqual        = "="
	OpNotEqual     = "<>"
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpAnd          = "and"
	OpOr           = "or"
	OpNot          = "not"
	OpIs           = "is"
	OpIsNot        = "is not"
)

// Operator is a comparison, logical or negation operator.
type Operator struct {
	Symbol string
}

// IsLogical reports whether the operator joins two units.
func (o Operator) IsLogical() bool {
	return o.Symbol == OpAnd || o.Symbol == OpOr
}

// IsComparison reports whether the operator sits between a Member and a Value.
func (o Operator) IsComparison() bool {
	switch o.Symbol {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpIs, OpIsNot:
		return true
	}
	return false
}

// Value is a literal already coerced to its member's data type.
// Nil only follows the is/is not operators.
type Value struct {
	Value any
}

// StartGroup opens a parenthesized subexpression.
type StartGroup struct{}

// EndGroup closes the innermost StartGroup.
type EndGroup struct{}

// StringOpKind is the string operation of a StringOp.
type StringOpKind int

const (
	Contains StringOpKind = iota + 1
	StartsWith
	EndsWith
)

func (k StringOpKind) String() string {
	switch k {
	case Contains:
		return "Contains"
	case StartsWith:
		return "StartsWith"
	case EndsWith:
		return "EndsWith"
	}
	return fmt.Sprintf("StringOpKind(%d)", int(k))
}

// StringOp applies a string operation with a literal to the preceding Member.
type StringOp struct {
	Kind  StringOpKind
	Value string
}

func (Member) irNode()     {}
func (Operator) irNode()   {}
func (Value) irNode()      {}
func (StartGroup) irNode() {}
func (EndGroup) irNode()   {}
func (StringOp) irNode()   {}

func (m Member) String() string   { return "Member(" + m.Path + ")" }
func (o Operator) String() string { return "Operator(" + o.Symbol + ")" }
func (v Value) String() string    { return "Value(" + formatValue(v.Value) + ")" }
func (StartGroup) String() string { return "StartGroup" }
func (EndGroup) String() string   { return "EndGroup" }
func (s StringOp) String() string { return fmt.Sprintf("StringOp(%s %q)", s.Kind, s.Value) }

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// Format renders a node sequence on one line, e.g.
// "Member(Score) Operator(>) Value(10)".
func Format(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, " ")
}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// SortingMember is one compiled ordering key.
type SortingMember struct {
	Path       string
	DataType   schema.DataTypeCode
	Enumerable bool
	Direction  Direction
}

func (s SortingMember) String() string {
	return s.Path + " " + s.Direction.String()
}

// Values returns the literals carried by nodes in encounter order: one per
// Value node and one per StringOp.
func Values(nodes []Node) []any {
	var out []any
	for _, n := range nodes {
		switch v := n.(type) {
		case Value:
			out = append(out, v.Value)
		case StringOp:
			out = append(out, v.Value)
		}
	}
	return out
}
