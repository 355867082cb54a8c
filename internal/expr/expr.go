// Package expr is a closed expression tree for typed predicates, ordering
// keys and projections, plus a parser for their text form.
//
// The text form follows lambda syntax:
//
//	x => x.Score > 10 && x.Items.Any(i => i.Value == 42)
//
// A source without a leading "x =>" binds an implicit root parameter, so
// "Score > 10" and "x => x.Score > 10" parse to equivalent trees.
//
// Expr is a sealed interface. Only types in this package implement it, so
// consumers can switch exhaustively over the node kinds.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Expr is one node of an expression tree.
type Expr interface {
	exprNode()
}

// Op is a binary operator.
type Op int

const (
	OpEq Op = iota + 1
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAndAlso
	OpOrElse
)

var opText = map[Op]string{
	OpEq:      "==",
	OpNe:      "!=",
	OpLt:      "<",
	OpLe:      "<=",
	OpGt:      ">",
	OpGe:      ">=",
	OpAndAlso: "&&",
	OpOrElse:  "||",
}

func (o Op) String() string {
	if s, ok := opText[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// IsLogical reports whether o combines boolean operands.
func (o Op) IsLogical() bool {
	return o == OpAndAlso || o == OpOrElse
}

// IsComparison reports whether o compares two values.
func (o Op) IsComparison() bool {
	return o >= OpEq && o <= OpGe
}

// Param references a lambda parameter. The implicit root parameter of a
// bare expression has Implicit set.
type Param struct {
	Name     string
	Implicit bool
}

// Member is property access X.Name.
type Member struct {
	X    Expr
	Name string
}

// Const is a literal. Value is one of int64, float64, string, bool,
// time.Time, [16]byte-compatible guid types, or nil.
type Const struct {
	Value any
}

// Binary is Left Op Right.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

// Not is logical negation.
type Not struct {
	X Expr
}

// Call is a method call Recv.Method(Args...).
type Call struct {
	Recv   Expr
	Method string
	Args   []Expr
}

// Lambda is Param => Body.
type Lambda struct {
	Param *Param
	Body  Expr
}

// New builds a projection from a list of member expressions.
type New struct {
	Args []Expr
}

func (*Param) exprNode()  {}
func (*Member) exprNode() {}
func (*Const) exprNode()  {}
func (*Binary) exprNode() {}
func (*Not) exprNode()    {}
func (*Call) exprNode()   {}
func (*Lambda) exprNode() {}
func (*New) exprNode()    {}

// Format renders e back into the text form. Parse(Format(l)) yields an
// equivalent tree.
func Format(e Expr) string {
	var b strings.Builder
	format(&b, e)
	return b.String()
}

func format(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		b.WriteString("<nil>")
	case *Param:
		if n.Implicit {
			return
		}
		b.WriteString(n.Name)
	case *Member:
		if p, ok := n.X.(*Param); ok && p.Implicit {
			b.WriteString(n.Name)
			return
		}
		format(b, n.X)
		b.WriteByte('.')
		b.WriteString(n.Name)
	case *Const:
		b.WriteString(formatConst(n.Value))
	case *Binary:
		b.WriteByte('(')
		format(b, n.Left)
		b.WriteString(" " + n.Op.String() + " ")
		format(b, n.Right)
		b.WriteByte(')')
	case *Not:
		b.WriteByte('!')
		format(b, n.X)
	case *Call:
		format(b, n.Recv)
		b.WriteString("." + n.Method + "(")
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, a)
		}
		b.WriteByte(')')
	case *Lambda:
		if !n.Param.Implicit {
			b.WriteString(n.Param.Name + " => ")
		}
		format(b, n.Body)
	case *New:
		b.WriteString("new(")
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, a)
		}
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "%T", e)
	}
}

func formatConst(v any) string {
	switch c := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(c)
	case time.Time:
		return strconv.Quote(c.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return strconv.Quote(c.String())
	default:
		return fmt.Sprint(c)
	}
}
