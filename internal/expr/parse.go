package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

// ImplicitParam is the name bound to the root parameter of a bare expression.
const ImplicitParam = "it"

// ParseError reports malformed expression text. Pos is a byte offset.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse expression at offset %d: %s", e.Pos, e.Message)
}

// IsParseError returns true if err is a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokPunct
)

type token struct {
	kind tokKind
	text string
	pos  int
}

// Parse parses a lambda or a bare expression.
func Parse(src string) (*Lambda, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	var root *Param
	if p.peek().kind == tokIdent && p.peekAt(1).text == "=>" {
		root = &Param{Name: p.next().text}
		p.next()
	} else {
		root = &Param{Name: ImplicitParam, Implicit: true}
	}
	p.scopes = []*Param{root}

	body, err := p.parseLambdaBody()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("unexpected %q", t.text)}
	}
	return &Lambda{Param: root, Body: body}, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or with constant sources.
func MustParse(src string) *Lambda {
	l, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return l
}

func lex(src string) ([]token, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanRawStrings
	var scanErr *ParseError
	s.Error = func(s *scanner.Scanner, msg string) {
		if scanErr == nil {
			scanErr = &ParseError{Pos: s.Pos().Offset, Message: msg}
		}
	}

	var toks []token
	for {
		r := s.Scan()
		if scanErr != nil {
			return nil, scanErr
		}
		pos := s.Position.Offset
		switch r {
		case scanner.EOF:
			return append(toks, token{kind: tokEOF, pos: len(src)}), nil
		case scanner.Ident:
			toks = append(toks, token{kind: tokIdent, text: s.TokenText(), pos: pos})
		case scanner.Int:
			toks = append(toks, token{kind: tokInt, text: s.TokenText(), pos: pos})
		case scanner.Float:
			toks = append(toks, token{kind: tokFloat, text: s.TokenText(), pos: pos})
		case scanner.String, scanner.RawString:
			text, err := strconv.Unquote(s.TokenText())
			if err != nil {
				return nil, &ParseError{Pos: pos, Message: "invalid string literal"}
			}
			toks = append(toks, token{kind: tokString, text: text, pos: pos})
		default:
			text := string(r)
			switch r {
			case '=':
				switch s.Peek() {
				case '=', '>':
					text += string(s.Next())
				default:
					return nil, &ParseError{Pos: pos, Message: "use == for equality"}
				}
			case '!', '<', '>':
				if s.Peek() == '=' {
					text += string(s.Next())
				}
			case '&', '|':
				if s.Peek() != r {
					return nil, &ParseError{Pos: pos, Message: fmt.Sprintf("expected %c%c", r, r)}
				}
				text += string(s.Next())
			case '.', '(', ')', ',', '-':
			default:
				return nil, &ParseError{Pos: pos, Message: fmt.Sprintf("unexpected character %q", r)}
			}
			toks = append(toks, token{kind: tokPunct, text: text, pos: pos})
		}
	}
}

type parser struct {
	toks   []token
	i      int
	scopes []*Param
}

func (p *parser) peek() token { return p.peekAt(0) }

func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() token {
	t := p.peek()
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t
}

func (p *parser) accept(text string) bool {
	if t := p.peek(); t.kind == tokPunct && t.text == text {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		t := p.peek()
		return &ParseError{Pos: t.pos, Message: fmt.Sprintf("expected %q, got %q", text, t.text)}
	}
	return nil
}

// parseLambdaBody parses either a projection or a boolean/member expression.
func (p *parser) parseLambdaBody() (Expr, error) {
	if t := p.peek(); t.kind == tokIdent && t.text == "new" && p.peekAt(1).text == "(" {
		p.next()
		p.next()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &New{Args: args}, nil
	}
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpOrElse, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.accept("&&") {
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpAndAlso, Left: left, Right: right}
	}
	return left, nil
}

var comparisonOps = map[string]Op{
	"==": OpEq,
	"!=": OpNe,
	"<":  OpLt,
	"<=": OpLe,
	">":  OpGt,
	">=": OpGe,
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokPunct {
		if op, ok := comparisonOps[t.text]; ok {
			p.next()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &Binary{Op: op, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.accept("!") {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{X: x}, nil
	}
	if t := p.peek(); t.kind == tokPunct && t.text == "-" {
		p.next()
		n := p.next()
		switch n.kind {
		case tokInt, tokFloat:
			return p.number(token{kind: n.kind, text: "-" + n.text, pos: t.pos})
		}
		return nil, &ParseError{Pos: n.pos, Message: "expected number after '-'"}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.accept(".") {
		name := p.next()
		if name.kind != tokIdent {
			return nil, &ParseError{Pos: name.pos, Message: "expected member name"}
		}
		if p.accept("(") {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			x = &Call{Recv: x, Method: name.text, Args: args}
			continue
		}
		x = &Member{X: x, Name: name.text}
	}
	return x, nil
}

// parseArgs parses a comma separated argument list up to and including ")".
func (p *parser) parseArgs() ([]Expr, error) {
	var args []Expr
	if p.accept(")") {
		return args, nil
	}
	for {
		arg, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.accept(")") {
			return args, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseArg() (Expr, error) {
	if t := p.peek(); t.kind == tokIdent && p.peekAt(1).text == "=>" {
		p.next()
		p.next()
		for _, s := range p.scopes {
			if s.Name == t.text {
				return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("parameter %q shadows an outer parameter", t.text)}
			}
		}
		param := &Param{Name: t.text}
		p.scopes = append(p.scopes, param)
		body, err := p.parseOr()
		p.scopes = p.scopes[:len(p.scopes)-1]
		if err != nil {
			return nil, err
		}
		return &Lambda{Param: param, Body: body}, nil
	}
	return p.parseOr()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokInt, tokFloat:
		return p.number(t)
	case tokString:
		return &Const{Value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &Const{Value: true}, nil
		case "false":
			return &Const{Value: false}, nil
		case "null", "nil":
			return &Const{Value: nil}, nil
		}
		return p.ident(t)
	case tokPunct:
		if t.text == "(" {
			x, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		}
	case tokEOF:
		return nil, &ParseError{Pos: t.pos, Message: "unexpected end of expression"}
	}
	return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("unexpected %q", t.text)}
}

// ident resolves a name against the parameters in scope. Unknown names are
// members of the root parameter when it is implicit.
func (p *parser) ident(t token) (Expr, error) {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if p.scopes[i].Name == t.text && !p.scopes[i].Implicit {
			return p.scopes[i], nil
		}
	}
	if root := p.scopes[0]; root.Implicit {
		return &Member{X: root, Name: t.text}, nil
	}
	return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("undefined name %q", t.text)}
}

func (p *parser) number(t token) (Expr, error) {
	if t.kind == tokInt {
		n, err := strconv.ParseInt(t.text, 0, 64)
		if err != nil {
			return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("invalid integer %s", t.text)}
		}
		return &Const{Value: n}, nil
	}
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("invalid number %s", t.text)}
	}
	return &Const{Value: f}, nil
}
