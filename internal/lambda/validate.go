package lambda

import "fmt"

// Validate checks that nodes follow the IR grammar: every comparison sits
// between exactly one Member and one Value, string operations follow a
// Member, logical operators join complete units, not is followed by a
// group, and groups balance without the running depth ever going negative.
//
// An empty sequence is valid and means "match all".
func Validate(nodes []Node) error {
	depth := 0
	expectUnit := true

	for i := 0; i < len(nodes); i++ {
		switch n := nodes[i].(type) {
		case Member:
			if !expectUnit {
				return &InvalidSequenceError{Index: i, Message: "member after a complete unit"}
			}
			if i+1 >= len(nodes) {
				return &InvalidSequenceError{Index: i, Message: "member without operator"}
			}
			switch next := nodes[i+1].(type) {
			case StringOp:
				i++
			case Operator:
				if !next.IsComparison() {
					return &InvalidSequenceError{Index: i + 1, Message: fmt.Sprintf("%s after member", next.Symbol)}
				}
				if i+2 >= len(nodes) {
					return &InvalidSequenceError{Index: i + 1, Message: "comparison without value"}
				}
				v, ok := nodes[i+2].(Value)
				if !ok {
					return &InvalidSequenceError{Index: i + 2, Message: "comparison must be followed by a value"}
				}
				isNull := next.Symbol == OpIs || next.Symbol == OpIsNot
				if isNull != (v.Value == nil) {
					return &InvalidSequenceError{Index: i + 2, Message: "null values pair with is/is not only"}
				}
				i += 2
			default:
				return &InvalidSequenceError{Index: i + 1, Message: "member must be followed by a comparison or string operation"}
			}
			expectUnit = false

		case Operator:
			switch {
			case n.IsLogical():
				if expectUnit {
					return &InvalidSequenceError{Index: i, Message: n.Symbol + " without left operand"}
				}
				expectUnit = true
			case n.Symbol == OpNot:
				if !expectUnit {
					return &InvalidSequenceError{Index: i, Message: "not after a complete unit"}
				}
				if i+1 >= len(nodes) {
					return &InvalidSequenceError{Index: i, Message: "not without group"}
				}
				if _, ok := nodes[i+1].(StartGroup); !ok {
					return &InvalidSequenceError{Index: i + 1, Message: "not must be followed by a group"}
				}
			default:
				return &InvalidSequenceError{Index: i, Message: "comparison without member"}
			}

		case StartGroup:
			if !expectUnit {
				return &InvalidSequenceError{Index: i, Message: "group after a complete unit"}
			}
			depth++

		case EndGroup:
			if expectUnit {
				return &InvalidSequenceError{Index: i, Message: "group closed before a complete unit"}
			}
			depth--
			if depth < 0 {
				return &InvalidSequenceError{Index: i, Message: "unbalanced EndGroup"}
			}

		case Value:
			return &InvalidSequenceError{Index: i, Message: "value without comparison"}
		case StringOp:
			return &InvalidSequenceError{Index: i, Message: "string operation without member"}
		default:
			return &InvalidSequenceError{Index: i, Message: fmt.Sprintf("unknown node %T", n)}
		}
	}

	if len(nodes) > 0 && expectUnit {
		return &InvalidSequenceError{Index: len(nodes), Message: "sequence ends without a unit"}
	}
	if depth != 0 {
		return &InvalidSequenceError{Index: len(nodes), Message: fmt.Sprintf("%d unclosed groups", depth)}
	}
	return nil
}

// GroupBalance returns the final group depth and the lowest running depth
// seen scanning left to right.
func GroupBalance(nodes []Node) (final, lowest int) {
	for _, n := range nodes {
		switch n.(type) {
		case StartGroup:
			final++
		case EndGroup:
			final--
			if final < lowest {
				lowest = final
			}
		}
	}
	return final, lowest
}
