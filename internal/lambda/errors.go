package lambda

import (
	"errors"
	"fmt"
)

// UnsupportedExpressionError reports an expression shape with no IR mapping.
type UnsupportedExpressionError struct {
	Expr   string
	Reason string
}

func (e *UnsupportedExpressionError) Error() string {
	return fmt.Sprintf("UNSUPPORTED_EXPRESSION: %s: %s", e.Reason, e.Expr)
}

// IsUnsupportedExpressionError returns true if err is an UnsupportedExpressionError.
func IsUnsupportedExpressionError(err error) bool {
	var ue *UnsupportedExpressionError
	return errors.As(err, &ue)
}

// InvalidSequenceError reports an IR sequence that breaks the grammar.
type InvalidSequenceError struct {
	Index   int
	Message string
}

func (e *InvalidSequenceError) Error() string {
	return fmt.Sprintf("invalid IR at node %d: %s", e.Index, e.Message)
}
