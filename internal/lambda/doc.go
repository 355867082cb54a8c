// Package lambda compiles expression trees into the Lambda IR: a flat,
// well-formed node sequence consumed by the SQL generator.
//
// A predicate compiles to a sequence in the grammar
//
//	unit  := Member Operator(cmp) Value | Member StringOp
//	       | StartGroup expr EndGroup | Operator(not) StartGroup expr EndGroup
//	expr  := unit { Operator(and|or) unit }
//
// Boolean structure is kept exactly as written: a logical operand is wrapped
// in a group unless it is the left operand of the same operator, so
// "a && b && c" stays flat while "a && (b || c)" groups the right side.
//
// Quantifiers over collections never appear in the IR. Compiling
// Items.Any(i => i.Value == 42) substitutes i with the path "Items" and the
// inner comparison yields Member(Items.Value). Nested quantifiers extend the
// path further.
//
// Compilation is pure and deterministic: the same expression and schema
// always produce the same sequence, which Fingerprint hashes for plan caching.
package lambda
