package lambda

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Domain prefixes for IR fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainSequence = "structdb/lambda/v1"
	DomainShape    = "structdb/lambda-shape/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint identifies an IR sequence including its literal values.
// Equal sequences always have equal fingerprints, across processes.
func Fingerprint(nodes []Node) string {
	return hashWithDomain(DomainSequence, canonical(nodes, true))
}

// ShapeFingerprint identifies an IR sequence up to its literal values.
// Two sequences with the same shape generate the same SQL text and differ
// only in parameter values.
func ShapeFingerprint(nodes []Node) string {
	return hashWithDomain(DomainShape, canonical(nodes, false))
}

// canonical renders one node per line with type-tagged values.
// Nil values stay visible in shapes since they select is/is not.
func canonical(nodes []Node, withValues bool) []byte {
	var b strings.Builder
	for _, n := range nodes {
		switch v := n.(type) {
		case Member:
			fmt.Fprintf(&b, "M\x1f%s\x1f%d\x1f%t", v.Path, v.DataType, v.Enumerable)
		case Operator:
			fmt.Fprintf(&b, "O\x1f%s", v.Symbol)
		case Value:
			b.WriteString("V")
			if v.Value == nil {
				b.WriteString("\x1fnull")
			} else if withValues {
				b.WriteString("\x1f" + canonicalValue(v.Value))
			}
		case StartGroup:
			b.WriteString("(")
		case EndGroup:
			b.WriteString(")")
		case StringOp:
			fmt.Fprintf(&b, "S\x1f%d", v.Kind)
			if withValues {
				b.WriteString("\x1f" + v.Value)
			}
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func canonicalValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		return "time:" + x.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return "guid:" + x.String()
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}
