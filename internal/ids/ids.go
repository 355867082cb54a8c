// Package ids defines structure identifiers and their generation.
//
// A StructureID is one of three representations, fixed per document type
// for the lifetime of its schema:
//   - Identity: 64-bit sequence checked out in ranges from an IdentityStore
//   - Guid: 128-bit UUID (version 7, so inserts stay roughly ordered)
//   - String: caller-assigned text
package ids

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind identifies the representation of a StructureID.
type Kind int

const (
	KindIdentity Kind = iota + 1
	KindGuid
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindGuid:
		return "guid"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses the names produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "identity", "int", "int64":
		return KindIdentity, nil
	case "guid", "uuid":
		return KindGuid, nil
	case "string":
		return KindString, nil
	default:
		return 0, fmt.Errorf("unknown id kind %q", s)
	}
}

// StructureID is an opaque structure identifier.
// The zero value is empty and has no kind.
type StructureID struct {
	kind Kind
	n    int64
	g    uuid.UUID
	s    string
}

// Identity returns a sequence-based id.
func Identity(n int64) StructureID {
	return StructureID{kind: KindIdentity, n: n}
}

// Guid returns a UUID-based id.
func Guid(g uuid.UUID) StructureID {
	return StructureID{kind: KindGuid, g: g}
}

// String returns a caller-assigned text id.
func String(s string) StructureID {
	return StructureID{kind: KindString, s: s}
}

// Kind returns the representation of the id.
func (id StructureID) Kind() Kind {
	return id.kind
}

// IsEmpty reports whether the id carries no usable value.
func (id StructureID) IsEmpty() bool {
	switch id.kind {
	case KindIdentity:
		return id.n == 0
	case KindGuid:
		return id.g == uuid.Nil
	case KindString:
		return id.s == ""
	default:
		return true
	}
}

// Int64 returns the identity value. Only meaningful for KindIdentity.
func (id StructureID) Int64() int64 {
	return id.n
}

// UUID returns the guid value. Only meaningful for KindGuid.
func (id StructureID) UUID() uuid.UUID {
	return id.g
}

// Value returns the value written to the StructureId column.
// Guids are stored as lowercase canonical text.
func (id StructureID) Value() any {
	switch id.kind {
	case KindIdentity:
		return id.n
	case KindGuid:
		return id.g.String()
	case KindString:
		return id.s
	default:
		return nil
	}
}

func (id StructureID) String() string {
	switch id.kind {
	case KindIdentity:
		return fmt.Sprintf("%d", id.n)
	case KindGuid:
		return id.g.String()
	case KindString:
		return id.s
	default:
		return ""
	}
}

// Compare orders ids of the same kind; ids of different kinds order by kind.
func Compare(a, b StructureID) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case KindIdentity:
		return cmp.Compare(a.n, b.n)
	case KindGuid:
		return strings.Compare(a.g.String(), b.g.String())
	default:
		return strings.Compare(a.s, b.s)
	}
}

// FromValue converts a value scanned from the StructureId column back into an id.
func FromValue(kind Kind, v any) (StructureID, error) {
	switch kind {
	case KindIdentity:
		switch n := v.(type) {
		case int64:
			return Identity(n), nil
		case int:
			return Identity(int64(n)), nil
		case []byte:
			var parsed int64
			if _, err := fmt.Sscan(string(n), &parsed); err != nil {
				return StructureID{}, fmt.Errorf("parse identity %q: %w", n, err)
			}
			return Identity(parsed), nil
		}
	case KindGuid:
		var text string
		switch g := v.(type) {
		case string:
			text = g
		case []byte:
			text = string(g)
		case uuid.UUID:
			return Guid(g), nil
		default:
			return StructureID{}, fmt.Errorf("cannot convert %T to guid id", v)
		}
		parsed, err := uuid.Parse(text)
		if err != nil {
			return StructureID{}, fmt.Errorf("parse guid %q: %w", text, err)
		}
		return Guid(parsed), nil
	case KindString:
		switch s := v.(type) {
		case string:
			return String(s), nil
		case []byte:
			return String(string(s)), nil
		}
	}
	return StructureID{}, fmt.Errorf("cannot convert %T to %s id", v, kind)
}
