// Package schema describes how document types map onto the relational layout.
//
// Every document type ("structure") owns one structure table, one uniques
// table and one index table per primitive data type category. A
// StructureSchema is built once per type, either by reflecting over a Go
// struct or from a declaration for dynamic map documents, and is immutable
// afterwards. Member accessors are resolved at build time.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/roach88/structdb/internal/ids"
)

// StructureSchema is the immutable storage description of one document type.
type StructureSchema struct {
	Name   string
	IDKind ids.Kind
	IDPath string
	Tables Tables

	// Type is the Go struct type, nil for declared (map) documents.
	Type reflect.Type

	fields []*Field
	byPath map[string]*Field

	getID func(doc any) (ids.StructureID, error)
	setID func(doc any, id ids.StructureID) error
}

func newStructureSchema(name string, kind ids.Kind, idPath string, fields []*Field) *StructureSchema {
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Path < fields[j].Path })
	byPath := make(map[string]*Field, len(fields))
	for _, f := range fields {
		byPath[f.Path] = f
	}
	return &StructureSchema{
		Name:   name,
		IDKind: kind,
		IDPath: idPath,
		Tables: NewTables(name),
		fields: fields,
		byPath: byPath,
	}
}

// Dynamic reports whether documents of this schema are map[string]any.
func (s *StructureSchema) Dynamic() bool {
	return s.Type == nil
}

// Fields returns all members ordered by path.
func (s *StructureSchema) Fields() []*Field {
	out := make([]*Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the member at path.
func (s *StructureSchema) Field(path string) (*Field, bool) {
	f, ok := s.byPath[path]
	return f, ok
}

// IndexedFields returns the members that produce index rows.
func (s *StructureSchema) IndexedFields() []*Field {
	var out []*Field
	for _, f := range s.fields {
		if f.Indexed {
			out = append(out, f)
		}
	}
	return out
}

// UniqueFields returns the members that produce unique rows.
func (s *StructureSchema) UniqueFields() []*Field {
	var out []*Field
	for _, f := range s.fields {
		if f.Unique {
			out = append(out, f)
		}
	}
	return out
}

// GetID reads the structure id from doc. An unset id is returned as an
// empty id of the schema's kind, not an error.
func (s *StructureSchema) GetID(doc any) (ids.StructureID, error) {
	return s.getID(doc)
}

// SetID writes id into doc. Typed documents must be passed by pointer.
func (s *StructureSchema) SetID(doc any, id ids.StructureID) error {
	if id.Kind() != s.IDKind {
		return fmt.Errorf("set id on %s: id kind %s does not match schema kind %s", s.Name, id.Kind(), s.IDKind)
	}
	return s.setID(doc, id)
}

// NewDocument returns an empty document suitable for decoding a payload.
func (s *StructureSchema) NewDocument() any {
	if s.Type == nil {
		return &map[string]any{}
	}
	return reflect.New(s.Type).Interface()
}

func (s *StructureSchema) String() string {
	return fmt.Sprintf("%s(%s id, %d fields)", s.Name, s.IDKind, len(s.fields))
}

// mapIDAccessors reads and writes the id of a map document.
func mapIDAccessors(name string, key string, kind ids.Kind) (func(any) (ids.StructureID, error), func(any, ids.StructureID) error) {
	get := func(doc any) (ids.StructureID, error) {
		m, err := asMap(doc)
		if err != nil {
			return ids.StructureID{}, fmt.Errorf("get id on %s: %w", name, err)
		}
		raw, ok := m[key]
		if !ok || raw == nil {
			return emptyID(kind), nil
		}
		switch v := raw.(type) {
		case float64:
			if v != math.Trunc(v) {
				return ids.StructureID{}, fmt.Errorf("get id on %s: non-integral identity %v", name, v)
			}
			raw = int64(v)
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return ids.StructureID{}, fmt.Errorf("get id on %s: %w", name, err)
			}
			raw = n
		case uint64:
			if v > math.MaxInt64 {
				return ids.StructureID{}, fmt.Errorf("get id on %s: identity %d overflows int64", name, v)
			}
			raw = int64(v)
		case int8, int16, int32, uint8, uint16, uint32:
			raw = reflect.ValueOf(v).Convert(reflect.TypeOf((*int64)(nil)).Elem()).Interface()
		}
		id, err := ids.FromValue(kind, raw)
		if err != nil {
			return ids.StructureID{}, fmt.Errorf("get id on %s: %w", name, err)
		}
		return id, nil
	}
	set := func(doc any, id ids.StructureID) error {
		m, err := asMap(doc)
		if err != nil {
			return fmt.Errorf("set id on %s: %w", name, err)
		}
		m[key] = id.Value()
		return nil
	}
	return get, set
}

func asMap(doc any) (map[string]any, error) {
	switch m := doc.(type) {
	case map[string]any:
		return m, nil
	case *map[string]any:
		if m == nil || *m == nil {
			return nil, fmt.Errorf("nil document")
		}
		return *m, nil
	default:
		return nil, fmt.Errorf("expected map document, got %T", doc)
	}
}

func emptyID(kind ids.Kind) ids.StructureID {
	switch kind {
	case ids.KindIdentity:
		return ids.Identity(0)
	case ids.KindGuid:
		return ids.Guid([16]byte{})
	default:
		return ids.String("")
	}
}
