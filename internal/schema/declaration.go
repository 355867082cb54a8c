package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/structdb/internal/ids"
)

// Declaration customizes how a document type is mapped.
//
// For Go struct types it overrides struct tags by member path. When Fields
// is non-empty it fully describes a dynamic document type stored as
// map[string]any, e.g. documents decoded from JSON.
type Declaration struct {
	Name string

	// IDName is the id member name. Defaults to "Id" for declared documents.
	IDName string
	// IDKind is required for declared documents; for Go types it must agree
	// with the id member's type when set.
	IDKind ids.Kind

	Fields []DeclaredField

	Unique    []string
	NoIndex   []string
	OnlyIndex []string
	Text      []string
}

// DeclaredField is one member of a declared document.
// Type is one of int, float, bool, time, guid, string, text, enum,
// optionally prefixed with "[]" for collections. Nested members set Fields
// instead of Type; List marks a collection of nested members.
type DeclaredField struct {
	Name   string
	Type   string
	List   bool
	Fields []DeclaredField
}

func (d Declaration) isUnique(path string) bool  { return contains(d.Unique, path) }
func (d Declaration) isText(path string) bool    { return contains(d.Text, path) }
func (d Declaration) isNoIndex(path string) bool { return contains(d.NoIndex, path) }

// isIndexed applies OnlyIndex: when present, a member is indexed only if
// its path or one of its ancestors is listed.
func (d Declaration) isIndexed(path string) bool {
	if d.isNoIndex(path) {
		return false
	}
	if len(d.OnlyIndex) == 0 {
		return true
	}
	for _, p := range d.OnlyIndex {
		if path == p || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var declaredTypeCodes = map[string]DataTypeCode{
	"int":      IntegerNumber,
	"integer":  IntegerNumber,
	"float":    FractalNumber,
	"decimal":  FractalNumber,
	"bool":     Bool,
	"time":     DateTime,
	"datetime": DateTime,
	"guid":     Guid,
	"uuid":     Guid,
	"string":   String,
	"text":     Text,
	"enum":     Enum,
}

// ParseDeclaredType parses a declared member type such as "int" or "[]guid" and
// reports whether it names a collection.
func ParseDeclaredType(s string) (DataTypeCode, bool, error) {
	list := false
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[]") {
		list = true
		s = strings.TrimPrefix(s, "[]")
	}
	code, ok := declaredTypeCodes[strings.ToLower(s)]
	if !ok {
		return Unknown, false, fmt.Errorf("unknown member type %q", s)
	}
	return code, list, nil
}

// FromDeclaration builds the schema of a dynamic document type.
func FromDeclaration(decl Declaration) (*StructureSchema, error) {
	if decl.Name == "" {
		return nil, &BuildError{Type: "<declared>", Message: "name is required"}
	}
	if len(decl.Fields) == 0 {
		return nil, &BuildError{Type: decl.Name, Message: "declared documents need at least one field"}
	}
	if decl.IDKind == 0 {
		return nil, &BuildError{Type: decl.Name, Message: "id kind is required"}
	}
	idName := decl.IDName
	if idName == "" {
		idName = "Id"
	}

	var fields []*Field
	var walk func(members []DeclaredField, names []string, enumerable bool) error
	walk = func(members []DeclaredField, names []string, enumerable bool) error {
		for _, m := range members {
			if len(names) == 0 && m.Name == idName {
				continue
			}
			path := strings.Join(append(append([]string{}, names...), m.Name), ".")
			if len(m.Fields) > 0 {
				if err := walk(m.Fields, append(append([]string{}, names...), m.Name), enumerable || m.List); err != nil {
					return err
				}
				continue
			}
			code, list, err := ParseDeclaredType(m.Type)
			if err != nil {
				return &BuildError{Type: decl.Name, Path: path, Message: err.Error()}
			}
			if code == String && decl.isText(path) {
				code = Text
			}
			f := &Field{
				Path:       path,
				Name:       m.Name,
				DataType:   code,
				Enumerable: enumerable || list || m.List,
				Indexed:    decl.isIndexed(path),
				Unique:     decl.isUnique(path),
				values:     mapAccessor(append(append([]string{}, names...), m.Name)),
			}
			if err := checkUnique(decl.Name, f); err != nil {
				return err
			}
			fields = append(fields, f)
		}
		return nil
	}
	if err := walk(decl.Fields, nil, false); err != nil {
		return nil, err
	}
	if err := checkDeclaredPaths(decl, fields); err != nil {
		return nil, err
	}

	s := newStructureSchema(decl.Name, decl.IDKind, idName, fields)
	s.getID, s.setID = mapIDAccessors(decl.Name, idName, decl.IDKind)
	return s, nil
}

func checkUnique(typeName string, f *Field) error {
	if f.Unique && f.Enumerable {
		return &BuildError{Type: typeName, Path: f.Path, Message: "unique members cannot be collections"}
	}
	return nil
}

// checkDeclaredPaths rejects unique/text overrides naming members that do not exist.
func checkDeclaredPaths(decl Declaration, fields []*Field) error {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Path] = true
	}
	for _, list := range [][]string{decl.Unique, decl.Text} {
		for _, p := range list {
			if !known[p] {
				return &BuildError{Type: decl.Name, Path: p, Message: "no such member"}
			}
		}
	}
	return nil
}
