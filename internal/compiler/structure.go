package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/schema"
)

// CompileStructure parses a CUE value into a schema.Declaration.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the structure struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`structure: Book: { id: "identity", fields: { Title: string } }`)
//	decl, err := CompileStructure(v.LookupPath(cue.ParsePath("structure.Book")))
//
// Members are declared with CUE kinds (string, int, float, number, bool),
// with a type name string ("time", "guid", "text", "enum", "[]int"), as a
// nested struct, or as a list [...T] of any of these.
func CompileStructure(v cue.Value) (*schema.Declaration, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	decl := &schema.Declaration{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		decl.Name = unquote(labels[len(labels)-1].String())
	}

	if err := parseID(v, decl); err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	fields, err := parseFields(fieldsVal, "fields")
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, &CompileError{
			Field:   "fields",
			Message: "at least one field is required",
			Pos:     fieldsVal.Pos(),
		}
	}
	decl.Fields = fields

	for _, list := range []struct {
		label string
		dst   *[]string
	}{
		{"unique", &decl.Unique},
		{"noindex", &decl.NoIndex},
		{"only_index", &decl.OnlyIndex},
		{"text", &decl.Text},
	} {
		paths, err := parseStringList(v, list.label)
		if err != nil {
			return nil, err
		}
		*list.dst = paths
	}

	return decl, nil
}

// parseID reads the id member. Supports
// - a kind string: id: "guid"
// - an object: id: { name: "BookId", kind: "identity" }
// The default is an identity member named Id.
func parseID(v cue.Value, decl *schema.Declaration) error {
	decl.IDName = "Id"
	decl.IDKind = ids.KindIdentity

	idVal := v.LookupPath(cue.ParsePath("id"))
	if !idVal.Exists() {
		return nil
	}

	if s, err := idVal.String(); err == nil {
		kind, err := ids.ParseKind(s)
		if err != nil {
			return &CompileError{Field: "id", Message: err.Error(), Pos: idVal.Pos()}
		}
		decl.IDKind = kind
		return nil
	}

	if nameVal := idVal.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return formatCUEError(err)
		}
		decl.IDName = name
	}
	if kindVal := idVal.LookupPath(cue.ParsePath("kind")); kindVal.Exists() {
		s, err := kindVal.String()
		if err != nil {
			return formatCUEError(err)
		}
		kind, err := ids.ParseKind(s)
		if err != nil {
			return &CompileError{Field: "id.kind", Message: err.Error(), Pos: kindVal.Pos()}
		}
		decl.IDKind = kind
	}
	return nil
}

// parseFields walks a struct of member declarations in source order.
func parseFields(v cue.Value, field string) ([]schema.DeclaredField, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []schema.DeclaredField
	for iter.Next() {
		name := unquote(iter.Selector().String())
		f, err := parseField(name, iter.Value(), field+"."+name)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseField(name string, v cue.Value, field string) (schema.DeclaredField, error) {
	f := schema.DeclaredField{Name: name}

	switch v.IncompleteKind() {
	case cue.StructKind:
		nested, err := parseFields(v, field)
		if err != nil {
			return f, err
		}
		if len(nested) == 0 {
			return f, &CompileError{Field: field, Message: "nested members need at least one field", Pos: v.Pos()}
		}
		f.Fields = nested
		return f, nil

	case cue.ListKind:
		elem := v.LookupPath(cue.MakePath(cue.AnyIndex))
		if !elem.Exists() {
			return f, &CompileError{Field: field, Message: "lists must declare an element type, e.g. [...string]", Pos: v.Pos()}
		}
		inner, err := parseField(name, elem, field)
		if err != nil {
			return f, err
		}
		if inner.List || (inner.Type != "" && inner.Type[0] == '[') {
			return f, &CompileError{Field: field, Message: "lists of lists are not supported", Pos: v.Pos()}
		}
		if len(inner.Fields) > 0 {
			inner.List = true
			return inner, nil
		}
		inner.Type = "[]" + inner.Type
		return inner, nil
	}

	typ, err := extractTypeName(v, field)
	if err != nil {
		return f, err
	}
	f.Type = typ
	return f, nil
}

// extractTypeName converts a CUE member declaration to a declared type name.
func extractTypeName(v cue.Value, field string) (string, error) {
	if v.IsConcrete() && v.Kind() == cue.StringKind {
		s, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		if _, _, err := schema.ParseDeclaredType(s); err != nil {
			return "", &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return s, nil
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return "string", nil
	case cue.IntKind:
		return "int", nil
	case cue.FloatKind, cue.NumberKind:
		return "float", nil
	case cue.BoolKind:
		return "bool", nil
	default:
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func parseStringList(v cue.Value, label string) ([]string, error) {
	listVal := v.LookupPath(cue.ParsePath(label))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, &CompileError{Field: label, Message: "must be a list of member paths", Pos: listVal.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func unquote(label string) string {
	if len(label) >= 2 && label[0] == '"' && label[len(label)-1] == '"' {
		return label[1 : len(label)-1]
	}
	return label
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
