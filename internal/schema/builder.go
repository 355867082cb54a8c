package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/structdb/internal/ids"
)

const tagName = "structdb"

// maxDepth bounds member nesting so self-referencing types terminate.
const maxDepth = 10

var (
	timeType     = reflect.TypeOf((*time.Time)(nil)).Elem()
	uuidType     = reflect.TypeOf((*uuid.UUID)(nil)).Elem()
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

type tagOptions struct {
	skip    bool
	id      bool
	unique  bool
	noindex bool
	text    bool
}

func parseTag(tag string) tagOptions {
	var opts tagOptions
	for _, part := range strings.Split(tag, ",") {
		switch strings.TrimSpace(part) {
		case "-":
			opts.skip = true
		case "id":
			opts.id = true
		case "unique":
			opts.unique = true
		case "noindex":
			opts.noindex = true
		case "text":
			opts.text = true
		}
	}
	return opts
}

// Build reflects over a Go struct type once and returns its schema.
// decl may be nil; when set its Name overrides the type name and its member
// lists override struct tags.
func Build(t reflect.Type, decl *Declaration) (*StructureSchema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, &BuildError{Type: t.String(), Message: "documents must be structs"}
	}
	if decl == nil {
		decl = &Declaration{}
	}
	name := t.Name()
	if decl.Name != "" {
		name = decl.Name
	}
	if name == "" {
		return nil, &BuildError{Type: t.String(), Message: "anonymous types need a declared name"}
	}

	idField, kind, err := findIDField(t, decl)
	if err != nil {
		return nil, err
	}

	b := &typeBuilder{
		typeName: name,
		decl:     decl,
		idIndex:  idField.Index,
		onStack:  map[reflect.Type]bool{t: true},
	}
	if err := b.collect(t, nil, nil, false, 0); err != nil {
		return nil, err
	}
	if err := checkDeclaredPaths(*decl, b.fields); err != nil {
		return nil, err
	}

	s := newStructureSchema(name, kind, idField.Name, b.fields)
	s.Type = t
	s.getID, s.setID = reflectIDAccessors(name, t, idField, kind)
	return s, nil
}

func findIDField(t reflect.Type, decl *Declaration) (reflect.StructField, ids.Kind, error) {
	candidates := []string{"StructureId", "StructureID", "Id", "ID", t.Name() + "Id", t.Name() + "ID"}
	if decl.IDName != "" {
		candidates = []string{decl.IDName}
	}

	var found *reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if parseTag(f.Tag.Get(tagName)).id {
			found = &f
			break
		}
	}
	if found == nil {
		for _, c := range candidates {
			if f, ok := t.FieldByName(c); ok && f.IsExported() && len(f.Index) == 1 {
				found = &f
				break
			}
		}
	}
	if found == nil {
		return reflect.StructField{}, 0, &BuildError{Type: t.Name(), Message: "no id member found"}
	}

	var kind ids.Kind
	switch {
	case found.Type == uuidType:
		kind = ids.KindGuid
	case found.Type.Kind() == reflect.String:
		kind = ids.KindString
	case found.Type.Kind() == reflect.Int, found.Type.Kind() == reflect.Int64, found.Type.Kind() == reflect.Int32:
		kind = ids.KindIdentity
	default:
		return reflect.StructField{}, 0, &BuildError{Type: t.Name(), Path: found.Name,
			Message: fmt.Sprintf("unsupported id type %s", found.Type)}
	}
	if decl.IDKind != 0 && decl.IDKind != kind {
		return reflect.StructField{}, 0, &BuildError{Type: t.Name(), Path: found.Name,
			Message: fmt.Sprintf("declared id kind %s does not match member type %s", decl.IDKind, found.Type)}
	}
	return *found, kind, nil
}

type typeBuilder struct {
	typeName string
	decl     *Declaration
	idIndex  []int
	onStack  map[reflect.Type]bool
	fields   []*Field
}

func (b *typeBuilder) collect(t reflect.Type, names []string, steps []reflectStep, enumerable bool, depth int) error {
	if depth > maxDepth {
		return nil
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if depth == 0 && len(sf.Index) == 1 && sf.Index[0] == b.idIndex[0] {
			continue
		}
		opts := parseTag(sf.Tag.Get(tagName))
		if opts.skip {
			continue
		}

		memberSteps := append(append([]reflectStep{}, steps...), reflectStep{index: sf.Index})
		if sf.Anonymous && derefType(sf.Type).Kind() == reflect.Struct && dataTypeOf(derefType(sf.Type)) == Unknown {
			// embedded structs contribute members without a path segment
			if err := b.collect(derefType(sf.Type), names, memberSteps, enumerable, depth+1); err != nil {
				return err
			}
			continue
		}
		memberNames := append(append([]string{}, names...), sf.Name)
		path := strings.Join(memberNames, ".")

		ft := derefType(sf.Type)
		elemEnumerable := enumerable
		if isCollection(ft) {
			ft = derefType(ft.Elem())
			elemEnumerable = true
		}

		code := dataTypeOf(ft)
		if code == String && (opts.text || b.decl.isText(path)) {
			code = Text
		}
		if code != Unknown {
			f := &Field{
				Path:       path,
				Name:       sf.Name,
				DataType:   code,
				Enumerable: elemEnumerable,
				Indexed:    !opts.noindex && b.decl.isIndexed(path),
				Unique:     opts.unique || b.decl.isUnique(path),
				values:     reflectAccessor(memberSteps),
			}
			if err := checkUnique(b.typeName, f); err != nil {
				return err
			}
			b.fields = append(b.fields, f)
			continue
		}

		if ft.Kind() == reflect.Struct && !b.onStack[ft] {
			b.onStack[ft] = true
			err := b.collect(ft, memberNames, memberSteps, elemEnumerable, depth+1)
			delete(b.onStack, ft)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// dataTypeOf classifies a member type. Named integer types with a String
// method are enums.
func dataTypeOf(t reflect.Type) DataTypeCode {
	switch t {
	case timeType:
		return DateTime
	case uuidType:
		return Guid
	}
	switch t.Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t.PkgPath() != "" && t.Implements(stringerType) {
			return Enum
		}
		return IntegerNumber
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntegerNumber
	case reflect.Float32, reflect.Float64:
		return FractalNumber
	case reflect.String:
		return String
	}
	return Unknown
}

func reflectIDAccessors(name string, t reflect.Type, idField reflect.StructField, kind ids.Kind) (func(any) (ids.StructureID, error), func(any, ids.StructureID) error) {
	structOf := func(doc any) (reflect.Value, error) {
		v := reflect.ValueOf(doc)
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, fmt.Errorf("nil document")
			}
			v = v.Elem()
		}
		if v.Type() != t {
			return reflect.Value{}, fmt.Errorf("expected %s, got %T", t, doc)
		}
		return v, nil
	}

	get := func(doc any) (ids.StructureID, error) {
		v, err := structOf(doc)
		if err != nil {
			return ids.StructureID{}, fmt.Errorf("get id on %s: %w", name, err)
		}
		f := v.FieldByIndex(idField.Index)
		switch kind {
		case ids.KindIdentity:
			return ids.Identity(f.Int()), nil
		case ids.KindGuid:
			return ids.Guid(f.Interface().(uuid.UUID)), nil
		default:
			return ids.String(f.String()), nil
		}
	}

	set := func(doc any, id ids.StructureID) error {
		v, err := structOf(doc)
		if err != nil {
			return fmt.Errorf("set id on %s: %w", name, err)
		}
		f := v.FieldByIndex(idField.Index)
		if !f.CanSet() {
			return fmt.Errorf("set id on %s: document must be passed by pointer", name)
		}
		switch kind {
		case ids.KindIdentity:
			f.SetInt(id.Int64())
		case ids.KindGuid:
			f.Set(reflect.ValueOf(id.UUID()))
		default:
			f.SetString(id.String())
		}
		return nil
	}
	return get, set
}
