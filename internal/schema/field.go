package schema

import (
	"reflect"
)

// Field is one member of a structure schema.
//
// Path is the dot-joined sequence of property names from the document root.
// Collections do not add path segments: a slice of Items whose elements have
// a Value member yields the path "Items.Value" with Enumerable set.
type Field struct {
	Path       string
	Name       string
	DataType   DataTypeCode
	Enumerable bool
	Indexed    bool
	Unique     bool

	values func(doc any) []any
}

// Values returns every non-null occurrence of the member in doc:
// nothing for a null member, one value for a scalar, one value per element
// for a collection member.
func (f *Field) Values(doc any) []any {
	if f.values == nil || doc == nil {
		return nil
	}
	return f.values(doc)
}

// reflectStep is one struct-field hop of a typed accessor.
type reflectStep struct {
	index []int
}

// reflectAccessor builds the accessor for a typed member. The steps are
// resolved once at schema-build time.
func reflectAccessor(steps []reflectStep) func(doc any) []any {
	return func(doc any) []any {
		var out []any
		walkReflect(reflect.ValueOf(doc), steps, &out)
		return out
	}
}

func walkReflect(v reflect.Value, steps []reflectStep, out *[]any) {
	v = indirect(v)
	if !v.IsValid() {
		return
	}

	if isCollection(v.Type()) {
		for i := 0; i < v.Len(); i++ {
			walkReflect(v.Index(i), steps, out)
		}
		return
	}

	if len(steps) == 0 {
		*out = append(*out, v.Interface())
		return
	}

	if v.Kind() != reflect.Struct {
		return
	}
	f, err := v.FieldByIndexErr(steps[0].index)
	if err != nil {
		// nil embedded pointer on the way
		return
	}
	walkReflect(f, steps[1:], out)
}

// mapAccessor builds the accessor for a declared member of a map document.
func mapAccessor(names []string) func(doc any) []any {
	return func(doc any) []any {
		if p, ok := doc.(*map[string]any); ok && p != nil {
			doc = *p
		}
		var out []any
		walkMap(doc, names, &out)
		return out
	}
}

func walkMap(v any, names []string, out *[]any) {
	switch val := v.(type) {
	case nil:
		return
	case []any:
		for _, elem := range val {
			walkMap(elem, names, out)
		}
		return
	case map[string]any:
		if len(names) == 0 {
			return
		}
		walkMap(val[names[0]], names[1:], out)
		return
	}
	if len(names) == 0 {
		*out = append(*out, v)
	}
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isCollection(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() != reflect.Uint8 && t != uuidType
	}
	return false
}
