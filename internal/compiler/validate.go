package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/structdb/internal/expr"
	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/query"
	"github.com/roach88/structdb/internal/schema"
	"github.com/roach88/structdb/internal/sqlgen"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedType = "E100" // unsupported value for validation

	// Structure errors (E101-E109)
	ErrInvalidStructureName = "E101" // name is empty or not a table-safe identifier
	ErrStructureNoFields    = "E102" // at least one field required
	ErrInvalidIDKind        = "E103" // id kind missing or unknown
	ErrInvalidFieldType     = "E104" // invalid type string
	ErrDuplicateName        = "E105" // duplicate member path
	ErrUnknownMember        = "E106" // unique/text/noindex/only_index names no member
	ErrUniqueCollection     = "E107" // unique member inside a collection
	ErrTextNotString        = "E108" // text override on a non-string member

	// Query errors (E110-E119)
	ErrQueryNoStructure = "E110" // structure is required
	ErrInvalidWhere     = "E111" // predicate does not parse or compile
	ErrInvalidOrderBy   = "E112" // ordering member does not parse or compile
	ErrInvalidPaging    = "E113" // negative skip or take
	ErrInvalidSelect    = "E114" // projection does not parse or compile
	ErrUnknownStructure = "E115" // query names an undeclared structure
)

// ValidationError represents a declaration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// structureNamePattern keeps names usable as table name prefixes.
var structureNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate validates a compiled declaration or query without touching a
// database. Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch val := v.(type) {
	case *schema.Declaration:
		return validateDeclaration(val)
	case schema.Declaration:
		return validateDeclaration(&val)
	case *QuerySpec:
		return validateQuerySyntax(val)
	case QuerySpec:
		return validateQuerySyntax(&val)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

type declaredMember struct {
	path       string
	code       schema.DataTypeCode
	enumerable bool
}

func validateDeclaration(decl *schema.Declaration) []ValidationError {
	var errs []ValidationError

	// E101: table-safe name
	if !structureNamePattern.MatchString(decl.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("invalid structure name %q", decl.Name),
			Code:    ErrInvalidStructureName,
		})
	}

	// E102: at least one field
	if len(decl.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "fields",
			Message: "at least one field is required",
			Code:    ErrStructureNoFields,
		})
	}

	// E103: id kind
	if decl.IDKind != ids.KindIdentity && decl.IDKind != ids.KindGuid && decl.IDKind != ids.KindString {
		errs = append(errs, ValidationError{
			Field:   "id.kind",
			Message: "id kind must be identity, guid or string",
			Code:    ErrInvalidIDKind,
		})
	}

	members := make(map[string]declaredMember)
	errs = append(errs, walkDeclared(decl.Fields, nil, false, members)...)

	idName := decl.IDName
	if idName == "" {
		idName = "Id"
	}

	for i, p := range decl.Unique {
		m, ok := members[p]
		if !ok {
			errs = append(errs, unknownMember("unique", i, p))
			continue
		}
		// E107: uniques are scalar
		if m.enumerable {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("unique[%d]", i),
				Message: fmt.Sprintf("unique member %q is inside a collection", p),
				Code:    ErrUniqueCollection,
			})
		}
	}
	for i, p := range decl.Text {
		m, ok := members[p]
		if !ok {
			errs = append(errs, unknownMember("text", i, p))
			continue
		}
		// E108: text applies to strings
		if m.code != schema.String && m.code != schema.Text {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("text[%d]", i),
				Message: fmt.Sprintf("text member %q is %s, not a string", p, m.code),
				Code:    ErrTextNotString,
			})
		}
	}
	for label, list := range map[string][]string{"noindex": decl.NoIndex, "only_index": decl.OnlyIndex} {
		for i, p := range list {
			if !hasMemberOrPrefix(members, p) && p != idName {
				errs = append(errs, unknownMember(label, i, p))
			}
		}
	}

	return errs
}

// walkDeclared records every leaf member by path.
func walkDeclared(fields []schema.DeclaredField, names []string, enumerable bool, out map[string]declaredMember) []ValidationError {
	var errs []ValidationError
	for i, f := range fields {
		path := strings.Join(append(append([]string{}, names...), f.Name), ".")
		fieldPath := fmt.Sprintf("fields.%s", path)

		// E105: duplicate member
		if _, dup := out[path]; dup || f.Name == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("fields[%d]", i),
				Message: fmt.Sprintf("duplicate or empty member name %q", path),
				Code:    ErrDuplicateName,
			})
			continue
		}

		if len(f.Fields) > 0 {
			out[path] = declaredMember{path: path, enumerable: enumerable || f.List}
			errs = append(errs, walkDeclared(f.Fields, append(append([]string{}, names...), f.Name), enumerable || f.List, out)...)
			continue
		}

		// E104: valid type
		code, list, err := schema.ParseDeclaredType(f.Type)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   fieldPath,
				Message: fmt.Sprintf("invalid type %q for field %q", f.Type, f.Name),
				Code:    ErrInvalidFieldType,
			})
			continue
		}
		out[path] = declaredMember{path: path, code: code, enumerable: enumerable || list || f.List}
	}
	return errs
}

func hasMemberOrPrefix(members map[string]declaredMember, p string) bool {
	if _, ok := members[p]; ok {
		return true
	}
	for path := range members {
		if strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

func unknownMember(label string, i int, p string) ValidationError {
	return ValidationError{
		Field:   fmt.Sprintf("%s[%d]", label, i),
		Message: fmt.Sprintf("no member %q", p),
		Code:    ErrUnknownMember,
	}
}

// validateQuerySyntax checks what can be checked without the schema.
func validateQuerySyntax(q *QuerySpec) []ValidationError {
	var errs []ValidationError

	// E110: structure is required
	if strings.TrimSpace(q.Structure) == "" {
		errs = append(errs, ValidationError{
			Field:   "structure",
			Message: "structure is required",
			Code:    ErrQueryNoStructure,
		})
	}

	// E111: predicates parse
	for i, w := range q.Where {
		if _, err := expr.Parse(w); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("where[%d]", i),
				Message: err.Error(),
				Code:    ErrInvalidWhere,
			})
		}
	}

	// E112: ordering members parse
	for i, o := range q.OrderBy {
		if _, err := expr.Parse(o.Member); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("order_by[%d]", i),
				Message: err.Error(),
				Code:    ErrInvalidOrderBy,
			})
		}
	}

	// E113: paging bounds
	if q.Skip < 0 || (q.Take != nil && *q.Take < 0) {
		errs = append(errs, ValidationError{
			Field:   "skip/take",
			Message: "skip and take must not be negative",
			Code:    ErrInvalidPaging,
		})
	}

	// E114: projection parses
	if q.Select != "" {
		if _, err := expr.Parse(q.Select); err != nil {
			errs = append(errs, ValidationError{
				Field:   "select",
				Message: err.Error(),
				Code:    ErrInvalidSelect,
			})
		}
	}

	return errs
}

// ValidateQuery compiles q against the schemas it may read. Syntax errors
// are reported as by Validate; when the syntax is sound the whole query is
// compiled against its structure and every member it names is resolved.
func ValidateQuery(q *QuerySpec, schemas map[string]*schema.StructureSchema) []ValidationError {
	errs := validateQuerySyntax(q)
	if len(errs) > 0 {
		return errs
	}

	s, ok := schemas[q.Structure]
	if !ok {
		return []ValidationError{{
			Field:   "structure",
			Message: fmt.Sprintf("no structure named %q", q.Structure),
			Code:    ErrUnknownStructure,
		}}
	}

	for i, w := range q.Where {
		built, err := query.NewBuilder(s).Where(w).Build()
		if err == nil {
			_, err = sqlgen.GenerateWhere(built.Where, s)
		}
		if err != nil {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("where[%d]", i), Message: err.Error(), Code: ErrInvalidWhere})
		}
	}
	for i, o := range q.OrderBy {
		built, err := query.NewBuilder(s).OrderBy(o.Member).Build()
		if err == nil {
			err = sqlgen.CheckSortings(built.Sortings, s)
		}
		if err != nil {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("order_by[%d]", i), Message: err.Error(), Code: ErrInvalidOrderBy})
		}
	}
	if q.Select != "" {
		if _, err := query.NewBuilder(s).Select(q.Select).Build(); err != nil {
			errs = append(errs, ValidationError{Field: "select", Message: err.Error(), Code: ErrInvalidSelect})
		}
	}
	return errs
}
