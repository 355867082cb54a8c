package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/structdb/internal/schema"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading specs from a directory.
type LoadResult struct {
	Structures []StructureDecl
	Queries    []QuerySpec
	CUEValue   cue.Value
	FileCount  int
}

// StructureDecl is a compiled structure declaration and where it came from.
type StructureDecl struct {
	Declaration schema.Declaration
	Pos         token.Pos
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants shared by every command that loads specs.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
)

// LoadSpecs loads and compiles the structure and query declarations of
// every CUE file in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	structsVal := value.LookupPath(cue.ParsePath("structure"))
	if structsVal.Exists() {
		iter, iterErr := structsVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating structures: %v", iterErr)})
			if mode == LoadModeFailFast {
				return result, errs
			}
		} else {
			for iter.Next() {
				decl, compileErr := CompileStructure(iter.Value())
				if compileErr != nil {
					errs = append(errs, convertCompileError(compileErr, "structure."+iter.Selector().String()))
					if mode == LoadModeFailFast {
						return result, errs
					}
					continue
				}
				result.Structures = append(result.Structures, StructureDecl{Declaration: *decl, Pos: iter.Value().Pos()})
			}
		}
	}

	queriesVal := value.LookupPath(cue.ParsePath("query"))
	if queriesVal.Exists() {
		iter, iterErr := queriesVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating queries: %v", iterErr)})
			if mode == LoadModeFailFast {
				return result, errs
			}
		} else {
			for iter.Next() {
				spec, compileErr := CompileQuery(iter.Value())
				if compileErr != nil {
					errs = append(errs, convertCompileError(compileErr, "query."+iter.Selector().String()))
					if mode == LoadModeFailFast {
						return result, errs
					}
					continue
				}
				result.Queries = append(result.Queries, *spec)
			}
		}
	}

	if len(result.Structures) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no structures found in specs"})
	}

	return result, errs
}

// Structure returns the declaration named name.
func (r *LoadResult) Structure(name string) (schema.Declaration, bool) {
	for _, s := range r.Structures {
		if s.Declaration.Name == name {
			return s.Declaration, true
		}
	}
	return schema.Declaration{}, false
}

// Query returns the query named name.
func (r *LoadResult) Query(name string) (QuerySpec, bool) {
	for _, q := range r.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return QuerySpec{}, false
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "fields":
		return ErrStructureNoFields
	case field == "id" || field == "id.kind":
		return ErrInvalidIDKind
	case strings.HasPrefix(field, "fields."):
		return ErrInvalidFieldType
	case field == "unique" || field == "noindex" || field == "only_index" || field == "text":
		return ErrUnknownMember
	case field == "structure":
		return ErrQueryNoStructure
	case field == "where":
		return ErrInvalidWhere
	case field == "order_by":
		return ErrInvalidOrderBy
	default:
		return ErrCodeGeneric
	}
}
