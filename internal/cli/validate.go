package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/structdb/internal/compiler"
	"github.com/roach88/structdb/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Structures int                        `json:"structures"`
	Queries    int                        `json:"queries"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate structure and query declarations",
		Long: `Validate CUE structure and query declarations without opening a
database.

Reports every problem found: malformed declarations, members named by
unique/text/noindex lists that do not exist, and queries whose predicates
or orderings do not compile against their structure.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	result, err := validateSpecs(specsDir, f)
	if err != nil {
		code, message := parseLoadError(err)
		return outputError(f, code, message, nil)
	}
	if len(result.Errors) > 0 {
		return outputValidationErrors(f, result)
	}

	if f.JSON() {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ All specs valid (%d structure(s), %d query(ies))\n", result.Structures, result.Queries)
	return nil
}

// validateSpecs collects every validation error of the declarations in dir.
// The returned error is set only when nothing could be loaded.
func validateSpecs(dir string, f *OutputFormatter) (*ValidationResult, error) {
	specs, loadErrs := compiler.LoadSpecs(dir, compiler.LoadModeCollectAll)
	if specs == nil {
		return nil, loadErrs[0]
	}
	f.VerboseLog("Found %d CUE file(s) in %s", specs.FileCount, dir)

	result := &ValidationResult{Structures: len(specs.Structures), Queries: len(specs.Queries)}
	for _, err := range loadErrs {
		result.Errors = append(result.Errors, loadValidationError(err))
	}

	schemas := make(map[string]*schema.StructureSchema, len(specs.Structures))
	invalid := make(map[string]bool)
	for _, sd := range specs.Structures {
		f.VerboseLog("Validating structure: %s", sd.Declaration.Name)
		errs := compiler.Validate(sd.Declaration)
		line := 0
		if sd.Pos.IsValid() {
			line = sd.Pos.Line()
		}
		for i := range errs {
			if errs[i].Line == 0 {
				errs[i].Line = line
			}
		}
		result.Errors = append(result.Errors, errs...)
		if len(errs) > 0 {
			invalid[sd.Declaration.Name] = true
			continue
		}
		s, err := schema.FromDeclaration(sd.Declaration)
		if err != nil {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "structure." + sd.Declaration.Name,
				Message: err.Error(),
				Code:    compiler.ErrInvalidFieldType,
				Line:    line,
			})
			invalid[sd.Declaration.Name] = true
			continue
		}
		schemas[s.Name] = s
	}

	for i := range specs.Queries {
		q := &specs.Queries[i]
		if invalid[q.Structure] {
			// already reported
			continue
		}
		f.VerboseLog("Validating query: %s", q.Name)
		for _, e := range compiler.ValidateQuery(q, schemas) {
			e.Field = "query." + q.Name + "." + e.Field
			result.Errors = append(result.Errors, e)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

func loadValidationError(err error) compiler.ValidationError {
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		line := 0
		if loadErr.Pos.IsValid() {
			line = loadErr.Pos.Line()
		}
		return compiler.ValidationError{Field: "load", Message: loadErr.Message, Code: loadErr.Code, Line: line}
	}
	return compiler.ValidationError{Field: "load", Message: err.Error(), Code: compiler.ErrCodeGeneric}
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(f *OutputFormatter, result *ValidationResult) error {
	errs := result.Errors
	if f.JSON() {
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(f.Writer, "✗ Validation failed")
	fmt.Fprintln(f.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(f.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(f.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateSpecsDir validates all specs in a directory.
// This is a helper function for external callers.
func ValidateSpecsDir(specsDir string) ([]compiler.ValidationError, error) {
	result, err := validateSpecs(specsDir, &OutputFormatter{Format: "text", Writer: io.Discard})
	if err != nil {
		return nil, err
	}
	return result.Errors, nil
}
