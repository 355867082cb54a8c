package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/structdb/internal/compiler"
	"github.com/roach88/structdb/internal/dialect"
	"github.com/roach88/structdb/internal/lambda"
	"github.com/roach88/structdb/internal/query"
	"github.com/roach88/structdb/internal/sqlgen"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	queryClauses
	Shape  string
	Output string // output file path
}

// CompilationResult is what a query compiles to.
type CompilationResult struct {
	Structure string      `json:"structure"`
	Query     string      `json:"query"`
	IR        []string    `json:"ir"`
	Shape     string      `json:"shape"`
	SQL       string      `json:"sql"`
	Params    []ParamInfo `json:"params"`
}

// ParamInfo is one bound SQL parameter.
type ParamInfo struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile a query to Lambda IR and SQL",
		Long: `Compile a query over a declared structure and print the Lambda IR
node sequence, the generated SQL and its parameters. Nothing is executed.

Examples:
  structdb compile ./specs --type Book --where 'Pages > 300' --order-by Pages --desc
  structdb compile ./specs --use longBooks --shape count`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // we handle our own error output
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	opts.queryClauses.register(cmd)
	cmd.Flags().StringVar(&opts.Shape, "shape", "rows", "result shape (rows|ids|count)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "also write the result as JSON to this file")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	shape, err := sqlgen.ParseShape(opts.Shape)
	if err != nil {
		return outputError(f, compiler.ErrCodeGeneric, err.Error(), nil)
	}
	specs, err := loadSpecs(f, specsDir)
	if err != nil {
		return err
	}
	spec, err := opts.queryClauses.spec(specs)
	if err != nil {
		return outputError(f, compiler.ErrCodeGeneric, err.Error(), nil)
	}
	s, err := declaredSchema(f, specs, spec.Structure)
	if err != nil {
		return err
	}

	cfg, _, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	d, err := dialect.Load(cfg.Dialect, cfg.MaxBatchedIdsSize)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading dialect", err)
	}

	q, err := spec.Apply(query.NewBuilder(s)).Build()
	if err != nil {
		return compileFailed(f, err)
	}
	out, err := sqlgen.NewGenerator(d).Generate(q, s, shape)
	if err != nil {
		return compileFailed(f, err)
	}

	result := &CompilationResult{
		Structure: s.Name,
		Query:     q.String(),
		IR:        make([]string, len(q.Where)),
		Shape:     shape.String(),
		SQL:       out.SQL,
		Params:    make([]ParamInfo, len(out.Params)),
	}
	for i, n := range q.Where {
		result.IR[i] = n.String()
	}
	for i, p := range out.Params {
		result.Params[i] = ParamInfo{Name: p.Placeholder(), Value: p.Value}
	}

	if opts.Output != "" {
		if err := writeCompilation(result, opts.Output); err != nil {
			return outputError(f, compiler.ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
		f.VerboseLog("Wrote compilation to %s", opts.Output)
	}

	if f.JSON() {
		return f.Success(result)
	}
	w := f.Writer
	fmt.Fprintf(w, "%s: %s\n\n", result.Structure, result.Query)
	if len(q.Where) > 0 {
		fmt.Fprintln(w, "IR:")
		fmt.Fprintf(w, "  %s\n\n", lambda.Format(q.Where))
	}
	fmt.Fprintf(w, "SQL (%s):\n", result.Shape)
	fmt.Fprint(w, out.String())
	return nil
}

// compileFailed reports a query that does not compile against its schema.
// The message keeps the error's own code prefix, e.g. UNRESOLVABLE_MEMBER.
func compileFailed(f *OutputFormatter, err error) error {
	_ = f.Error(compiler.ErrInvalidWhere, err.Error(), nil)
	return WrapExitError(ExitFailure, "query does not compile", err)
}

func writeCompilation(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	return os.WriteFile(filename, append(data, '\n'), 0644)
}
