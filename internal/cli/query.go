package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/structdb/internal/compiler"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	queryClauses
	Count bool
}

// QueryResult is the outcome of the query command. Documents holds full
// documents, or projections when the query selects members.
type QueryResult struct {
	Structure string           `json:"structure"`
	Count     int64            `json:"count"`
	Documents []map[string]any `json:"documents,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <specs-dir>",
		Short: "Run a query and print matching documents",
		Long: `Run a query against the configured database and print the matching
documents as JSON, one per line. With --count only the number of matches
is printed; paging does not apply to counts.

Examples:
  structdb query ./specs --type Book --where 'Tags.Contains("sf")' --order-by Title
  structdb query ./specs --use longBooks --count`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	opts.queryClauses.register(cmd)
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print only the number of matches")

	return cmd
}

func runQuery(opts *QueryOptions, specsDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	specs, err := loadSpecs(f, specsDir)
	if err != nil {
		return err
	}
	spec, err := opts.queryClauses.spec(specs)
	if err != nil {
		return outputError(f, compiler.ErrCodeGeneric, err.Error(), nil)
	}
	if errs := compiler.Validate(spec); len(errs) > 0 {
		return outputError(f, errs[0].Code, errs[0].Message, errs)
	}

	database, ctx, err := opts.openDatabase(cmd, f, specs)
	if err != nil {
		return err
	}
	defer database.Close()

	result := QueryResult{Structure: spec.Structure}
	if opts.Count {
		result.Count, err = database.CountDocuments(ctx, spec.Structure, spec.Apply)
	} else if spec.Select != "" {
		result.Documents, err = database.ProjectDocuments(ctx, spec.Structure, spec.Apply)
		result.Count = int64(len(result.Documents))
	} else {
		result.Documents, err = database.QueryDocuments(ctx, spec.Structure, spec.Apply)
		result.Count = int64(len(result.Documents))
	}
	if err != nil {
		return compileFailed(f, err)
	}

	if f.JSON() {
		return f.Success(result)
	}
	if opts.Count {
		fmt.Fprintln(f.Writer, result.Count)
		return nil
	}
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	for _, doc := range result.Documents {
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	f.VerboseLog("%d document(s)", result.Count)
	return nil
}
