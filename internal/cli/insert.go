package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/structdb/internal/compiler"
	"github.com/roach88/structdb/internal/logging"
)

// InsertOptions holds flags for the insert command.
type InsertOptions struct {
	*RootOptions
	Type  string
	Async bool
}

// InsertResult reports the ids assigned to inserted documents.
type InsertResult struct {
	Structure string `json:"structure"`
	Inserted  int    `json:"inserted"`
	IDs       []any  `json:"ids"`
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InsertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "insert <specs-dir> <docs.json>",
		Short: "Insert a JSON array of documents",
		Long: `Insert every document of a JSON array as one batch. Documents without
an id get one assigned. Use - to read the array from stdin.

The batch is written in one transaction: a unique constraint violation
leaves the database unchanged.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsert(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "structure the documents belong to (required)")
	cmd.Flags().BoolVar(&opts.Async, "async", false, "build index rows concurrently")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runInsert(opts *InsertOptions, specsDir, docsPath string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	docs, err := readDocuments(cmd.InOrStdin(), docsPath)
	if err != nil {
		return outputError(f, compiler.ErrCodeLoadFailed, err.Error(), nil)
	}
	specs, err := loadSpecs(f, specsDir)
	if err != nil {
		return err
	}
	s, err := declaredSchema(f, specs, opts.Type)
	if err != nil {
		return err
	}

	database, ctx, err := opts.openDatabase(cmd, f, specs)
	if err != nil {
		return err
	}
	defer database.Close()

	logging.FromContext(ctx).DebugContext(ctx, "inserting documents",
		"structure", s.Name, "count", len(docs), "async", opts.Async)
	if opts.Async {
		err = <-database.InsertDocumentsAsync(ctx, s.Name, docs)
	} else {
		err = database.InsertDocuments(ctx, s.Name, docs)
	}
	if err != nil {
		_ = f.Error(compiler.ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "insert failed", err)
	}

	result := InsertResult{Structure: s.Name, Inserted: len(docs), IDs: make([]any, len(docs))}
	for i, doc := range docs {
		id, err := s.GetID(doc)
		if err != nil {
			return WrapExitError(ExitCommandError, "reading assigned id", err)
		}
		result.IDs[i] = id.Value()
	}

	if f.JSON() {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ Inserted %d %s document(s)\n", result.Inserted, result.Structure)
	for _, id := range result.IDs {
		fmt.Fprintf(f.Writer, "  %v\n", id)
	}
	return nil
}

// readDocuments decodes a JSON array of objects. Integral numbers become
// int64 so identities and integer members keep their precision.
func readDocuments(stdin io.Reader, path string) ([]map[string]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var docs []map[string]any
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("decoding documents: %w", err)
	}
	for _, doc := range docs {
		for k, v := range doc {
			doc[k] = normalizeNumbers(v)
		}
	}
	return docs, nil
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
	}
	return v
}
