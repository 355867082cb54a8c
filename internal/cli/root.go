package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/structdb/internal/compiler"
	"github.com/roach88/structdb/internal/config"
	"github.com/roach88/structdb/internal/db"
	"github.com/roach88/structdb/internal/logging"
	"github.com/roach88/structdb/internal/schema"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file path; structdb.yaml when empty
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the structdb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "structdb",
		Short: "structdb - documents over relational index tables",
		Long: `Store documents as serialized payloads with one index table per
data type, and query them with lambda predicates compiled to SQL.

Structures and named queries are declared in CUE.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default structdb.yaml)")

	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // verbose logs go to stderr to keep JSON clean
		Verbose:   o.Verbose,
	}
}

// loadConfig reads --config and builds the command logger. Logs go to
// stderr; --verbose lowers the level to debug.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (*config.Config, context.Context, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "loading config", err)
	}
	level := cfg.LogLevel
	if o.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "configuring logger", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return cfg, logging.WithLogger(ctx, logger), nil
}

// loadSpecs loads the CUE declarations of dir, reporting the first error
// through f.
func loadSpecs(f *OutputFormatter, dir string) (*compiler.LoadResult, error) {
	specs, errs := compiler.LoadSpecs(dir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		code, message := parseLoadError(errs[0])
		return nil, outputError(f, code, message, nil)
	}
	f.VerboseLog("Found %d CUE file(s) in %s", specs.FileCount, dir)
	return specs, nil
}

// declaredSchema builds the schema of one declared structure without
// touching a database.
func declaredSchema(f *OutputFormatter, specs *compiler.LoadResult, name string) (*schema.StructureSchema, error) {
	decl, ok := specs.Structure(name)
	if !ok {
		return nil, outputError(f, compiler.ErrUnknownStructure, fmt.Sprintf("no structure named %q", name), nil)
	}
	s, err := schema.FromDeclaration(decl)
	if err != nil {
		return nil, outputError(f, compiler.ErrCodeBuildFailed, err.Error(), nil)
	}
	return s, nil
}

// openDatabase opens the configured database and registers every
// declared structure, creating missing tables.
func (o *RootOptions) openDatabase(cmd *cobra.Command, f *OutputFormatter, specs *compiler.LoadResult) (*db.Database, context.Context, error) {
	cfg, ctx, err := o.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(ctx, *cfg)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "opening database", err)
	}
	for _, sd := range specs.Structures {
		f.VerboseLog("Registering structure: %s", sd.Declaration.Name)
		if _, err := database.Register(ctx, sd.Declaration); err != nil {
			database.Close()
			return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("registering %s", sd.Declaration.Name), err)
		}
	}
	return database, ctx, nil
}
