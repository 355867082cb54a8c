package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitResult lists the tables of every registered structure.
type InitResult struct {
	Structures map[string][]string `json:"structures"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <specs-dir>",
		Short: "Create the tables of declared structures",
		Long: `Open the configured database and create the structure, uniques and
index tables of every declared structure. Existing tables are kept.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, args[0], cmd)
		},
	}
}

func runInit(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	specs, err := loadSpecs(f, specsDir)
	if err != nil {
		return err
	}
	database, _, err := opts.openDatabase(cmd, f, specs)
	if err != nil {
		return err
	}
	defer database.Close()

	result := InitResult{Structures: make(map[string][]string)}
	for _, s := range database.Schemas().All() {
		result.Structures[s.Name] = s.Tables.All()
	}

	if f.JSON() {
		return f.Success(result)
	}
	for _, s := range database.Schemas().All() {
		fmt.Fprintf(f.Writer, "✓ %s: %d table(s)\n", s.Name, len(s.Tables.All()))
	}
	return nil
}
