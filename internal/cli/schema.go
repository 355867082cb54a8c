package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/structdb/internal/schema"
)

// SchemaInfo describes the storage layout of one declared structure.
type SchemaInfo struct {
	Name   string      `json:"name"`
	IDName string      `json:"id_name"`
	IDKind string      `json:"id_kind"`
	Tables []string    `json:"tables"`
	Fields []FieldInfo `json:"fields"`
}

// FieldInfo describes one member and the index table its values go to.
type FieldInfo struct {
	Path       string `json:"path"`
	DataType   string `json:"data_type"`
	Table      string `json:"table,omitempty"`
	Enumerable bool   `json:"enumerable,omitempty"`
	Indexed    bool   `json:"indexed"`
	Unique     bool   `json:"unique,omitempty"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <specs-dir>",
		Short: "Show the tables and members of declared structures",
		Long: `Load CUE structure declarations and print, per structure, the tables
it owns and the index table each member is written to.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, args[0], cmd)
		},
	}
}

func runSchema(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	specs, err := loadSpecs(f, specsDir)
	if err != nil {
		return err
	}

	infos := make([]SchemaInfo, 0, len(specs.Structures))
	for _, sd := range specs.Structures {
		s, err := declaredSchema(f, specs, sd.Declaration.Name)
		if err != nil {
			return err
		}
		infos = append(infos, describeSchema(s))
	}

	if f.JSON() {
		return f.Success(infos)
	}
	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(f.Writer)
		}
		writeSchemaText(f.Writer, info)
	}
	return nil
}

func describeSchema(s *schema.StructureSchema) SchemaInfo {
	info := SchemaInfo{
		Name:   s.Name,
		IDName: s.IDPath,
		IDKind: s.IDKind.String(),
		Tables: s.Tables.All(),
	}
	for _, field := range s.Fields() {
		fi := FieldInfo{
			Path:       field.Path,
			DataType:   field.DataType.String(),
			Enumerable: field.Enumerable,
			Indexed:    field.Indexed,
			Unique:     field.Unique,
		}
		if field.Indexed {
			fi.Table, _ = s.Tables.IndexTable(field.DataType)
		}
		info.Fields = append(info.Fields, fi)
	}
	return info
}

func writeSchemaText(w io.Writer, info SchemaInfo) {
	fmt.Fprintf(w, "%s (id %s: %s)\n", info.Name, info.IDName, info.IDKind)
	fmt.Fprintf(w, "  tables: %s\n", strings.Join(info.Tables, ", "))

	width := 0
	for _, fi := range info.Fields {
		width = max(width, len(fi.Path))
	}
	for _, fi := range info.Fields {
		var flags []string
		if fi.Enumerable {
			flags = append(flags, "collection")
		}
		if fi.Unique {
			flags = append(flags, "unique")
		}
		table := fi.Table
		if !fi.Indexed {
			table = "(not indexed)"
		}
		line := fmt.Sprintf("  %-*s  %-13s  %s", width, fi.Path, fi.DataType, table)
		if len(flags) > 0 {
			line += "  [" + strings.Join(flags, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}
}
