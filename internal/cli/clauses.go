package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/structdb/internal/compiler"
)

// queryClauses are the flags shared by commands that build a query.
type queryClauses struct {
	Type    string
	Use     string
	Where   []string
	OrderBy string
	Desc    bool
	Skip    int
	Take    int
	Select  string
}

func (c *queryClauses) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.Type, "type", "t", "", "structure to query")
	cmd.Flags().StringVar(&c.Use, "use", "", "run a query declared in the specs")
	cmd.Flags().StringArrayVarP(&c.Where, "where", "w", nil, "predicate, e.g. 'Score > 10' (repeatable, joined with and)")
	cmd.Flags().StringVar(&c.OrderBy, "order-by", "", "ordering member, e.g. 'Name'")
	cmd.Flags().BoolVar(&c.Desc, "desc", false, "order descending")
	cmd.Flags().IntVar(&c.Skip, "skip", 0, "structures to skip")
	cmd.Flags().IntVar(&c.Take, "take", -1, "maximum structures to return (-1 for all)")
	cmd.Flags().StringVar(&c.Select, "select", "", "projection, e.g. 'new(Name, Score)'")
}

// spec resolves the flags into a query over a declared structure. --use
// takes a declared query and rejects inline clauses.
func (c *queryClauses) spec(specs *compiler.LoadResult) (compiler.QuerySpec, error) {
	if c.Use != "" {
		if len(c.Where) > 0 || c.OrderBy != "" || c.Skip != 0 || c.Take >= 0 || c.Select != "" {
			return compiler.QuerySpec{}, fmt.Errorf("--use cannot be combined with inline clauses")
		}
		q, ok := specs.Query(c.Use)
		if !ok {
			return compiler.QuerySpec{}, fmt.Errorf("no query named %q", c.Use)
		}
		if c.Type != "" && c.Type != q.Structure {
			return compiler.QuerySpec{}, fmt.Errorf("query %q reads %s, not %s", c.Use, q.Structure, c.Type)
		}
		return q, nil
	}

	if c.Type == "" {
		return compiler.QuerySpec{}, fmt.Errorf("--type or --use is required")
	}
	if c.Desc && c.OrderBy == "" {
		return compiler.QuerySpec{}, fmt.Errorf("--desc needs --order-by")
	}
	q := compiler.QuerySpec{
		Structure: c.Type,
		Where:     c.Where,
		Skip:      c.Skip,
		Select:    c.Select,
	}
	if c.OrderBy != "" {
		q.OrderBy = []compiler.Ordering{{Member: c.OrderBy, Descending: c.Desc}}
	}
	if c.Take >= 0 {
		take := c.Take
		q.Take = &take
	}
	return q, nil
}
