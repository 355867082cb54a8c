package insert

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/roach88/structdb/internal/dialect"
	"github.com/roach88/structdb/internal/indexer"
	"github.com/roach88/structdb/internal/schema"
)

// Strategy is how a group of rows is written.
type Strategy int

const (
	// StrategyNone writes nothing.
	StrategyNone Strategy = iota
	// StrategySingle issues one INSERT per row.
	StrategySingle
	// StrategyBulk hands all rows to Executor.BulkInsert.
	StrategyBulk
)

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategySingle:
		return "single"
	case StrategyBulk:
		return "bulk"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ChooseStrategy picks the write strategy for n rows. forceSingle is set by
// replace, which always writes row by row.
func ChooseStrategy(n int, forceSingle bool) Strategy {
	switch {
	case n <= 0:
		return StrategyNone
	case n == 1 || forceSingle:
		return StrategySingle
	default:
		return StrategyBulk
	}
}

// indexColumns are the columns of every index table, in row order.
var indexColumns = []string{"StructureId", "MemberPath", "Value"}

// IndexInsertAction writes one group of index rows into one index table.
type IndexInsertAction struct {
	Table    string
	DataType schema.DataTypeCode
	Indexes  []indexer.StructureIndex
	Strategy Strategy
}

// Run writes the group and blocks until done.
func (a IndexInsertAction) Run(ctx context.Context, exec Executor, tpl dialect.Templates) error {
	switch a.Strategy {
	case StrategyNone:
		return nil
	case StrategySingle:
		stmt, err := tpl.Format("InsertIndex", a.Table)
		if err != nil {
			return fmt.Errorf("insert indexes into %s: %w", a.Table, err)
		}
		for _, ix := range a.Indexes {
			_, err := exec.ExecuteNonQuery(ctx, stmt,
				sql.Named("id", ix.StructureID.Value()),
				sql.Named("path", ix.Path),
				sql.Named("value", ix.Value))
			if err != nil {
				return fmt.Errorf("insert indexes into %s: %w", a.Table, err)
			}
		}
		return nil
	case StrategyBulk:
		rows := make([][]any, len(a.Indexes))
		for i, ix := range a.Indexes {
			rows[i] = []any{ix.StructureID.Value(), ix.Path, ix.Value}
		}
		if err := exec.BulkInsert(ctx, a.Table, indexColumns, rows); err != nil {
			return fmt.Errorf("bulk insert indexes into %s: %w", a.Table, err)
		}
		return nil
	default:
		return fmt.Errorf("insert indexes into %s: unknown strategy %s", a.Table, a.Strategy)
	}
}

// RunAsync starts Run on its own goroutine. The channel receives exactly
// one value and is then closed.
func (a IndexInsertAction) RunAsync(ctx context.Context, exec Executor, tpl dialect.Templates) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- a.Run(ctx, exec, tpl)
	}()
	return done
}

// Groups holds the index entries of a batch keyed by data type.
type Groups map[schema.DataTypeCode][]indexer.StructureIndex

// GroupIndexes groups entries by their DataTypeCode. Entry order within a
// group follows the input.
func GroupIndexes(indexes []indexer.StructureIndex) Groups {
	groups := make(Groups)
	for _, ix := range indexes {
		groups[ix.DataType] = append(groups[ix.DataType], ix)
	}
	return groups
}

// BuildActions turns groups into insert actions ordered by data type.
// When both String and Enum groups are present they are merged into a
// single action on the strings table. Empty groups produce no action.
func BuildActions(s *schema.StructureSchema, groups Groups, forceSingle bool) ([]IndexInsertAction, error) {
	merged := make(Groups, len(groups))
	for code, g := range groups {
		merged[code] = g
	}
	if len(merged[schema.String]) > 0 && len(merged[schema.Enum]) > 0 {
		union := make([]indexer.StructureIndex, 0, len(merged[schema.String])+len(merged[schema.Enum]))
		union = append(union, merged[schema.String]...)
		union = append(union, merged[schema.Enum]...)
		merged[schema.String] = union
		delete(merged, schema.Enum)
	}

	codes := make([]schema.DataTypeCode, 0, len(merged))
	for code := range merged {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	var actions []IndexInsertAction
	for _, code := range codes {
		g := merged[code]
		strategy := ChooseStrategy(len(g), forceSingle)
		if strategy == StrategyNone {
			continue
		}
		table, err := s.Tables.IndexTable(code)
		if err != nil {
			return nil, err
		}
		actions = append(actions, IndexInsertAction{Table: table, DataType: code, Indexes: g, Strategy: strategy})
	}
	return actions, nil
}
