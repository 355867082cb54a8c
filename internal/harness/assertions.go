package harness

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/structdb/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(ctx context.Context, st *store.Store, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTableRows:
			err = assertTableRows(ctx, st, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertTableRows counts the rows of a table matching every Where entry.
func assertTableRows(ctx context.Context, st *store.Store, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q", a.Table)
	}

	// Sorted for a stable statement text
	cols := make([]string, 0, len(a.Where))
	for col := range a.Where {
		if !validIdentifier.MatchString(col) {
			return fmt.Errorf("invalid column name %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	q := "SELECT COUNT(*) FROM [" + a.Table + "]"
	args := make([]any, 0, len(cols))
	if len(cols) > 0 {
		conds := make([]string, len(cols))
		for i, col := range cols {
			conds[i] = fmt.Sprintf("[%s] = @w%d", col, i)
			args = append(args, sql.Named(fmt.Sprintf("w%d", i), a.Where[col]))
		}
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	n, err := st.ReadCount(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("count %s: %w", a.Table, err)
	}
	if n != int64(a.Count) {
		return &AssertionError{
			Type:     AssertTableRows,
			Expected: fmt.Sprintf("%d row(s) in %s where %v", a.Count, a.Table, a.Where),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// compareIDs reports a mismatch between expected and actual ids.
func compareIDs(name string, expected, actual []string) string {
	if slices.Equal(expected, actual) {
		return ""
	}
	return fmt.Sprintf("query %s: expected ids %v, got %v", name, expected, actual)
}
