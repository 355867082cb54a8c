package insert

import "context"

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_executor.go -package=mocks github.com/roach88/structdb/internal/insert Executor

// Executor runs SQL against the database. Arguments are sql.NamedArg
// values matching the @name placeholders of the statement.
//
// Implementations may be bound to a transaction; the orchestrator never
// begins or commits one itself.
type Executor interface {
	// ExecuteNonQuery runs a statement and returns the affected row count.
	ExecuteNonQuery(ctx context.Context, query string, args ...any) (int64, error)

	// ExecuteScalar returns the first column of the first row.
	ExecuteScalar(ctx context.Context, query string, args ...any) (any, error)

	// Read calls fn once per result row with a function that scans the
	// current row.
	Read(ctx context.Context, query string, fn func(scan func(dest ...any) error) error, args ...any) error

	// BulkInsert writes rows into table. Each row holds one value per column.
	BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) error
}
