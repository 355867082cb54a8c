package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// executor implements insert.Executor over a *sql.DB or a *sql.Tx.
// begin is nil inside a transaction.
type executor struct {
	q     querier
	begin func(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// ExecuteNonQuery runs a statement and returns the affected row count.
func (e executor) ExecuteNonQuery(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := e.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ExecuteScalar returns the first column of the first row, or nil when
// there are no rows.
func (e executor) ExecuteScalar(ctx context.Context, query string, args ...any) (any, error) {
	var v any
	err := e.q.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Read calls fn for every result row.
func (e executor) Read(ctx context.Context, query string, fn func(scan func(dest ...any) error) error, args ...any) error {
	rows, err := e.q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows.Scan); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	return nil
}

// BulkInsert prepares one INSERT for table and executes it once per row.
// Outside a transaction the rows are written in a transaction of their own.
func (e executor) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if e.begin == nil {
		return bulkInsert(ctx, e.q, table, columns, rows)
	}

	tx, err := e.begin(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk insert: %w", err)
	}
	if err := bulkInsert(ctx, tx, table, columns, rows); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk insert: %w", err)
	}
	return nil
}

func bulkInsert(ctx context.Context, q querier, table string, columns []string, rows [][]any) error {
	marks := make([]string, len(columns))
	for i := range marks {
		marks[i] = "?"
	}
	stmtSQL := fmt.Sprintf("INSERT INTO [%s] (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(marks, ", "))

	stmt, err := q.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return fmt.Errorf("prepare bulk insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("bulk insert into %s: row %d has %d values, want %d", table, i, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("bulk insert into %s: %w", table, err)
		}
	}
	return nil
}
