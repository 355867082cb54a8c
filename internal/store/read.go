package store

import (
	"context"
	"fmt"

	"github.com/roach88/structdb/internal/ids"
)

// StructureRow is one row of a structures table.
type StructureRow struct {
	ID      ids.StructureID
	Payload []byte
}

// ReadStructures runs a query selecting (StructureId, Json) and returns the
// rows in result order.
//
// Returns an empty slice (not nil) when nothing matches.
func (e executor) ReadStructures(ctx context.Context, kind ids.Kind, query string, args ...any) ([]StructureRow, error) {
	rows := []StructureRow{}
	err := e.Read(ctx, query, func(scan func(dest ...any) error) error {
		var raw any
		var payload []byte
		if err := scan(&raw, &payload); err != nil {
			return fmt.Errorf("scan structure: %w", err)
		}
		id, err := ids.FromValue(kind, raw)
		if err != nil {
			return err
		}
		rows = append(rows, StructureRow{ID: id, Payload: payload})
		return nil
	}, args...)
	if err != nil {
		return nil, fmt.Errorf("read structures: %w", err)
	}
	return rows, nil
}

// ReadIDs runs a query selecting StructureId only.
//
// Returns an empty slice (not nil) when nothing matches.
func (e executor) ReadIDs(ctx context.Context, kind ids.Kind, query string, args ...any) ([]ids.StructureID, error) {
	out := []ids.StructureID{}
	err := e.Read(ctx, query, func(scan func(dest ...any) error) error {
		var raw any
		if err := scan(&raw); err != nil {
			return fmt.Errorf("scan structure id: %w", err)
		}
		id, err := ids.FromValue(kind, raw)
		if err != nil {
			return err
		}
		out = append(out, id)
		return nil
	}, args...)
	if err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	return out, nil
}

// ReadCount runs a COUNT query.
func (e executor) ReadCount(ctx context.Context, query string, args ...any) (int64, error) {
	v, err := e.ExecuteScalar(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("read count: %w", err)
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("read count: unexpected %T", v)
	}
	return n, nil
}
