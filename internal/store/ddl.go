package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/structdb/internal/dialect"
	"github.com/roach88/structdb/internal/schema"
)

// EnsureStructureSet creates the tables and indexes of a structure set if
// they do not exist. payload is the serializer name deciding the type of
// the Json column.
//
// This function is idempotent.
func (s *Store) EnsureStructureSet(ctx context.Context, ss *schema.StructureSchema, d *dialect.Provider, payload string) error {
	stmts, err := structureSetDDL(ss, d, payload)
	if err != nil {
		return fmt.Errorf("ensure structure set %s: %w", ss.Name, err)
	}
	return s.WithTx(ctx, func(tx *Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecuteNonQuery(ctx, stmt); err != nil {
				return fmt.Errorf("ensure structure set %s: %w", ss.Name, err)
			}
		}
		return nil
	})
}

func structureSetDDL(ss *schema.StructureSchema, d *dialect.Provider, payload string) ([]string, error) {
	idType, err := d.IDType(ss.IDKind)
	if err != nil {
		return nil, err
	}
	payloadType, err := d.PayloadType(payload)
	if err != nil {
		return nil, err
	}

	tpl := d.Templates
	var stmts []string
	add := func(name string, args ...any) error {
		stmt, err := tpl.Format(name, args...)
		if err != nil {
			return err
		}
		stmts = append(stmts, stmt)
		return nil
	}

	if err := add("CreateStructuresTable", ss.Tables.Structures, idType, payloadType); err != nil {
		return nil, err
	}
	if err := add("CreateUniquesTable", ss.Tables.Uniques, idType); err != nil {
		return nil, err
	}
	if err := add("CreateUniquesStructureIdIndex", ss.Tables.Uniques); err != nil {
		return nil, err
	}

	created := make(map[string]bool)
	for _, code := range schema.AllDataTypeCodes {
		table, err := ss.Tables.IndexTable(code)
		if err != nil {
			return nil, err
		}
		if created[table] {
			continue
		}
		created[table] = true
		colType, err := d.ColumnType(code)
		if err != nil {
			return nil, err
		}
		if err := add("CreateIndexesTable", table, idType, colType); err != nil {
			return nil, err
		}
		if err := add("CreateIndexesMemberIndex", table); err != nil {
			return nil, err
		}
		if err := add("CreateIndexesStructureIdIndex", table); err != nil {
			return nil, err
		}
	}
	return stmts, nil
}

// DropStructureSet drops every table of a structure set.
func (s *Store) DropStructureSet(ctx context.Context, ss *schema.StructureSchema, d *dialect.Provider) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		for _, table := range ss.Tables.All() {
			stmt, err := d.Templates.Format("DropTable", table)
			if err != nil {
				return fmt.Errorf("drop structure set %s: %w", ss.Name, err)
			}
			if _, err := tx.ExecuteNonQuery(ctx, stmt); err != nil {
				return fmt.Errorf("drop structure set %s: %w", ss.Name, err)
			}
		}
		return nil
	})
}

// RenameStructureSet renames every table of a structure set. Indexes keep
// their original names.
func (s *Store) RenameStructureSet(ctx context.Context, from, to schema.Tables, d *dialect.Provider) error {
	src, dst := from.All(), to.All()
	return s.WithTx(ctx, func(tx *Tx) error {
		for i := range src {
			stmt, err := d.Templates.Format("RenameTable", src[i], dst[i])
			if err != nil {
				return fmt.Errorf("rename %s: %w", src[i], err)
			}
			if _, err := tx.ExecuteNonQuery(ctx, stmt); err != nil {
				return fmt.Errorf("rename %s to %s: %w", src[i], dst[i], err)
			}
		}
		return nil
	})
}

// TableExists reports whether table exists.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	v, err := s.ExecuteScalar(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = @name", sql.Named("name", table))
	if err != nil {
		return false, fmt.Errorf("table exists %s: %w", table, err)
	}
	n, _ := v.(int64)
	return n > 0, nil
}
