package db

import (
	"context"
	"database/sql"

	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/schema"
)

func namedID(id ids.StructureID) sql.NamedArg {
	return sql.Named("id", id.Value())
}

func (db *Database) lookup(name string) (*schema.StructureSchema, error) {
	return db.schemas.MustLookup(name)
}

func asDocuments(docs []map[string]any) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}

// InsertDocuments stores declared documents of the named schema. Ids are
// written back into the maps.
func (db *Database) InsertDocuments(ctx context.Context, name string, docs []map[string]any) error {
	s, err := db.lookup(name)
	if err != nil {
		return err
	}
	return db.insert(ctx, s, asDocuments(docs))
}

// InsertDocumentsAsync is InsertDocuments with the index phase run
// concurrently.
func (db *Database) InsertDocumentsAsync(ctx context.Context, name string, docs []map[string]any) <-chan error {
	s, err := db.lookup(name)
	if err != nil {
		done := make(chan error, 1)
		done <- err
		close(done)
		return done
	}
	return db.insertAsync(ctx, s, asDocuments(docs))
}

// ReplaceDocument overwrites a stored declared document.
func (db *Database) ReplaceDocument(ctx context.Context, name string, doc map[string]any) error {
	s, err := db.lookup(name)
	if err != nil {
		return err
	}
	return db.replace(ctx, s, doc)
}

// QueryDocuments returns the declared documents matching fn.
func (db *Database) QueryDocuments(ctx context.Context, name string, fn QueryFunc) ([]map[string]any, error) {
	s, err := db.lookup(name)
	if err != nil {
		return nil, err
	}
	q, err := build(s, fn)
	if err != nil {
		return nil, err
	}
	rows, err := db.readRows(ctx, s, q)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		doc, err := db.decode(s, row)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc.(*map[string]any))
	}
	return out, nil
}

// CountDocuments counts the declared documents matching fn.
func (db *Database) CountDocuments(ctx context.Context, name string, fn QueryFunc) (int64, error) {
	s, err := db.lookup(name)
	if err != nil {
		return 0, err
	}
	q, err := build(s, fn)
	if err != nil {
		return 0, err
	}
	return db.count(ctx, s, q)
}

// ProjectDocuments returns the selected members of matching declared
// documents.
func (db *Database) ProjectDocuments(ctx context.Context, name string, fn QueryFunc) ([]map[string]any, error) {
	s, err := db.lookup(name)
	if err != nil {
		return nil, err
	}
	q, err := build(s, fn)
	if err != nil {
		return nil, err
	}
	return db.project(ctx, s, q)
}

// DeleteDocuments removes declared documents by id.
func (db *Database) DeleteDocuments(ctx context.Context, name string, idList []ids.StructureID) (int64, error) {
	s, err := db.lookup(name)
	if err != nil {
		return 0, err
	}
	return db.deleteByIDs(ctx, s, idList)
}
