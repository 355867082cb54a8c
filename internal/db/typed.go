package db

import (
	"context"
	"fmt"

	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/query"
	"github.com/roach88/structdb/internal/schema"
)

// SchemaOf returns the schema of T, building it on first use.
func SchemaOf[T any](db *Database) (*schema.StructureSchema, error) {
	return schema.For[T](db.schemas)
}

func asAny[T any](docs []*T) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}

// Insert stores doc, assigning an id when it has none.
func Insert[T any](ctx context.Context, db *Database, doc *T) error {
	return InsertMany(ctx, db, []*T{doc})
}

// InsertMany stores docs in one transaction. Identity ids are checked out
// as one contiguous range.
func InsertMany[T any](ctx context.Context, db *Database, docs []*T) error {
	s, err := SchemaOf[T](db)
	if err != nil {
		return err
	}
	return db.insert(ctx, s, asAny(docs))
}

// InsertManyAsync is InsertMany with the index phase run concurrently.
// The channel receives exactly one value and is then closed.
func InsertManyAsync[T any](ctx context.Context, db *Database, docs []*T) <-chan error {
	s, err := SchemaOf[T](db)
	if err != nil {
		done := make(chan error, 1)
		done <- err
		close(done)
		return done
	}
	return db.insertAsync(ctx, s, asAny(docs))
}

// Replace overwrites the stored document with doc's id.
func Replace[T any](ctx context.Context, db *Database, doc *T) error {
	s, err := SchemaOf[T](db)
	if err != nil {
		return err
	}
	return db.replace(ctx, s, doc)
}

// Query returns the documents matching fn.
func Query[T any](ctx context.Context, db *Database, fn QueryFunc) ([]*T, error) {
	s, err := SchemaOf[T](db)
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
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		doc, err := db.decode(s, row)
		if err != nil {
			return nil, err
		}
		out = append(out, doc.(*T))
	}
	return out, nil
}

// QueryIDs returns the ids of the documents matching fn.
func QueryIDs[T any](ctx context.Context, db *Database, fn QueryFunc) ([]ids.StructureID, error) {
	s, err := SchemaOf[T](db)
	if err != nil {
		return nil, err
	}
	q, err := build(s, fn)
	if err != nil {
		return nil, err
	}
	return db.readIDs(ctx, s, q)
}

// Count returns the number of documents matching fn. Ordering and paging
// in fn are ignored.
func Count[T any](ctx context.Context, db *Database, fn QueryFunc) (int64, error) {
	s, err := SchemaOf[T](db)
	if err != nil {
		return 0, err
	}
	q, err := build(s, fn)
	if err != nil {
		return 0, err
	}
	return db.count(ctx, s, q)
}

// Exists reports whether a document with id exists.
func Exists[T any](ctx context.Context, db *Database, id ids.StructureID) (bool, error) {
	s, err := SchemaOf[T](db)
	if err != nil {
		return false, err
	}
	if err := db.ensure(ctx, s); err != nil {
		return false, err
	}
	stmt, err := db.dialect.Templates.Format("ExistsById", s.Tables.Structures)
	if err != nil {
		return false, err
	}
	n, err := db.store.ReadCount(ctx, stmt, namedID(id))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByID returns the document with id, or ErrNotFound.
func GetByID[T any](ctx context.Context, db *Database, id ids.StructureID) (*T, error) {
	docs, err := GetByIDs[T](ctx, db, []ids.StructureID{id})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return docs[0], nil
}

// GetByIDs returns the documents with the given ids ordered by id.
// Unknown ids are skipped.
func GetByIDs[T any](ctx context.Context, db *Database, idList []ids.StructureID) ([]*T, error) {
	s, err := SchemaOf[T](db)
	if err != nil {
		return nil, err
	}
	rows, err := db.readByIDs(ctx, s, idList)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		doc, err := db.decode(s, row)
		if err != nil {
			return nil, err
		}
		out = append(out, doc.(*T))
	}
	return out, nil
}

// DeleteByID removes the document with id, or returns ErrNotFound.
func DeleteByID[T any](ctx context.Context, db *Database, id ids.StructureID) error {
	n, err := DeleteByIDs[T](ctx, db, []ids.StructureID{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteByIDs removes the documents with the given ids and returns how
// many existed.
func DeleteByIDs[T any](ctx context.Context, db *Database, idList []ids.StructureID) (int64, error) {
	s, err := SchemaOf[T](db)
	if err != nil {
		return 0, err
	}
	return db.deleteByIDs(ctx, s, idList)
}

// Project returns, per matching document, the members selected with
// Builder.Select keyed by member path. Collection members yield a slice.
func Project[T any](ctx context.Context, db *Database, fn QueryFunc) ([]map[string]any, error) {
	s, err := SchemaOf[T](db)
	if err != nil {
		return nil, err
	}
	q, err := build(s, fn)
	if err != nil {
		return nil, err
	}
	return db.project(ctx, s, q)
}

func (db *Database) project(ctx context.Context, s *schema.StructureSchema, q query.Query) ([]map[string]any, error) {
	if len(q.Projection) == 0 {
		return nil, fmt.Errorf("project %s: no members selected", s.Name)
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
		m := make(map[string]any, len(q.Projection))
		for _, path := range q.Projection {
			f, ok := s.Field(path)
			if !ok {
				return nil, fmt.Errorf("project %s: no member %s", s.Name, path)
			}
			values := f.Values(doc)
			switch {
			case f.Enumerable:
				m[path] = values
			case len(values) > 0:
				m[path] = values[0]
			default:
				m[path] = nil
			}
		}
		out = append(out, m)
	}
	return out, nil
}
