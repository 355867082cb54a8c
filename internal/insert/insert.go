// Package insert persists structures: the structure row, its unique rows
// and its index rows.
//
// Every write path issues the structures phase, then the uniques phase,
// then the index phase. Index rows are never written before their
// structure rows have been issued. Nothing here begins or commits a
// transaction; callers wanting all-or-nothing batches pass a tx-bound
// Executor.
package insert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/structdb/internal/dialect"
	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/indexer"
	"github.com/roach88/structdb/internal/logging"
	"github.com/roach88/structdb/internal/schema"
	"github.com/roach88/structdb/internal/serial"
)

var (
	structureColumns = []string{"StructureId", "Json"}
	uniqueColumns    = []string{"StructureId", "UqMemberPath", "UqValue"}
)

// Inserter writes structures through an Executor.
//
// Thread-safety: an Inserter holds no mutable state; concurrent calls are
// as safe as the Executor they share.
type Inserter struct {
	exec       Executor
	templates  dialect.Templates
	serializer serial.Serializer
}

// New creates an Inserter.
func New(exec Executor, tpl dialect.Templates, ser serial.Serializer) *Inserter {
	return &Inserter{exec: exec, templates: tpl, serializer: ser}
}

// WithExecutor returns a copy of the Inserter that writes through exec,
// typically a transaction.
func (in *Inserter) WithExecutor(exec Executor) *Inserter {
	cp := *in
	cp.exec = exec
	return &cp
}

// batch is the prepared, id-assigned input of one insert.
type batch struct {
	ids      []ids.StructureID
	docs     []any
	payloads []any
	uniques  []indexer.UniqueValue
}

// prepare reads ids, serializes payloads and extracts uniques. A duplicate
// unique value inside the batch fails here, before any write.
func (in *Inserter) prepare(s *schema.StructureSchema, docs []any) (*batch, error) {
	b := &batch{docs: docs}
	perDoc := make([][]indexer.UniqueValue, 0, len(docs))
	for _, doc := range docs {
		id, err := s.GetID(doc)
		if err != nil {
			return nil, err
		}
		if id.IsEmpty() {
			return nil, fmt.Errorf("insert %s: structure id is not assigned", s.Name)
		}
		payload, err := in.serializer.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", s.Name, err)
		}
		uqs, err := indexer.ExtractUniques(s, id, doc)
		if err != nil {
			return nil, err
		}
		b.ids = append(b.ids, id)
		b.payloads = append(b.payloads, serial.ColumnValue(in.serializer, payload))
		perDoc = append(perDoc, uqs)
		b.uniques = append(b.uniques, uqs...)
	}
	if err := indexer.CheckBatchUniques(s, perDoc); err != nil {
		return nil, err
	}
	return b, nil
}

type actionsResult struct {
	actions []IndexInsertAction
	err     error
}

// buildIndexActions extracts and groups the index rows of the batch.
func buildIndexActions(s *schema.StructureSchema, b *batch, forceSingle bool) ([]IndexInsertAction, error) {
	var all []indexer.StructureIndex
	for i, doc := range b.docs {
		indexes, err := indexer.Extract(s, b.ids[i], doc)
		if err != nil {
			return nil, err
		}
		all = append(all, indexes...)
	}
	return BuildActions(s, GroupIndexes(all), forceSingle)
}

// Insert writes a batch of id-assigned documents and blocks until done.
//
// Index grouping runs on a background goroutine while the structure and
// unique rows are written; it is joined before the first index row.
func (in *Inserter) Insert(ctx context.Context, s *schema.StructureSchema, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	b, err := in.prepare(s, docs)
	if err != nil {
		return err
	}

	grouped := make(chan actionsResult, 1)
	go func() {
		actions, err := buildIndexActions(s, b, false)
		grouped <- actionsResult{actions: actions, err: err}
	}()

	if err := in.insertStructures(ctx, s, b); err != nil {
		return err
	}
	if err := in.insertUniques(ctx, s, b.uniques, false); err != nil {
		return err
	}

	res := <-grouped
	if res.err != nil {
		return res.err
	}
	return in.runActions(ctx, s, res.actions)
}

// InsertAsync starts the insert of a batch and returns at once. The three
// phases are awaited in order; the index actions of the last phase run
// concurrently. The channel receives exactly one value and is then closed.
func (in *Inserter) InsertAsync(ctx context.Context, s *schema.StructureSchema, docs []any) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- in.insertConcurrent(ctx, s, docs)
	}()
	return done
}

func (in *Inserter) insertConcurrent(ctx context.Context, s *schema.StructureSchema, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	b, err := in.prepare(s, docs)
	if err != nil {
		return err
	}
	if err := in.insertStructures(ctx, s, b); err != nil {
		return err
	}
	if err := in.insertUniques(ctx, s, b.uniques, false); err != nil {
		return err
	}
	actions, err := buildIndexActions(s, b, false)
	if err != nil {
		return err
	}
	return in.runActionsConcurrently(ctx, s, actions)
}

// Replace overwrites the payload, unique rows and index rows of one
// existing structure. Every write is single-row.
func (in *Inserter) Replace(ctx context.Context, s *schema.StructureSchema, doc any) error {
	b, err := in.prepare(s, []any{doc})
	if err != nil {
		return err
	}
	id := b.ids[0]
	log := logging.FromContext(ctx)
	log.DebugContext(ctx, "replace structure", "schema", s.Name, "id", id.String())

	if err := in.deleteRows(ctx, s, id); err != nil {
		return err
	}

	stmt, err := in.templates.Format("UpdateStructure", s.Tables.Structures)
	if err != nil {
		return fmt.Errorf("replace %s: %w", s.Name, err)
	}
	n, err := in.exec.ExecuteNonQuery(ctx, stmt, sql.Named("id", id.Value()), sql.Named("json", b.payloads[0]))
	if err != nil {
		return fmt.Errorf("replace %s %s: %w", s.Name, id, err)
	}
	if n == 0 {
		return &StructureNotFoundError{Schema: s.Name, StructureID: id}
	}

	if err := in.insertUniques(ctx, s, b.uniques, true); err != nil {
		return err
	}
	actions, err := buildIndexActions(s, b, true)
	if err != nil {
		return err
	}
	return in.runActions(ctx, s, actions)
}

// ReplaceAsync is Replace on its own goroutine.
func (in *Inserter) ReplaceAsync(ctx context.Context, s *schema.StructureSchema, doc any) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- in.Replace(ctx, s, doc)
	}()
	return done
}

// deleteRows removes the index and unique rows of one structure.
func (in *Inserter) deleteRows(ctx context.Context, s *schema.StructureSchema, id ids.StructureID) error {
	tables := append(s.Tables.IndexTables(), s.Tables.Uniques)
	for _, table := range tables {
		stmt, err := in.templates.Format("DeleteByStructureId", table)
		if err != nil {
			return fmt.Errorf("delete rows of %s: %w", s.Name, err)
		}
		if _, err := in.exec.ExecuteNonQuery(ctx, stmt, sql.Named("id", id.Value())); err != nil {
			return fmt.Errorf("delete rows of %s %s from %s: %w", s.Name, id, table, err)
		}
	}
	return nil
}

func (in *Inserter) insertStructures(ctx context.Context, s *schema.StructureSchema, b *batch) error {
	strategy := ChooseStrategy(len(b.ids), false)
	logging.FromContext(ctx).DebugContext(ctx, "insert structures",
		"schema", s.Name,
		"count", len(b.ids),
		"table", s.Tables.Structures,
		"strategy", strategy.String())

	switch strategy {
	case StrategySingle:
		stmt, err := in.templates.Format("InsertStructure", s.Tables.Structures)
		if err != nil {
			return fmt.Errorf("insert structures of %s: %w", s.Name, err)
		}
		for i, id := range b.ids {
			if _, err := in.exec.ExecuteNonQuery(ctx, stmt, sql.Named("id", id.Value()), sql.Named("json", b.payloads[i])); err != nil {
				return fmt.Errorf("insert structure %s %s: %w", s.Name, id, err)
			}
		}
	case StrategyBulk:
		rows := make([][]any, len(b.ids))
		for i, id := range b.ids {
			rows[i] = []any{id.Value(), b.payloads[i]}
		}
		if err := in.exec.BulkInsert(ctx, s.Tables.Structures, structureColumns, rows); err != nil {
			return fmt.Errorf("bulk insert structures of %s: %w", s.Name, err)
		}
	}
	return nil
}

func (in *Inserter) insertUniques(ctx context.Context, s *schema.StructureSchema, uniques []indexer.UniqueValue, forceSingle bool) error {
	strategy := ChooseStrategy(len(uniques), forceSingle)
	if strategy == StrategyNone {
		return nil
	}
	logging.FromContext(ctx).DebugContext(ctx, "insert uniques",
		"schema", s.Name,
		"count", len(uniques),
		"table", s.Tables.Uniques,
		"strategy", strategy.String())

	if strategy == StrategyBulk {
		rows := make([][]any, len(uniques))
		for i, u := range uniques {
			rows[i] = []any{u.StructureID.Value(), u.Path, u.Value}
		}
		if err := in.exec.BulkInsert(ctx, s.Tables.Uniques, uniqueColumns, rows); err != nil {
			return fmt.Errorf("bulk insert uniques of %s: %w", s.Name, err)
		}
		return nil
	}

	stmt, err := in.templates.Format("InsertUnique", s.Tables.Uniques)
	if err != nil {
		return fmt.Errorf("insert uniques of %s: %w", s.Name, err)
	}
	for _, u := range uniques {
		_, err := in.exec.ExecuteNonQuery(ctx, stmt,
			sql.Named("id", u.StructureID.Value()),
			sql.Named("path", u.Path),
			sql.Named("value", u.Value))
		if err != nil {
			return fmt.Errorf("insert unique %s.%s: %w", s.Name, u.Path, err)
		}
	}
	return nil
}

func (in *Inserter) runActions(ctx context.Context, s *schema.StructureSchema, actions []IndexInsertAction) error {
	log := logging.FromContext(ctx)
	for _, a := range actions {
		log.DebugContext(ctx, "insert indexes",
			"schema", s.Name,
			"count", len(a.Indexes),
			"table", a.Table,
			"strategy", a.Strategy.String())
		if err := a.Run(ctx, in.exec, in.templates); err != nil {
			return err
		}
	}
	return nil
}

// runActionsConcurrently starts every action and waits for all of them.
// Failed actions do not cancel the others; all errors are joined.
func (in *Inserter) runActionsConcurrently(ctx context.Context, s *schema.StructureSchema, actions []IndexInsertAction) error {
	log := logging.FromContext(ctx)
	pending := make([]<-chan error, 0, len(actions))
	for _, a := range actions {
		log.DebugContext(ctx, "insert indexes",
			"schema", s.Name,
			"count", len(a.Indexes),
			"table", a.Table,
			"strategy", a.Strategy.String())
		pending = append(pending, a.RunAsync(ctx, in.exec, in.templates))
	}
	var errs []error
	for _, ch := range pending {
		if err := <-ch; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StructureNotFoundError reports a replace of a structure that does not exist.
type StructureNotFoundError struct {
	Schema      string
	StructureID ids.StructureID
}

func (e *StructureNotFoundError) Error() string {
	return fmt.Sprintf("structure %s %s not found", e.Schema, e.StructureID)
}

// IsStructureNotFoundError returns true if err is a StructureNotFoundError.
func IsStructureNotFoundError(err error) bool {
	var nf *StructureNotFoundError
	return errors.As(err, &nf)
}
