// Package db is the caller surface: it opens a database from
// configuration and stores, queries and deletes documents.
//
// Typed documents are Go structs and use the generic functions (Insert,
// Query, GetByID, ...). Declared documents are map[string]any described by
// a schema.Declaration and use the *Documents methods.
package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/structdb/internal/config"
	"github.com/roach88/structdb/internal/dialect"
	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/insert"
	"github.com/roach88/structdb/internal/lambda"
	"github.com/roach88/structdb/internal/logging"
	"github.com/roach88/structdb/internal/query"
	"github.com/roach88/structdb/internal/schema"
	"github.com/roach88/structdb/internal/serial"
	"github.com/roach88/structdb/internal/sqlgen"
	"github.com/roach88/structdb/internal/store"
)

// ErrNotFound is returned when a structure id matches nothing.
var ErrNotFound = errors.New("structure not found")

// QueryFunc configures a query. A nil QueryFunc matches every structure.
type QueryFunc func(b *query.Builder) *query.Builder

// Database stores documents in one SQLite database.
//
// Thread-safety: all methods are safe for concurrent use.
type Database struct {
	cfg        config.Config
	store      *store.Store
	dialect    *dialect.Provider
	schemas    *schema.Provider
	gen        *sqlgen.Generator
	ids        *ids.Generator
	inserter   *insert.Inserter
	serializer serial.Serializer
	closers    []io.Closer

	mu      sync.Mutex
	ensured map[string]bool
}

// Option configures a Database.
type Option func(*options)

type options struct {
	idOpts []ids.GeneratorOption
}

// WithIDOptions passes options to the id generator, e.g. a deterministic
// GUID source in tests.
func WithIDOptions(opts ...ids.GeneratorOption) Option {
	return func(o *options) {
		o.idOpts = append(o.idOpts, opts...)
	}
}

// Open opens the database described by cfg.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	d, err := dialect.Load(cfg.Dialect, cfg.MaxBatchedIdsSize)
	if err != nil {
		return nil, err
	}
	ser, err := serial.ByName(cfg.Serializer)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db := &Database{
		cfg:        cfg,
		store:      st,
		dialect:    d,
		schemas:    schema.NewProvider(),
		serializer: ser,
		inserter:   insert.New(st, d.Templates, ser),
		ensured:    make(map[string]bool),
	}

	var identities ids.IdentityStore
	switch cfg.Identity {
	case "bolt":
		bolt, err := ids.OpenBoltIdentityStore(cfg.BoltPath)
		if err != nil {
			st.Close()
			return nil, err
		}
		db.closers = append(db.closers, bolt)
		identities = bolt
	default:
		sqlIdentities, err := store.NewIdentityStore(ctx, st, d.Templates)
		if err != nil {
			st.Close()
			return nil, err
		}
		identities = sqlIdentities
	}
	db.ids = ids.NewGenerator(identities, o.idOpts...)

	var genOpts []sqlgen.Option
	if cfg.PlanCacheSize > 0 {
		genOpts = append(genOpts, sqlgen.WithPlanCache(sqlgen.NewPlanCache(cfg.PlanCacheSize)))
	}
	db.gen = sqlgen.NewGenerator(d, genOpts...)

	logging.FromContext(ctx).InfoContext(ctx, "database opened",
		"driver", cfg.Driver,
		"dsn", cfg.DSN,
		"serializer", ser.Name(),
		"identity", cfg.Identity,
		"max_batched_ids_size", d.MaxBatchedIdsSize)
	return db, nil
}

// Close closes the database and the identity store.
func (db *Database) Close() error {
	var errs []error
	for _, c := range db.closers {
		errs = append(errs, c.Close())
	}
	errs = append(errs, db.store.Close())
	return errors.Join(errs...)
}

// Store returns the underlying store.
func (db *Database) Store() *store.Store { return db.store }

// Schemas returns the schema provider.
func (db *Database) Schemas() *schema.Provider { return db.schemas }

// Generator returns the SQL generator.
func (db *Database) Generator() *sqlgen.Generator { return db.gen }

// Register records a declaration and creates its tables. Declarations
// without fields customize the Go type of the same name and create no
// tables until that type is first used.
func (db *Database) Register(ctx context.Context, decl schema.Declaration) (*schema.StructureSchema, error) {
	s, err := db.schemas.Configure(decl)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	if err := db.ensure(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Drop removes the tables of s.
func (db *Database) Drop(ctx context.Context, s *schema.StructureSchema) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.store.DropStructureSet(ctx, s, db.dialect); err != nil {
		return err
	}
	delete(db.ensured, s.Name)
	db.invalidatePlans(s.Name)
	return nil
}

// Rename moves the tables of the schema named from to the names derived
// from to and forgets both cached schemas.
func (db *Database) Rename(ctx context.Context, from *schema.StructureSchema, to string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.store.RenameStructureSet(ctx, from.Tables, schema.NewTables(to), db.dialect); err != nil {
		return err
	}
	delete(db.ensured, from.Name)
	delete(db.ensured, to)
	db.schemas.Invalidate(from.Name)
	db.schemas.Invalidate(to)
	db.invalidatePlans(from.Name)
	return nil
}

func (db *Database) invalidatePlans(name string) {
	if c := db.gen.Cache(); c != nil {
		c.Invalidate(name)
	}
}

// ensure creates the tables of s once per process.
func (db *Database) ensure(ctx context.Context, s *schema.StructureSchema) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.ensured[s.Name] {
		return nil
	}
	if err := db.store.EnsureStructureSet(ctx, s, db.dialect, db.serializer.Name()); err != nil {
		return err
	}
	db.ensured[s.Name] = true
	return nil
}

// assignIDs gives every document with an empty id a fresh one.
func (db *Database) assignIDs(ctx context.Context, s *schema.StructureSchema, docs []any) error {
	var missing []int
	for i, doc := range docs {
		id, err := s.GetID(doc)
		if err != nil {
			return err
		}
		if id.IsEmpty() {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	fresh, err := db.ids.Next(ctx, s.Name, s.IDKind, len(missing))
	if err != nil {
		return err
	}
	for i, idx := range missing {
		if err := s.SetID(docs[idx], fresh[i]); err != nil {
			return err
		}
	}
	return nil
}

// insert assigns ids and writes docs in one transaction.
func (db *Database) insert(ctx context.Context, s *schema.StructureSchema, docs []any) error {
	if err := db.ensure(ctx, s); err != nil {
		return err
	}
	if err := db.assignIDs(ctx, s, docs); err != nil {
		return err
	}
	return db.store.WithTx(ctx, func(tx *store.Tx) error {
		return db.inserter.WithExecutor(tx).Insert(ctx, s, docs)
	})
}

// insertAsync is insert with the concurrent index phase.
func (db *Database) insertAsync(ctx context.Context, s *schema.StructureSchema, docs []any) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		if err := db.ensure(ctx, s); err != nil {
			done <- err
			return
		}
		if err := db.assignIDs(ctx, s, docs); err != nil {
			done <- err
			return
		}
		done <- db.store.WithTx(ctx, func(tx *store.Tx) error {
			return <-db.inserter.WithExecutor(tx).InsertAsync(ctx, s, docs)
		})
	}()
	return done
}

func (db *Database) replace(ctx context.Context, s *schema.StructureSchema, doc any) error {
	if err := db.ensure(ctx, s); err != nil {
		return err
	}
	return db.store.WithTx(ctx, func(tx *store.Tx) error {
		return db.inserter.WithExecutor(tx).Replace(ctx, s, doc)
	})
}

// build compiles fn into a query over s.
func build(s *schema.StructureSchema, fn QueryFunc) (query.Query, error) {
	b := query.NewBuilder(s)
	if fn != nil {
		b = fn(b)
	}
	q, err := b.Build()
	if err != nil {
		return query.Query{}, fmt.Errorf("build query over %s: %w", s.Name, err)
	}
	return q, nil
}

// GenerateQuery renders q over s without running it.
func (db *Database) GenerateQuery(s *schema.StructureSchema, q query.Query, shape sqlgen.Shape) (sqlgen.SQLQuery, error) {
	return db.gen.Generate(q, s, shape)
}

// Compile compiles a predicate in text form against s.
func (db *Database) Compile(s *schema.StructureSchema, where string) ([]lambda.Node, error) {
	return lambda.CompileSource(where, s)
}

func (db *Database) readRows(ctx context.Context, s *schema.StructureSchema, q query.Query) ([]store.StructureRow, error) {
	if err := db.ensure(ctx, s); err != nil {
		return nil, err
	}
	sq, err := db.gen.Generate(q, s, sqlgen.FullRows)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).DebugContext(ctx, "query structures", "schema", s.Name, "query", q.String())
	return db.store.ReadStructures(ctx, s.IDKind, sq.SQL, sq.Args()...)
}

func (db *Database) readIDs(ctx context.Context, s *schema.StructureSchema, q query.Query) ([]ids.StructureID, error) {
	if err := db.ensure(ctx, s); err != nil {
		return nil, err
	}
	sq, err := db.gen.Generate(q, s, sqlgen.IdsOnly)
	if err != nil {
		return nil, err
	}
	return db.store.ReadIDs(ctx, s.IDKind, sq.SQL, sq.Args()...)
}

func (db *Database) count(ctx context.Context, s *schema.StructureSchema, q query.Query) (int64, error) {
	if err := db.ensure(ctx, s); err != nil {
		return 0, err
	}
	sq, err := db.gen.Generate(q, s, sqlgen.Count)
	if err != nil {
		return 0, err
	}
	return db.store.ReadCount(ctx, sq.SQL, sq.Args()...)
}

// readByIDs reads structures in id order, batching by MaxBatchedIdsSize.
func (db *Database) readByIDs(ctx context.Context, s *schema.StructureSchema, idList []ids.StructureID) ([]store.StructureRow, error) {
	if err := db.ensure(ctx, s); err != nil {
		return nil, err
	}
	batches, err := db.gen.GenerateGetByIDs(s, idList)
	if err != nil {
		return nil, err
	}
	rows := []store.StructureRow{}
	for _, sq := range batches {
		got, err := db.store.ReadStructures(ctx, s.IDKind, sq.SQL, sq.Args()...)
		if err != nil {
			return nil, err
		}
		rows = append(rows, got...)
	}
	sort.SliceStable(rows, func(i, j int) bool { return ids.Compare(rows[i].ID, rows[j].ID) < 0 })
	return rows, nil
}

// deleteByIDs removes index, unique and structure rows in one transaction
// and returns the number of structures removed.
func (db *Database) deleteByIDs(ctx context.Context, s *schema.StructureSchema, idList []ids.StructureID) (int64, error) {
	if len(idList) == 0 {
		return 0, nil
	}
	if err := db.ensure(ctx, s); err != nil {
		return 0, err
	}
	stmts, err := db.gen.GenerateDeleteByIDs(s, idList)
	if err != nil {
		return 0, err
	}
	var removed int64
	err = db.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, sq := range stmts {
			n, err := tx.ExecuteNonQuery(ctx, sq.SQL, sq.Args()...)
			if err != nil {
				return fmt.Errorf("delete from %s: %w", s.Name, err)
			}
			if isStructuresDelete(sq.SQL, s) {
				removed += n
			}
		}
		return nil
	})
	return removed, err
}

func isStructuresDelete(stmt string, s *schema.StructureSchema) bool {
	return strings.Contains(stmt, "["+s.Tables.Structures+"]")
}

func (db *Database) decode(s *schema.StructureSchema, row store.StructureRow) (any, error) {
	doc := s.NewDocument()
	if err := db.serializer.Unmarshal(row.Payload, doc); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", s.Name, row.ID, err)
	}
	if err := s.SetID(doc, row.ID); err != nil {
		return nil, err
	}
	return doc, nil
}
