package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/structdb/internal/dialect"
	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/schema"
	"github.com/roach88/structdb/internal/testutil"
)

// createTestStore opens a file-backed store in a temp dir.
func createTestStore(t *testing.T, driver string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(driver, path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sqliteDialect(t *testing.T) *dialect.Provider {
	t.Helper()
	d, err := dialect.Load("sqlite", 0)
	require.NoError(t, err)
	return d
}

func personSchema(t *testing.T) *schema.StructureSchema {
	t.Helper()
	s, err := schema.Build(reflect.TypeOf((*testutil.Person)(nil)).Elem(), nil)
	require.NoError(t, err)
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	for _, driver := range Drivers {
		t.Run(driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.db")

			s, err := Open(driver, path)
			if err != nil {
				t.Fatalf("Open() failed: %v", err)
			}
			defer s.Close()

			if _, err := os.Stat(path); os.IsNotExist(err) {
				t.Error("database file was not created")
			}
			assert.Equal(t, driver, s.Driver())
		})
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open("sqlite3", path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("postgres", "x")
	assert.ErrorContains(t, err, "unknown driver")
}

func TestOpen_Pragmas(t *testing.T) {
	for _, driver := range Drivers {
		t.Run(driver, func(t *testing.T) {
			s := createTestStore(t, driver)
			assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
			assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
			assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
		})
	}
}

func TestEnsureStructureSet(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "sqlite3")
	ps := personSchema(t)
	d := sqliteDialect(t)

	require.NoError(t, s.EnsureStructureSet(ctx, ps, d, "json"))
	require.NoError(t, s.EnsureStructureSet(ctx, ps, d, "json"), "second call must be a no-op")

	for _, table := range ps.Tables.All() {
		ok, err := s.TableExists(ctx, table)
		require.NoError(t, err)
		assert.True(t, ok, table)
	}
	// String and Enum share a table.
	assert.Len(t, ps.Tables.All(), 9)
}

func TestStructureSetDDL(t *testing.T) {
	stmts, err := structureSetDDL(personSchema(t), sqliteDialect(t), "msgpack")
	require.NoError(t, err)
	require.Len(t, stmts, 3+7*3)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS [PersonStructures] (StructureId INTEGER NOT NULL PRIMARY KEY, Json BLOB NOT NULL)", stmts[0])
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS [PersonIntegers] (StructureId INTEGER NOT NULL, MemberPath TEXT NOT NULL, Value INTEGER NULL)", stmts[3])

	_, err = structureSetDDL(personSchema(t), sqliteDialect(t), "xml")
	assert.Error(t, err)
}

func TestDropStructureSet(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "sqlite")
	ps := personSchema(t)
	d := sqliteDialect(t)

	require.NoError(t, s.EnsureStructureSet(ctx, ps, d, "json"))
	require.NoError(t, s.DropStructureSet(ctx, ps, d))

	for _, table := range ps.Tables.All() {
		ok, err := s.TableExists(ctx, table)
		require.NoError(t, err)
		assert.False(t, ok, table)
	}
}

func TestRenameStructureSet(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "sqlite3")
	from := personSchema(t)
	d := sqliteDialect(t)

	require.NoError(t, s.EnsureStructureSet(ctx, from, d, "json"))
	require.NoError(t, s.RenameStructureSet(ctx, from.Tables, schema.NewTables("People"), d))

	ok, err := s.TableExists(ctx, "PeopleStrings")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.TableExists(ctx, "PersonStrings")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBulkInsertAndRead(t *testing.T) {
	for _, driver := range Drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := createTestStore(t, driver)
			ps := personSchema(t)
			require.NoError(t, s.EnsureStructureSet(ctx, ps, sqliteDialect(t), "json"))

			rows := [][]any{{int64(2), `{"Name":"b"}`}, {int64(1), `{"Name":"a"}`}}
			require.NoError(t, s.BulkInsert(ctx, ps.Tables.Structures, []string{"StructureId", "Json"}, rows))

			got, err := s.ReadStructures(ctx, ids.KindIdentity,
				"SELECT StructureId, Json FROM [PersonStructures] ORDER BY StructureId ASC")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, ids.Identity(1), got[0].ID)
			assert.JSONEq(t, `{"Name":"a"}`, string(got[0].Payload))

			idList, err := s.ReadIDs(ctx, ids.KindIdentity,
				"SELECT StructureId FROM [PersonStructures] WHERE StructureId > @p0", sql.Named("p0", int64(1)))
			require.NoError(t, err)
			assert.Equal(t, []ids.StructureID{ids.Identity(2)}, idList)

			n, err := s.ReadCount(ctx, "SELECT COUNT(*) FROM [PersonStructures]")
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
		})
	}
}

func TestReadStructures_EmptyNotNil(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "sqlite3")
	ps := personSchema(t)
	require.NoError(t, s.EnsureStructureSet(ctx, ps, sqliteDialect(t), "json"))

	got, err := s.ReadStructures(ctx, ids.KindIdentity, "SELECT StructureId, Json FROM [PersonStructures]")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBulkInsert_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "sqlite3")
	ps := personSchema(t)
	require.NoError(t, s.EnsureStructureSet(ctx, ps, sqliteDialect(t), "json"))

	rows := [][]any{{int64(1), `{}`}, {int64(2)}}
	err := s.BulkInsert(ctx, ps.Tables.Structures, []string{"StructureId", "Json"}, rows)
	assert.ErrorContains(t, err, "row 1 has 1 values")

	n, err := s.ReadCount(ctx, "SELECT COUNT(*) FROM [PersonStructures]")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "sqlite3")
	ps := personSchema(t)
	require.NoError(t, s.EnsureStructureSet(ctx, ps, sqliteDialect(t), "json"))
	insert := "INSERT INTO [PersonStructures] (StructureId, Json) VALUES (@id, @json)"

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecuteNonQuery(ctx, insert, sql.Named("id", int64(1)), sql.Named("json", "{}")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecuteNonQuery(ctx, insert, sql.Named("id", int64(2)), sql.Named("json", "{}")); err != nil {
			return err
		}
		return tx.BulkInsert(ctx, ps.Tables.Structures, []string{"StructureId", "Json"}, [][]any{{int64(3), "{}"}, {int64(4), "{}"}})
	})
	require.NoError(t, err)

	idList, err := s.ReadIDs(ctx, ids.KindIdentity, "SELECT StructureId FROM [PersonStructures] ORDER BY StructureId")
	require.NoError(t, err)
	assert.Equal(t, []ids.StructureID{ids.Identity(2), ids.Identity(3), ids.Identity(4)}, idList)
}

func TestExecuteScalar_NoRows(t *testing.T) {
	s := createTestStore(t, "sqlite3")
	v, err := s.ExecuteScalar(context.Background(), "SELECT 1 WHERE 1 = 0")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestIdentityStore_ContiguousRanges(t *testing.T) {
	for _, driver := range Drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := createTestStore(t, driver)
			is, err := NewIdentityStore(ctx, s, sqliteDialect(t).Templates)
			require.NoError(t, err)

			start, err := is.CheckOutNextIdentity(ctx, "Person", 3)
			require.NoError(t, err)
			assert.Equal(t, int64(1), start)

			start, err = is.CheckOutNextIdentity(ctx, "Person", 2)
			require.NoError(t, err)
			assert.Equal(t, int64(4), start)

			start, err = is.CheckOutNextIdentity(ctx, "Order", 1)
			require.NoError(t, err)
			assert.Equal(t, int64(1), start)

			_, err = is.CheckOutNextIdentity(ctx, "Person", 0)
			assert.Error(t, err)
		})
	}
}

func TestIdentityStore_FeedsGenerator(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "sqlite3")
	is, err := NewIdentityStore(ctx, s, sqliteDialect(t).Templates)
	require.NoError(t, err)

	gen := ids.NewGenerator(is)
	got, err := gen.Next(ctx, "Person", ids.KindIdentity, 3)
	require.NoError(t, err)
	assert.Equal(t, []ids.StructureID{ids.Identity(1), ids.Identity(2), ids.Identity(3)}, got)
}
