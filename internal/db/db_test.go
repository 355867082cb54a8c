package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/structdb/internal/config"
	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/indexer"
	"github.com/roach88/structdb/internal/query"
	"github.com/roach88/structdb/internal/schema"
	"github.com/roach88/structdb/internal/sqlgen"
	"github.com/roach88/structdb/internal/testutil"
)

func openTest(t *testing.T, mutate func(*config.Config), opts ...Option) *Database {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DSN = filepath.Join(dir, "test.db")
	cfg.BoltPath = filepath.Join(dir, "ids.bolt")
	if mutate != nil {
		mutate(&cfg)
	}
	db, err := Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seed inserts a..e with scores 5, 10, 15, 20, 25.
func seed(t *testing.T, db *Database) []*testutil.Person {
	t.Helper()
	var docs []*testutil.Person
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		docs = append(docs, testutil.NewPerson(name, (i+1)*5))
	}
	require.NoError(t, InsertMany(context.Background(), db, docs))
	return docs
}

func names(docs []*testutil.Person) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Name
	}
	return out
}

func where(src string) QueryFunc {
	return func(b *query.Builder) *query.Builder { return b.Where(src) }
}

func TestInsertMany_AssignsContiguousIdentities(t *testing.T) {
	db := openTest(t, nil)
	docs := seed(t, db)
	for i, d := range docs {
		assert.Equal(t, int64(i+1), d.Id)
	}

	more := []*testutil.Person{testutil.NewPerson("f", 30)}
	require.NoError(t, InsertMany(context.Background(), db, more))
	assert.Equal(t, int64(6), more[0].Id)
}

func TestQuery_Predicates(t *testing.T) {
	guidOfC := testutil.Guid(1015).String()
	tests := []struct {
		name  string
		where string
		want  []string
	}{
		{"comparison", `x => x.Score > 10`, []string{"c", "d", "e"}},
		{"simple predicate", `Score > 10 && IsActive == true`, []string{"d"}},
		{"bare bool", `x => !x.IsActive`, []string{"a", "c", "e"}},
		{"quantifier", `x => x.Items.Any(i => i.Value == 16)`, []string{"c"}},
		{"grouping", `(Score < 10 || Score > 20) && Name != "e"`, []string{"a"}},
		{"starts with", `Name.StartsWith("d")`, []string{"d"}},
		{"collection contains", `Tags.Contains("a")`, []string{"a", "b", "c", "d", "e"}},
		{"enum", `Status == "Active"`, []string{"a", "b", "c", "d", "e"}},
		{"date", `Born < "2000-01-01"`, []string{"a", "b", "c", "d", "e"}},
		{"guid", fmt.Sprintf(`Ref == %q`, guidOfC), []string{"c"}},
		{"fractal", `Rating >= 2.0`, []string{"d", "e"}},
		{"text", `Bio.EndsWith("of b")`, []string{"b"}},
		{"reversed", `20 <= Score`, []string{"d", "e"}},
		{"not group", `!(Score > 10)`, []string{"a", "b"}},
		{"nested member", `Address.City == "Oslo" && Score == 25`, []string{"e"}},
	}
	for _, driver := range []string{"sqlite3", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			db := openTest(t, func(c *config.Config) { c.Driver = driver })
			seed(t, db)
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := Query[testutil.Person](context.Background(), db, where(tt.where))
					require.NoError(t, err)
					assert.Equal(t, tt.want, names(got))
				})
			}
		})
	}
}

func TestQuery_NullMember(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)
	p := testutil.NewPerson("homeless", 1)
	p.Address = nil
	require.NoError(t, Insert(ctx, db, p))
	require.NoError(t, Insert(ctx, db, testutil.NewPerson("housed", 2)))

	got, err := Query[testutil.Person](ctx, db, where(`Address.City == null`))
	require.NoError(t, err)
	assert.Equal(t, []string{"homeless"}, names(got))

	got, err = Query[testutil.Person](ctx, db, where(`Address.City != null`))
	require.NoError(t, err)
	assert.Equal(t, []string{"housed"}, names(got))
}

func TestQuery_NegatedCollections(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)
	a := testutil.NewPerson("a", 5)
	z := testutil.NewPerson("z", 99)
	z.Tags = []string{"x"}
	z.Items = []testutil.Item{{Value: 99, Name: "only"}}
	require.NoError(t, InsertMany(ctx, db, []*testutil.Person{a, z}))

	tests := []struct {
		name  string
		where string
		want  []string
	}{
		{"not contains", `x => !x.Tags.Contains("a")`, []string{"z"}},
		{"not contains grouped", `x => !(x.Tags.Contains("a"))`, []string{"z"}},
		{"not any", `x => !x.Items.Any(i => i.Value == 5)`, []string{"z"}},
		{"not any other element", `x => !x.Items.Any(i => i.Value == 6)`, []string{"z"}},
		{"contains", `x => x.Tags.Contains("a")`, []string{"a"}},
		{"not contains or", `x => !x.Tags.Contains("b") || x.Score == 5`, []string{"a", "z"}},
		{"not contains and", `x => !x.Tags.Contains("x") && x.Items.Any(i => i.Value == 6)`, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Query[testutil.Person](ctx, db, where(tt.where))
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))

			n, err := Count[testutil.Person](ctx, db, where(tt.where))
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), n)
		})
	}
}

func TestQuery_OrderingAndPaging(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)
	seed(t, db)

	got, err := Query[testutil.Person](ctx, db, func(b *query.Builder) *query.Builder {
		return b.OrderByDescending("Score").Skip(1).Take(2)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, names(got))

	got, err = Query[testutil.Person](ctx, db, func(b *query.Builder) *query.Builder {
		return b.Where(`Score > 5`).OrderBy("Name").Page(1, 3)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, names(got))

	first, err := Query[testutil.Person](ctx, db, func(b *query.Builder) *query.Builder {
		return b.OrderByDescending("Rating").First()
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, names(first))
}

func TestCountAndQueryIDs(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)
	seed(t, db)

	n, err := Count[testutil.Person](ctx, db, func(b *query.Builder) *query.Builder {
		return b.Where(`Score > 10`).Take(1)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "count ignores paging")

	all, err := Count[testutil.Person](ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), all)

	idList, err := QueryIDs[testutil.Person](ctx, db, where(`Score >= 20`))
	require.NoError(t, err)
	assert.Equal(t, []ids.StructureID{ids.Identity(4), ids.Identity(5)}, idList)
}

func TestInsert_DuplicateUniqueInBatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)
	a, b := testutil.NewPerson("a", 1), testutil.NewPerson("b", 2)
	b.Email = a.Email

	err := InsertMany(ctx, db, []*testutil.Person{a, b})
	require.Error(t, err)
	assert.True(t, indexer.IsUniqueConstraintViolatedError(err))

	n, err := Count[testutil.Person](ctx, db, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsert_UniqueConflictWithStoredRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)
	require.NoError(t, Insert(ctx, db, testutil.NewPerson("a", 1)))

	dup := testutil.NewPerson("z", 2)
	dup.Email = "a@example.com"
	err := Insert(ctx, db, dup)
	require.Error(t, err)
	assert.False(t, indexer.IsUniqueConstraintViolatedError(err), "database errors pass through")

	n, err := Count[testutil.Person](ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	dump := dumpTables(t, db, "Person")
	assert.Len(t, dump["PersonIntegers"], 3)
}

// dumpTables returns every row of every table of the named structure set,
// rendered as text and sorted.
func dumpTables(t *testing.T, db *Database, name string) map[string][]string {
	t.Helper()
	out := make(map[string][]string)
	for _, table := range schema.NewTables(name).All() {
		var rows []string
		err := db.Store().Read(context.Background(), "SELECT * FROM ["+table+"]", func(scan func(dest ...any) error) error {
			var a, b, c any
			dest := []any{&a, &b}
			if table != name+"Structures" {
				dest = append(dest, &c)
			}
			if err := scan(dest...); err != nil {
				return err
			}
			if bs, ok := b.([]byte); ok {
				b = string(bs)
			}
			rows = append(rows, fmt.Sprintf("%v|%v|%v", a, b, c))
			return nil
		})
		require.NoError(t, err)
		sort.Strings(rows)
		out[table] = rows
	}
	return out
}

func TestInsertAsync_SameStateAsSync(t *testing.T) {
	ctx := context.Background()
	syncDB := openTest(t, nil)
	asyncDB := openTest(t, nil)

	seed(t, syncDB)
	var docs []*testutil.Person
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		docs = append(docs, testutil.NewPerson(name, (i+1)*5))
	}
	require.NoError(t, <-InsertManyAsync(ctx, asyncDB, docs))

	assert.Equal(t, dumpTables(t, syncDB, "Person"), dumpTables(t, asyncDB, "Person"))
}

func TestGetByIDs_Batches(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, func(c *config.Config) { c.MaxBatchedIdsSize = 2 })
	seed(t, db)

	got, err := GetByIDs[testutil.Person](ctx, db, []ids.StructureID{
		ids.Identity(5), ids.Identity(1), ids.Identity(3), ids.Identity(4), ids.Identity(2), ids.Identity(99),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names(got))

	one, err := GetByID[testutil.Person](ctx, db, ids.Identity(3))
	require.NoError(t, err)
	assert.Equal(t, "c", one.Name)
	assert.Equal(t, []testutil.Item{{Value: 15, Name: "first"}, {Value: 16, Name: "second"}}, one.Items)

	_, err = GetByID[testutil.Person](ctx, db, ids.Identity(42))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteByID(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)
	seed(t, db)

	require.NoError(t, DeleteByID[testutil.Person](ctx, db, ids.Identity(2)))
	assert.ErrorIs(t, DeleteByID[testutil.Person](ctx, db, ids.Identity(2)), ErrNotFound)

	for table, rows := range dumpTables(t, db, "Person") {
		for _, row := range rows {
			assert.False(t, strings.HasPrefix(row, "2|"), "%s still has %s", table, row)
		}
	}
	ok, err := Exists[testutil.Person](ctx, db, ids.Identity(2))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = Exists[testutil.Person](ctx, db, ids.Identity(3))
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := DeleteByIDs[testutil.Person](ctx, db, []ids.StructureID{ids.Identity(1), ids.Identity(3), ids.Identity(7)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, func(c *config.Config) { c.Serializer = "msgpack" })
	docs := seed(t, db)
	before := dumpTables(t, db, "Person")

	c := docs[2]
	c.Score = 100
	c.Email = "c2@example.com"
	require.NoError(t, Replace(ctx, db, c))

	got, err := Query[testutil.Person](ctx, db, where(`Score == 100`))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, names(got))
	assert.Equal(t, "c2@example.com", got[0].Email)

	got, err = Query[testutil.Person](ctx, db, where(`Score == 15`))
	require.NoError(t, err)
	assert.Empty(t, got)

	after := dumpTables(t, db, "Person")
	for table := range before {
		assert.Len(t, after[table], len(before[table]), table)
	}

	missing := testutil.NewPerson("ghost", 1)
	missing.Id = 77
	assert.Error(t, Replace(ctx, db, missing))
}

func TestProject(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)
	seed(t, db)

	rows, err := Project[testutil.Person](ctx, db, func(b *query.Builder) *query.Builder {
		return b.Where(`Score == 5`).Select(`x => new(x.Name, x.Tags, x.Address.City)`)
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0]["Name"])
	assert.Equal(t, []any{"a", "b"}, rows[0]["Tags"])
	assert.Equal(t, "Oslo", rows[0]["Address.City"])

	_, err = Project[testutil.Person](ctx, db, nil)
	assert.ErrorContains(t, err, "no members selected")
}

func TestGuidKeyedNestedCollections(t *testing.T) {
	ctx := context.Background()
	guids := &testutil.SequentialGuids{}
	db := openTest(t, nil, WithIDOptions(ids.WithGuidSource(guids.Next)))

	orders := []*testutil.Order{
		{Customer: "ann", Lines: []testutil.Line{{Sku: "s1", Qty: 1, Parts: []testutil.Part{{Code: "x"}}}}},
		{Customer: "bob", Lines: []testutil.Line{{Sku: "s2", Qty: 3, Parts: []testutil.Part{{Code: "y"}}}}},
	}
	require.NoError(t, InsertMany(ctx, db, orders))
	assert.Equal(t, testutil.Guid(1), orders[0].Id)

	got, err := Query[testutil.Order](ctx, db, where(`o => o.Lines.Any(l => l.Parts.Any(p => p.Code == "y"))`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Customer)
	assert.Equal(t, testutil.Guid(2), got[0].Id)
}

func TestStringKeyedNeedsCallerID(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)

	err := Insert(ctx, db, &testutil.Label{Text: "hello"})
	assert.ErrorIs(t, err, ids.ErrMissingStringID)

	require.NoError(t, Insert(ctx, db, &testutil.Label{LabelId: "greeting", Text: "hello"}))
	got, err := GetByID[testutil.Label](ctx, db, ids.String("greeting"))
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
}

func TestBoltIdentities(t *testing.T) {
	db := openTest(t, func(c *config.Config) { c.Identity = "bolt" })
	docs := seed(t, db)
	assert.Equal(t, int64(5), docs[4].Id)
}

func bookDeclaration() schema.Declaration {
	return schema.Declaration{
		Name:   "Book",
		IDKind: ids.KindIdentity,
		Fields: []schema.DeclaredField{
			{Name: "Title", Type: "string"},
			{Name: "Pages", Type: "int"},
			{Name: "Tags", Type: "[]string"},
			{Name: "Published", Type: "time"},
		},
		Unique: []string{"Title"},
	}
}

func TestDeclaredDocuments(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)
	_, err := db.Register(ctx, bookDeclaration())
	require.NoError(t, err)

	docs := []map[string]any{
		{"Title": "Dune", "Pages": 412, "Tags": []any{"sf"}, "Published": "1965-08-01T00:00:00Z"},
		{"Title": "Emma", "Pages": 80, "Tags": []any{"classic"}},
	}
	require.NoError(t, db.InsertDocuments(ctx, "Book", docs))
	assert.Equal(t, int64(1), docs[0]["Id"])

	got, err := db.QueryDocuments(ctx, "Book", where(`Pages > 100 && Tags.Contains("sf")`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dune", got[0]["Title"])

	n, err := db.CountDocuments(ctx, "Book", where(`Published == null`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := db.ProjectDocuments(ctx, "Book", func(b *query.Builder) *query.Builder {
		return b.OrderByDescending("Pages").Select("Title")
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"Title": "Dune"}, {"Title": "Emma"}}, rows)

	docs[1]["Pages"] = 800
	require.NoError(t, db.ReplaceDocument(ctx, "Book", docs[1]))
	n, err = db.CountDocuments(ctx, "Book", where(`Pages > 100`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	removed, err := db.DeleteDocuments(ctx, "Book", []ids.StructureID{ids.Identity(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = db.QueryDocuments(ctx, "Nope", nil)
	assert.ErrorContains(t, err, "no schema named")
}

func TestDeclaredDocumentsAsync(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)
	_, err := db.Register(ctx, bookDeclaration())
	require.NoError(t, err)

	docs := []map[string]any{{"Title": "A", "Pages": 1}, {"Title": "B", "Pages": 2}}
	require.NoError(t, <-db.InsertDocumentsAsync(ctx, "Book", docs))
	n, err := db.CountDocuments(ctx, "Book", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDropAndRename(t *testing.T) {
	ctx := context.Background()
	db := openTest(t, nil)
	seed(t, db)
	s, err := SchemaOf[testutil.Person](db)
	require.NoError(t, err)

	require.NoError(t, db.Rename(ctx, s, "Human"))
	ok, err := db.Store().TableExists(ctx, "HumanStructures")
	require.NoError(t, err)
	assert.True(t, ok)

	s, err = SchemaOf[testutil.Person](db)
	require.NoError(t, err)
	n, err := Count[testutil.Person](ctx, db, nil)
	require.NoError(t, err)
	assert.Zero(t, n, "Person tables are recreated empty")

	require.NoError(t, db.Drop(ctx, s))
	ok, err = db.Store().TableExists(ctx, "PersonStructures")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileAndGenerate(t *testing.T) {
	db := openTest(t, nil)
	s, err := SchemaOf[testutil.Person](db)
	require.NoError(t, err)

	nodes, err := db.Compile(s, `Score > 10`)
	require.NoError(t, err)
	sq, err := db.GenerateQuery(s, query.Query{Where: nodes}, sqlgen.Count)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sq.SQL, "SELECT COUNT(*) FROM [PersonStructures] s"))
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Serializer = "xml"
	_, err := Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "invalid config")
}
