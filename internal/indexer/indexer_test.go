package indexer

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/schema"
	"github.com/roach88/structdb/internal/testutil"
)

func personSchema(t *testing.T) *schema.StructureSchema {
	t.Helper()
	s, err := schema.Build(reflect.TypeOf((*testutil.Person)(nil)).Elem(), nil)
	require.NoError(t, err)
	return s
}

func TestExtract_Person(t *testing.T) {
	s := personSchema(t)
	p := testutil.NewPerson("ada", 7)
	id := ids.Identity(1)

	got, err := Extract(s, id, p)
	require.NoError(t, err)

	byPath := map[string][]any{}
	codes := map[string]schema.DataTypeCode{}
	for _, idx := range got {
		assert.Equal(t, id, idx.StructureID)
		byPath[idx.Path] = append(byPath[idx.Path], idx.Value)
		codes[idx.Path] = idx.DataType
	}

	assert.Equal(t, []any{int64(7)}, byPath["Score"])
	assert.Equal(t, []any{"a", "b"}, byPath["Tags"])
	assert.Equal(t, []any{int64(7), int64(8)}, byPath["Items.Value"])
	assert.Equal(t, []any{"Oslo"}, byPath["Address.City"])
	assert.Equal(t, []any{"1990-01-02T03:04:05.000000000Z"}, byPath["Born"])
	assert.Equal(t, []any{"Active"}, byPath["Status"])
	assert.NotContains(t, byPath, "Notes")

	assert.Equal(t, schema.Enum, codes["Status"])
	assert.Equal(t, schema.String, codes["Name"])
	assert.Equal(t, schema.Text, codes["Bio"])
}

func TestExtract_NullsProduceNothing(t *testing.T) {
	s := personSchema(t)
	p := &testutil.Person{Name: "x"}

	got, err := Extract(s, ids.Identity(1), p)
	require.NoError(t, err)

	paths := map[string]bool{}
	for _, idx := range got {
		paths[idx.Path] = true
	}
	assert.False(t, paths["Address.City"])
	assert.False(t, paths["Tags"])
	assert.False(t, paths["Items.Value"])
	assert.True(t, paths["Name"])
}

func TestExtract_RoutesEveryEntry(t *testing.T) {
	s := personSchema(t)
	got, err := Extract(s, ids.Identity(1), testutil.NewPerson("ada", 7))
	require.NoError(t, err)

	for _, idx := range got {
		table, err := s.Tables.IndexTable(idx.DataType)
		require.NoError(t, err)
		suffix, ok := schema.IndexTableSuffix(idx.DataType)
		require.True(t, ok)
		assert.Equal(t, "Person"+suffix, table)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	s := personSchema(t)
	p := testutil.NewPerson("ada", 7)
	a, err := Extract(s, ids.Identity(1), p)
	require.NoError(t, err)
	b, err := Extract(s, ids.Identity(1), p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtractUniques(t *testing.T) {
	s := personSchema(t)

	got, err := ExtractUniques(s, ids.Identity(3), testutil.NewPerson("ada", 7))
	require.NoError(t, err)
	assert.Equal(t, []UniqueValue{{StructureID: ids.Identity(3), Path: "Email", Value: "ada@example.com"}}, got)

	_, err = ExtractUniques(s, ids.Identity(4), &testutil.Person{})
	require.NoError(t, err, "empty string is a value, not null")
}

func TestExtractUniques_Null(t *testing.T) {
	s, err := schema.FromDeclaration(schema.Declaration{
		Name:   "Account",
		IDKind: ids.KindString,
		Fields: []schema.DeclaredField{{Name: "Login", Type: "string"}},
		Unique: []string{"Login"},
	})
	require.NoError(t, err)

	_, err = ExtractUniques(s, ids.String("a"), map[string]any{})
	var me *MissingUniqueValueError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "Login", me.Path)
}

func TestCheckBatchUniques(t *testing.T) {
	s := personSchema(t)
	var batch [][]UniqueValue
	for i, name := range []string{"ada", "bob", "ada"} {
		u, err := ExtractUniques(s, ids.Identity(int64(i+1)), testutil.NewPerson(name, i))
		require.NoError(t, err)
		batch = append(batch, u)
	}

	assert.NoError(t, CheckBatchUniques(s, batch[:2]))

	err := CheckBatchUniques(s, batch)
	require.True(t, IsUniqueConstraintViolatedError(err))
	var ue *UniqueConstraintViolatedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Email", ue.Path)
	assert.Equal(t, "ada@example.com", ue.Value)
	assert.Equal(t, ids.Identity(1), ue.First)
	assert.Equal(t, ids.Identity(3), ue.Second)
}

func TestUniqueText(t *testing.T) {
	assert.Equal(t, "42", UniqueText(int64(42)))
	assert.Equal(t, "1.5", UniqueText(1.5))
	assert.Equal(t, "true", UniqueText(true))
	assert.Equal(t, "x", UniqueText("x"))
}
