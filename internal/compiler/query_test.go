package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/structdb/internal/lambda"
	"github.com/roach88/structdb/internal/query"
	"github.com/roach88/structdb/internal/schema"
	"github.com/roach88/structdb/internal/testutil"
)

func compileQuery(t *testing.T, src, path string) (*QuerySpec, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return CompileQuery(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileQueryFull(t *testing.T) {
	spec, err := compileQuery(t, `
		query: topActive: {
			structure: "Person"
			where: ["Score > 10", "IsActive"]
			order_by: [{ member: "Score", descending: true }, "Name"]
			skip: 1
			take: 2
			select: "x => new(x.Name, x.Score)"
		}
	`, "query.topActive")
	require.NoError(t, err)

	take := 2
	assert.Equal(t, &QuerySpec{
		Name:      "topActive",
		Structure: "Person",
		Where:     []string{"Score > 10", "IsActive"},
		OrderBy:   []Ordering{{Member: "Score", Descending: true}, {Member: "Name"}},
		Skip:      1,
		Take:      &take,
		Select:    "x => new(x.Name, x.Score)",
	}, spec)
}

func TestCompileQueryShorthands(t *testing.T) {
	spec, err := compileQuery(t, `
		query: byName: {
			structure: "Person"
			where: "Name == \"a\""
			order_by: "Name"
		}
	`, "query.byName")
	require.NoError(t, err)
	assert.Equal(t, []string{`Name == "a"`}, spec.Where)
	assert.Equal(t, []Ordering{{Member: "Name"}}, spec.OrderBy)
	assert.Nil(t, spec.Take)
}

func TestCompileQueryErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing structure", `query: q: { where: "Score > 1" }`, "structure"},
		{"where not string", `query: q: { structure: "P", where: 5 }`, "where"},
		{"order_by without member", `query: q: { structure: "P", order_by: { descending: true } }`, "order_by"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileQuery(t, tt.src, "query.q")
			var compileErr *CompileError
			require.ErrorAs(t, err, &compileErr)
			assert.Equal(t, tt.field, compileErr.Field)
		})
	}
}

func TestQuerySpecApply(t *testing.T) {
	s, err := schema.For[testutil.Person](schema.NewProvider())
	require.NoError(t, err)

	take := 3
	spec := QuerySpec{
		Structure: "Person",
		Where:     []string{"Score > 10", "IsActive"},
		OrderBy:   []Ordering{{Member: "Score", Descending: true}},
		Skip:      1,
		Take:      &take,
		Select:    "Name",
	}
	q, err := spec.Apply(query.NewBuilder(s)).Build()
	require.NoError(t, err)

	assert.Equal(t,
		`StartGroup Member(Score) Operator(>) Value(10) EndGroup Operator(and) StartGroup Member(IsActive) Operator(=) Value(true) EndGroup`,
		lambda.Format(q.Where))
	require.Len(t, q.Sortings, 1)
	assert.Equal(t, lambda.Descending, q.Sortings[0].Direction)
	assert.Equal(t, 1, q.Skip)
	assert.Equal(t, 3, q.Take)
	assert.Equal(t, []string{"Name"}, q.Projection)
}
