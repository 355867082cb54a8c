package query

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/structdb/internal/expr"
	"github.com/roach88/structdb/internal/lambda"
	"github.com/roach88/structdb/internal/schema"
	"github.com/roach88/structdb/internal/testutil"
)

func personSchema(t *testing.T) *schema.StructureSchema {
	t.Helper()
	s, err := schema.Build(reflect.TypeOf((*testutil.Person)(nil)).Elem(), nil)
	require.NoError(t, err)
	return s
}

func TestBuilder_SingleWhere(t *testing.T) {
	q, err := NewBuilder(personSchema(t)).Where(`Score > 1`).Build()
	require.NoError(t, err)
	assert.Equal(t, "Member(Score) Operator(>) Value(1)", lambda.Format(q.Where))
	assert.False(t, q.HasPaging())
}

func TestBuilder_MultipleWheresAreGrouped(t *testing.T) {
	q, err := NewBuilder(personSchema(t)).
		Where(`Score > 1 || Score < 0`).
		WhereExpr(expr.MustParse(`x => x.IsActive`)).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "StartGroup Member(Score) Operator(>) Value(1) Operator(or) Member(Score) Operator(<) Value(0) EndGroup "+
		"Operator(and) StartGroup Member(IsActive) Operator(=) Value(true) EndGroup", lambda.Format(q.Where))
	assert.NoError(t, lambda.Validate(q.Where))
}

func TestBuilder_Ordering(t *testing.T) {
	q, err := NewBuilder(personSchema(t)).
		OrderBy(`Name`).
		OrderByDescending(`x => x.Score`).
		Build()
	require.NoError(t, err)

	assert.Empty(t, q.Where)
	require.Len(t, q.Sortings, 2)
	assert.Equal(t, "Name ASC", q.Sortings[0].String())
	assert.Equal(t, "Score DESC", q.Sortings[1].String())
	assert.Equal(t, "where: <all>; order: Name ASC; order: Score DESC", q.String())
}

func TestBuilder_Paging(t *testing.T) {
	s := personSchema(t)
	cases := []struct {
		name    string
		build   func(*Builder) *Builder
		skip    int
		take    int
		hasTake bool
	}{
		{"skip only", func(b *Builder) *Builder { return b.Skip(5) }, 5, 0, false},
		{"take only", func(b *Builder) *Builder { return b.Take(3) }, 0, 3, true},
		{"skip then take", func(b *Builder) *Builder { return b.Skip(2).Take(3) }, 2, 3, true},
		{"take then skip narrows", func(b *Builder) *Builder { return b.Take(10).Skip(4) }, 4, 6, true},
		{"skip past window", func(b *Builder) *Builder { return b.Take(2).Skip(5) }, 5, 0, true},
		{"take keeps minimum", func(b *Builder) *Builder { return b.Take(10).Take(3).Take(7) }, 0, 3, true},
		{"skips add", func(b *Builder) *Builder { return b.Skip(1).Skip(2) }, 3, 0, false},
		{"page", func(b *Builder) *Builder { return b.Page(2, 10) }, 20, 10, true},
		{"first", func(b *Builder) *Builder { return b.Skip(3).First() }, 3, 1, true},
		{"single", func(b *Builder) *Builder { return b.Single() }, 0, 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := tc.build(NewBuilder(s).Where(`Score > 1`)).Build()
			require.NoError(t, err)
			assert.Equal(t, tc.skip, q.Skip)
			assert.Equal(t, tc.take, q.Take)
			assert.Equal(t, tc.hasTake, q.HasTake)
			assert.Equal(t, "Member(Score) Operator(>) Value(1)", lambda.Format(q.Where))
		})
	}
}

func TestBuilder_PageEqualsSkipTake(t *testing.T) {
	s := personSchema(t)
	page, err := NewBuilder(s).Page(3, 7).Build()
	require.NoError(t, err)
	manual, err := NewBuilder(s).Skip(21).Take(7).Build()
	require.NoError(t, err)
	assert.Equal(t, manual, page)
}

func TestBuilder_Select(t *testing.T) {
	q, err := NewBuilder(personSchema(t)).Select(`x => new(x.Name, x.Score)`).Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Score"}, q.Projection)
}

func TestBuilder_ErrorsStick(t *testing.T) {
	s := personSchema(t)

	_, err := NewBuilder(s).Where(`Score >`).Where(`Score > 1`).Build()
	assert.True(t, expr.IsParseError(err))

	_, err = NewBuilder(s).Where(`Name.ToUpper() == "A"`).Build()
	assert.True(t, lambda.IsUnsupportedExpressionError(err))

	_, err = NewBuilder(s).Skip(-1).Build()
	assert.ErrorContains(t, err, "skip")

	_, err = NewBuilder(s).Page(0, 0).Build()
	assert.ErrorContains(t, err, "invalid page")

	_, err = NewBuilder(s).OrderBy(`Score > 1`).Build()
	assert.True(t, lambda.IsUnsupportedExpressionError(err))
}

func TestCombine(t *testing.T) {
	assert.Nil(t, Combine())
	one := []lambda.Node{lambda.Member{Path: "A"}, lambda.Operator{Symbol: lambda.OpEqual}, lambda.Value{Value: int64(1)}}
	assert.Equal(t, one, Combine(one))
	assert.Len(t, Combine(one, one), 2*len(one)+5)
}
