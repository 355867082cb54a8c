package insert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roach88/structdb/internal/dialect"
	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/indexer"
	"github.com/roach88/structdb/internal/insert/mocks"
	"github.com/roach88/structdb/internal/schema"
	"github.com/roach88/structdb/internal/testutil"
)

func personSchema(t *testing.T) *schema.StructureSchema {
	t.Helper()
	s, err := schema.Build(reflect.TypeOf((*testutil.Person)(nil)).Elem(), nil)
	require.NoError(t, err)
	return s
}

func sqliteTemplates(t *testing.T) dialect.Templates {
	t.Helper()
	d, err := dialect.Load("sqlite", 0)
	require.NoError(t, err)
	return d.Templates
}

func indexes(code schema.DataTypeCode, n int) []indexer.StructureIndex {
	out := make([]indexer.StructureIndex, n)
	for i := range out {
		out[i] = indexer.StructureIndex{
			StructureID: ids.Identity(int64(i + 1)),
			Path:        "Score",
			DataType:    code,
			Value:       int64(i),
		}
	}
	return out
}

func TestChooseStrategy(t *testing.T) {
	tests := []struct {
		n           int
		forceSingle bool
		want        Strategy
	}{
		{0, false, StrategyNone},
		{1, false, StrategySingle},
		{2, false, StrategyBulk},
		{50, false, StrategyBulk},
		{0, true, StrategyNone},
		{1, true, StrategySingle},
		{50, true, StrategySingle},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,single=%v", tt.n, tt.forceSingle), func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseStrategy(tt.n, tt.forceSingle))
		})
	}
}

func TestBuildActions_StrategyBoundary(t *testing.T) {
	s := personSchema(t)
	for _, n := range []int{0, 1, 2, 50} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			actions, err := BuildActions(s, Groups{schema.IntegerNumber: indexes(schema.IntegerNumber, n)}, false)
			require.NoError(t, err)
			switch n {
			case 0:
				assert.Empty(t, actions)
			case 1:
				require.Len(t, actions, 1)
				assert.Equal(t, StrategySingle, actions[0].Strategy)
			default:
				require.Len(t, actions, 1)
				assert.Equal(t, StrategyBulk, actions[0].Strategy)
				assert.Len(t, actions[0].Indexes, n)
			}
		})
	}
}

func TestBuildActions_MergesStringAndEnum(t *testing.T) {
	s := personSchema(t)
	strs := indexes(schema.String, 2)
	enums := indexes(schema.Enum, 1)

	actions, err := BuildActions(s, Groups{schema.String: strs, schema.Enum: enums}, false)
	require.NoError(t, err)

	require.Len(t, actions, 1)
	assert.Equal(t, "PersonStrings", actions[0].Table)
	assert.Equal(t, schema.String, actions[0].DataType)
	assert.Equal(t, append(append([]indexer.StructureIndex{}, strs...), enums...), actions[0].Indexes)
	assert.Equal(t, StrategyBulk, actions[0].Strategy)
}

func TestBuildActions_EnumAloneRoutesToStrings(t *testing.T) {
	s := personSchema(t)
	actions, err := BuildActions(s, Groups{schema.Enum: indexes(schema.Enum, 1)}, false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "PersonStrings", actions[0].Table)
	assert.Equal(t, schema.Enum, actions[0].DataType)
}

func TestBuildActions_OrderedByDataType(t *testing.T) {
	s := personSchema(t)
	groups := Groups{
		schema.Text:          indexes(schema.Text, 1),
		schema.IntegerNumber: indexes(schema.IntegerNumber, 1),
		schema.Bool:          indexes(schema.Bool, 1),
	}
	actions, err := BuildActions(s, groups, false)
	require.NoError(t, err)
	var tables []string
	for _, a := range actions {
		tables = append(tables, a.Table)
	}
	assert.Equal(t, []string{"PersonIntegers", "PersonBooleans", "PersonTexts"}, tables)
}

func TestBuildActions_RoutingError(t *testing.T) {
	s := personSchema(t)
	_, err := BuildActions(s, Groups{schema.Unknown: indexes(schema.Unknown, 1)}, false)
	assert.True(t, schema.IsDataTypeRoutingError(err))
}

func TestGroupIndexes_KeepsEnumSeparate(t *testing.T) {
	all := append(indexes(schema.String, 2), indexes(schema.Enum, 1)...)
	groups := GroupIndexes(all)
	assert.Len(t, groups[schema.String], 2)
	assert.Len(t, groups[schema.Enum], 1)
}

func TestIndexInsertAction_Single(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	tpl := sqliteTemplates(t)

	a := IndexInsertAction{Table: "PersonIntegers", DataType: schema.IntegerNumber, Indexes: indexes(schema.IntegerNumber, 1), Strategy: StrategySingle}
	exec.EXPECT().ExecuteNonQuery(gomock.Any(),
		"INSERT INTO [PersonIntegers] (StructureId, MemberPath, Value) VALUES (@id, @path, @value)",
		sql.Named("id", int64(1)), sql.Named("path", "Score"), sql.Named("value", int64(0)),
	).Return(int64(1), nil)

	require.NoError(t, a.Run(context.Background(), exec, tpl))
}

func TestIndexInsertAction_Bulk(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)

	a := IndexInsertAction{Table: "PersonIntegers", DataType: schema.IntegerNumber, Indexes: indexes(schema.IntegerNumber, 2), Strategy: StrategyBulk}
	exec.EXPECT().BulkInsert(gomock.Any(), "PersonIntegers",
		[]string{"StructureId", "MemberPath", "Value"},
		[][]any{{int64(1), "Score", int64(0)}, {int64(2), "Score", int64(1)}},
	).Return(nil)

	require.NoError(t, <-a.RunAsync(context.Background(), exec, sqliteTemplates(t)))
}

func TestIndexInsertAction_WrapsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	boom := errors.New("disk full")

	a := IndexInsertAction{Table: "PersonIntegers", Indexes: indexes(schema.IntegerNumber, 2), Strategy: StrategyBulk}
	exec.EXPECT().BulkInsert(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)

	err := a.Run(context.Background(), exec, sqliteTemplates(t))
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "PersonIntegers")
}

func TestIndexInsertAction_NoneDoesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	assert.NoError(t, IndexInsertAction{Strategy: StrategyNone}.Run(context.Background(), exec, nil))
}
