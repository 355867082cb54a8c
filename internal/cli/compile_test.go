package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileText(t *testing.T) {
	out, err := execute(t, "compile", specsDir, "--config", testConfig(t),
		"--type", "Book", "--where", "Pages > 300", "--order-by", "Pages", "--desc")
	require.NoError(t, err)

	assert.Contains(t, out, "Book: where: Member(Pages) Operator(>) Value(300); order: Pages DESC")
	assert.Contains(t, out, "SQL (rows):")
	assert.Contains(t, out, "LEFT JOIN [BookIntegers] srt0 ON srt0.StructureId = s.StructureId AND srt0.MemberPath = 'Pages'")
	assert.Contains(t, out, "WHERE EXISTS (SELECT 1 FROM [BookIntegers] mem0 WHERE mem0.StructureId = m.StructureId AND mem0.MemberPath = 'Pages' AND mem0.Value > @p0))")
	assert.Contains(t, out, "-- @p0 = 300 (int64)")
}

func TestCompileJSON(t *testing.T) {
	out, err := execute(t, "compile", specsDir, "--config", testConfig(t), "--format", "json",
		"--type", "Book", "--where", `Tags.Contains("sf")`, "--where", "Available", "--shape", "count")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "count", resp.Data.Shape)
	assert.Equal(t, []string{
		"StartGroup", "Member(Tags)", "Operator(=)", `Value("sf")`, "EndGroup",
		"Operator(and)",
		"StartGroup", "Member(Available)", "Operator(=)", "Value(true)", "EndGroup",
	}, resp.Data.IR)
	assert.Equal(t, "SELECT COUNT(*) FROM [BookStructures] s WHERE s.StructureId IN (SELECT m.StructureId FROM [BookStructures] m WHERE "+
		"(EXISTS (SELECT 1 FROM [BookStrings] mem0 WHERE mem0.StructureId = m.StructureId AND mem0.MemberPath = 'Tags' AND mem0.Value = @p0)) AND "+
		"(EXISTS (SELECT 1 FROM [BookBooleans] mem1 WHERE mem1.StructureId = m.StructureId AND mem1.MemberPath = 'Available' AND mem1.Value = @p1)))", resp.Data.SQL)
	require.Len(t, resp.Data.Params, 2)
	assert.Equal(t, ParamInfo{Name: "@p0", Value: "sf"}, resp.Data.Params[0])
	assert.Equal(t, ParamInfo{Name: "@p1", Value: true}, resp.Data.Params[1])
}

func TestCompileDeclaredQuery(t *testing.T) {
	output := filepath.Join(t.TempDir(), "long.json")
	_, err := execute(t, "compile", specsDir, "--config", testConfig(t), "--use", "longBooks", "--shape", "ids", "--output", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "Book", result.Structure)
	assert.Equal(t, "ids", result.Shape)
	assert.Contains(t, result.SQL, "SELECT s.StructureId FROM [BookStructures] s")
	assert.Contains(t, result.SQL, "ORDER BY srt0.Value DESC, s.StructureId ASC")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{
			name:     "unknown member",
			args:     []string{"--type", "Book", "--where", "Missing == 1"},
			wantCode: ExitFailure,
			wantOut:  "UNRESOLVABLE_MEMBER: Book.Missing: no such member",
		},
		{
			name:     "ordering by a collection",
			args:     []string{"--type", "Book", "--order-by", "Tags"},
			wantCode: ExitFailure,
			wantOut:  "Tags",
		},
		{
			name:     "unknown structure",
			args:     []string{"--type", "Magazine"},
			wantCode: ExitCommandError,
			wantOut:  `no structure named "Magazine"`,
		},
		{
			name:     "no type",
			args:     []string{"--where", "Pages > 1"},
			wantCode: ExitCommandError,
			wantOut:  "--type or --use is required",
		},
		{
			name:     "use with inline clauses",
			args:     []string{"--use", "longBooks", "--skip", "1"},
			wantCode: ExitCommandError,
			wantOut:  "--use cannot be combined",
		},
		{
			name:     "bad shape",
			args:     []string{"--type", "Book", "--shape", "rowz"},
			wantCode: ExitCommandError,
			wantOut:  `unknown shape "rowz"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"compile", specsDir, "--config", testConfig(t)}, tt.args...)
			out, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}
