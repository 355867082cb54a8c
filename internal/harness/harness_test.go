package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/structdb/internal/compiler"
	"github.com/roach88/structdb/internal/schema"
)

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.Len(t, result.Queries, len(s.Queries))
		})
	}
}

func TestRun_ReusableScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/library.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotContains(t, s.Documents[0], "Id", "ids must not leak into the scenario")
}

func TestRun_SyncAndAsyncAgree(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/library.yaml")
	require.NoError(t, err)

	sync, err := Run(s)
	require.NoError(t, err)

	async := *s
	async.Async = true
	async.Serializer = "msgpack"
	got, err := Run(&async)
	require.NoError(t, err)

	require.True(t, got.Pass, "errors: %v", got.Errors)
	assert.Equal(t, sync.Queries, got.Queries)
}

func TestRun_ReportsMismatches(t *testing.T) {
	count := int64(5)
	s := &Scenario{
		Name:        "mismatch",
		Description: "every expectation is wrong",
		Specs:       filepath.Join("testdata", "specs"),
		Structure:   "Book",
		Documents:   []map[string]any{{"Title": "Dune", "Pages": 412}},
		Queries: []QueryStep{
			{Name: "ids", ExpectIDs: []string{"9"}},
			{Name: "count", ExpectCount: &count},
			{Name: "bad", Where: "Missing == 1"},
			{Name: "no-error", Where: "Pages > 1", ExpectError: "boom"},
		},
		Assertions: []Assertion{{Type: AssertTableRows, Table: "BookStructures", Count: 3}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "expected ids [9], got [1]")
	assert.Contains(t, result.Errors[1], "expected count 5, got 1")
	assert.Contains(t, result.Errors[2], "UNRESOLVABLE_MEMBER")
	assert.Contains(t, result.Errors[3], `expected error containing "boom"`)
	assert.Contains(t, result.Errors[4], "assertions[0]")
}

func TestRun_UnknownStructure(t *testing.T) {
	s := &Scenario{
		Name:      "unknown",
		Specs:     filepath.Join("testdata", "specs"),
		Structure: "Magazine",
		Queries:   []QueryStep{{Name: "all"}},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `structure "Magazine" is not declared`)
}

func TestRun_UseOfOtherStructure(t *testing.T) {
	s := &Scenario{
		Name:      "wrong-use",
		Specs:     filepath.Join("testdata", "specs"),
		Structure: "Book",
		Queries:   []QueryStep{{Name: "q", Use: "labelled", ExpectError: "reads Shelf, not Book"}},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestDeclaredQueriesValidate(t *testing.T) {
	specs, errs := compiler.LoadSpecs(filepath.Join("testdata", "specs"), compiler.LoadModeCollectAll)
	require.Empty(t, errs)

	schemas := make(map[string]*schema.StructureSchema)
	for _, sd := range specs.Structures {
		assert.Empty(t, compiler.Validate(sd.Declaration), sd.Declaration.Name)
		s, err := schema.FromDeclaration(sd.Declaration)
		require.NoError(t, err)
		schemas[s.Name] = s
	}
	for _, q := range specs.Queries {
		assert.Empty(t, compiler.ValidateQuery(&q, schemas), q.Name)
	}
}

func TestEvaluateAssertions_RejectsIdentifiers(t *testing.T) {
	errs := EvaluateAssertions(context.Background(), nil, []Assertion{
		{Type: AssertTableRows, Table: "Book; DROP TABLE x", Count: 0},
		{Type: AssertTableRows, Table: "BookStrings", Where: map[string]any{"Value --": 1}},
		{Type: "other"},
	})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "invalid table name")
	assert.Contains(t, errs[1], "invalid column name")
	assert.Contains(t, errs[2], `unknown assertion type "other"`)
}

func TestCompareIDs(t *testing.T) {
	assert.Empty(t, compareIDs("q", []string{"1", "2"}, []string{"1", "2"}))
	assert.Empty(t, compareIDs("q", []string{}, []string{}))
	assert.Contains(t, compareIDs("q", []string{"1", "2"}, []string{"2", "1"}), "expected ids [1 2], got [2 1]")
}
