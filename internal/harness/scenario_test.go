package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content next to an empty specs directory and returns
// the scenario path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "specs"), 0755))
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
specs: specs
structure: Book
documents:
  - {Title: Dune, Pages: 412}
queries:
  - name: long
    where: Pages > 300
    order_by: Title
    descending: true
    take: 5
    expect_ids: ["1"]
    expect_count: 1
assertions:
  - type: table_rows
    table: BookIntegers
    where: {MemberPath: Pages}
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "specs"), scenario.Specs)
	assert.Equal(t, "Book", scenario.Structure)
	require.Len(t, scenario.Documents, 1)
	assert.Equal(t, "Dune", scenario.Documents[0]["Title"])
	require.Len(t, scenario.Queries, 1)

	q := scenario.Queries[0]
	assert.Equal(t, "Pages > 300", q.Where)
	require.NotNil(t, q.Take)
	assert.Equal(t, 5, *q.Take)
	require.NotNil(t, q.ExpectCount)
	assert.Equal(t, int64(1), *q.ExpectCount)
	assert.Equal(t, []string{"1"}, q.ExpectIDs)

	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, "Pages", scenario.Assertions[0].Where["MemberPath"])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: misspelled field
specs: specs
structure: Book
query:
  - name: all
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
specs: specs
structure: Book
queries: [{name: all}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing specs directory",
			content: `
name: s
description: d
specs: nowhere
structure: Book
queries: [{name: all}]
`,
			wantErr: "specs directory not found",
		},
		{
			name: "missing structure",
			content: `
name: s
description: d
specs: specs
queries: [{name: all}]
`,
			wantErr: "structure is required",
		},
		{
			name: "nothing to check",
			content: `
name: s
description: d
specs: specs
structure: Book
`,
			wantErr: "at least one query or assertion",
		},
		{
			name: "duplicate query name",
			content: `
name: s
description: d
specs: specs
structure: Book
queries: [{name: all}, {name: all}]
`,
			wantErr: `duplicate name "all"`,
		},
		{
			name: "use with inline clauses",
			content: `
name: s
description: d
specs: specs
structure: Book
queries: [{name: q, use: longBooks, where: Pages > 1}]
`,
			wantErr: "use cannot be combined",
		},
		{
			name: "descending without order",
			content: `
name: s
description: d
specs: specs
structure: Book
queries: [{name: q, descending: true}]
`,
			wantErr: "descending needs order_by",
		},
		{
			name: "unknown assertion type",
			content: `
name: s
description: d
specs: specs
structure: Book
assertions: [{type: trace_contains}]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "table_rows without table",
			content: `
name: s
description: d
specs: specs
structure: Book
assertions: [{type: table_rows, count: 1}]
`,
			wantErr: "table is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios_Sorted(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"duplicate-title", "library", "library-async", "shelves"}, names)
}

func TestQueryStep_Spec(t *testing.T) {
	take := 2
	step := QueryStep{Name: "q", Where: "Pages > 1", OrderBy: "Title", Descending: true, Skip: 1, Take: &take}
	spec := step.Spec("Book")

	assert.Equal(t, "Book", spec.Structure)
	assert.Equal(t, []string{"Pages > 1"}, spec.Where)
	require.Len(t, spec.OrderBy, 1)
	assert.True(t, spec.OrderBy[0].Descending)
	assert.Equal(t, 1, spec.Skip)
	assert.Equal(t, &take, spec.Take)

	assert.Empty(t, QueryStep{Name: "all"}.Spec("Book").Where)
}
