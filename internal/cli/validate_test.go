package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/structdb/internal/compiler"
)

// writeSpecs writes one CUE file into a fresh directory.
func writeSpecs(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "specs.cue"), []byte(content), 0644))
	return dir
}

func TestValidateValidSpecs(t *testing.T) {
	out, err := execute(t, "validate", specsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All specs valid (2 structure(s), 2 query(ies))")
}

func TestValidateJSON(t *testing.T) {
	out, err := execute(t, "validate", specsDir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Structures)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	dir := writeSpecs(t, `package specs

structure: Book: {
	fields: {
		Title: string
		Tags: [...string]
	}
	unique: ["Tags"]
}

structure: Note: {
	fields: {Body: string}
	text: ["Missing"]
}

query: byAuthor: {
	structure: "Book"
	where:     "Author == \"Le Guin\""
}

query: orphan: {
	structure: "Magazine"
	where:     "Issue > 1"
}
`)

	errs, err := ValidateSpecsDir(dir)
	require.NoError(t, err)

	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	assert.Contains(t, codes, compiler.ErrUniqueCollection)
	assert.Contains(t, codes, compiler.ErrUnknownMember)
	assert.Contains(t, codes, compiler.ErrUnknownStructure)
	assert.Len(t, errs, 3, "byAuthor is skipped because Book is invalid: %v", errs)

	out, runErr := execute(t, "validate", dir)
	require.Error(t, runErr)
	assert.Equal(t, ExitFailure, GetExitCode(runErr))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrUniqueCollection)
}

func TestValidateQueryAgainstSchema(t *testing.T) {
	dir := writeSpecs(t, `package specs

structure: Book: fields: {Title: string, Pages: int}

query: bad: {
	structure: "Book"
	where:     "Author == \"Le Guin\""
	order_by:  "Pages"
}
`)

	errs, err := ValidateSpecsDir(dir)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, compiler.ErrInvalidWhere, errs[0].Code)
	assert.Equal(t, "query.bad.where[0]", errs[0].Field)
}

func TestValidateLoadErrors(t *testing.T) {
	_, err := execute(t, "validate", "/nonexistent/specs")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	empty := t.TempDir()
	out, err := execute(t, "validate", empty, "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, compiler.ErrCodeNoFiles, resp.Error.Code)
}
