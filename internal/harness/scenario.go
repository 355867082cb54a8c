package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/structdb/internal/compiler"
)

// Scenario defines one harness run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs is the directory of CUE declarations, relative to the scenario
	// file when loaded with LoadScenario.
	Specs string `yaml:"specs"`

	// Structure is the declared structure the documents belong to.
	Structure string `yaml:"structure"`

	// Serializer overrides the payload codec (json or msgpack).
	Serializer string `yaml:"serializer,omitempty"`

	// Async inserts through the concurrent index path.
	Async bool `yaml:"async,omitempty"`

	// Documents are inserted in one batch before the queries run.
	Documents []map[string]any `yaml:"documents"`

	// ExpectInsertError, when set, is a substring the insert error must
	// contain. The queries then run against the unchanged database.
	ExpectInsertError string `yaml:"expect_insert_error,omitempty"`

	Queries    []QueryStep `yaml:"queries"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// QueryStep is one query and its expected outcome. Use names a query
// declared in the specs; otherwise the inline clauses describe it.
type QueryStep struct {
	Name       string `yaml:"name"`
	Use        string `yaml:"use,omitempty"`
	Where      string `yaml:"where,omitempty"`
	OrderBy    string `yaml:"order_by,omitempty"`
	Descending bool   `yaml:"descending,omitempty"`
	Skip       int    `yaml:"skip,omitempty"`
	Take       *int   `yaml:"take,omitempty"`

	// ExpectIDs are the expected ids in result order, as text.
	ExpectIDs []string `yaml:"expect_ids,omitempty"`
	// ExpectCount is the expected count, which ignores paging.
	ExpectCount *int64 `yaml:"expect_count,omitempty"`
	// ExpectError is a substring the query error must contain.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Spec converts the step into a compiler.QuerySpec over structure.
func (q QueryStep) Spec(structure string) compiler.QuerySpec {
	spec := compiler.QuerySpec{
		Name:      q.Name,
		Structure: structure,
		Skip:      q.Skip,
		Take:      q.Take,
	}
	if q.Where != "" {
		spec.Where = []string{q.Where}
	}
	if q.OrderBy != "" {
		spec.OrderBy = []compiler.Ordering{{Member: q.OrderBy, Descending: q.Descending}}
	}
	return spec
}

// Assertion validates final table state.
type Assertion struct {
	// Type is the assertion type; only table_rows is supported.
	Type string `yaml:"type"`

	// Table is the full table name, e.g. BookIntegers.
	Table string `yaml:"table"`

	// Where filters rows by column value. All entries must match.
	Where map[string]any `yaml:"where,omitempty"`

	// Count is the expected number of matching rows.
	Count int `yaml:"count"`
}

// Assertion type constants.
const (
	AssertTableRows = "table_rows"
)

// LoadScenario reads and parses a scenario YAML file, resolving Specs
// relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "query:" vs "queries:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Specs != "" && !filepath.IsAbs(scenario.Specs) {
		scenario.Specs = filepath.Join(filepath.Dir(path), scenario.Specs)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	var out []*Scenario
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Specs == "" {
		return fmt.Errorf("specs directory is required")
	}
	if _, err := os.Stat(s.Specs); os.IsNotExist(err) {
		return fmt.Errorf("specs directory not found: %s", s.Specs)
	}
	if s.Structure == "" {
		return fmt.Errorf("structure is required")
	}
	if len(s.Queries) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("at least one query or assertion is required")
	}

	seen := make(map[string]bool)
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if seen[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		seen[q.Name] = true
		if q.Use != "" && (q.Where != "" || q.OrderBy != "" || q.Skip != 0 || q.Take != nil) {
			return fmt.Errorf("queries[%d]: use cannot be combined with inline clauses", i)
		}
		if q.Descending && q.OrderBy == "" {
			return fmt.Errorf("queries[%d]: descending needs order_by", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTableRows:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for table_rows", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
