package harness

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/structdb/internal/compiler"
	"github.com/roach88/structdb/internal/config"
	"github.com/roach88/structdb/internal/db"
	"github.com/roach88/structdb/internal/ids"
	"github.com/roach88/structdb/internal/logging"
	"github.com/roach88/structdb/internal/query"
	"github.com/roach88/structdb/internal/schema"
	"github.com/roach88/structdb/internal/sqlgen"
	"github.com/roach88/structdb/internal/testutil"
)

// Harness runs one scenario against its own database.
type Harness struct {
	db    *db.Database
	specs *compiler.LoadResult
	s     *schema.StructureSchema
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh database file under a temporary directory
// that is removed afterwards. Guid ids come from a sequential source so
// results are reproducible.
//
// Execution flow:
// 1. Load and compile the CUE specs
// 2. Open the database and register every declared structure
// 3. Insert the documents (sync or async)
// 4. Run each query and compare ids and counts
// 5. Evaluate table assertions
func Run(scenario *Scenario) (*Result, error) {
	ctx := logging.WithLogger(context.Background(), logging.Discard())

	specs, errs := compiler.LoadSpecs(scenario.Specs, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load specs: %w", errs[0])
	}

	dir, err := os.MkdirTemp("", "structdb-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cfg := config.Default()
	cfg.DSN = filepath.Join(dir, "harness.db")
	cfg.BoltPath = filepath.Join(dir, "ids.bolt")
	if scenario.Serializer != "" {
		cfg.Serializer = scenario.Serializer
	}

	guids := &testutil.SequentialGuids{}
	database, err := db.Open(ctx, cfg, db.WithIDOptions(ids.WithGuidSource(guids.Next)))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	h := &Harness{db: database, specs: specs}
	for _, sd := range specs.Structures {
		s, err := database.Register(ctx, sd.Declaration)
		if err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", sd.Declaration.Name, err)
		}
		if sd.Declaration.Name == scenario.Structure {
			h.s = s
		}
	}
	if h.s == nil {
		return nil, fmt.Errorf("structure %q is not declared in %s", scenario.Structure, scenario.Specs)
	}

	result := NewResult()
	h.insert(ctx, scenario, result)
	for _, step := range scenario.Queries {
		h.runQuery(ctx, step, result)
	}
	for _, msg := range EvaluateAssertions(ctx, database.Store(), scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) insert(ctx context.Context, scenario *Scenario, result *Result) {
	if len(scenario.Documents) == 0 {
		return
	}
	// ids are assigned into the maps; keep the scenario reusable
	docs := make([]map[string]any, len(scenario.Documents))
	for i, d := range scenario.Documents {
		docs[i] = maps.Clone(d)
	}

	var err error
	if scenario.Async {
		err = <-h.db.InsertDocumentsAsync(ctx, h.s.Name, docs)
	} else {
		err = h.db.InsertDocuments(ctx, h.s.Name, docs)
	}

	switch {
	case scenario.ExpectInsertError == "" && err != nil:
		result.AddError(fmt.Sprintf("insert: %v", err))
	case scenario.ExpectInsertError != "" && err == nil:
		result.AddError(fmt.Sprintf("insert: expected error containing %q, got none", scenario.ExpectInsertError))
	case scenario.ExpectInsertError != "" && !strings.Contains(err.Error(), scenario.ExpectInsertError):
		result.AddError(fmt.Sprintf("insert: expected error containing %q, got %v", scenario.ExpectInsertError, err))
	}
}

func (h *Harness) spec(step QueryStep) (compiler.QuerySpec, error) {
	if step.Use == "" {
		return step.Spec(h.s.Name), nil
	}
	spec, ok := h.specs.Query(step.Use)
	if !ok {
		return compiler.QuerySpec{}, fmt.Errorf("no query named %q", step.Use)
	}
	if spec.Structure != h.s.Name {
		return compiler.QuerySpec{}, fmt.Errorf("query %q reads %s, not %s", step.Use, spec.Structure, h.s.Name)
	}
	return spec, nil
}

func (h *Harness) runQuery(ctx context.Context, step QueryStep, result *Result) {
	qr := QueryResult{Name: step.Name, IDs: []string{}}
	err := h.execute(ctx, step, &qr)
	if err != nil {
		qr.Error = err.Error()
	}
	result.Queries = append(result.Queries, qr)

	switch {
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("query %s: %v", step.Name, err))
		return
	case step.ExpectError != "":
		if err == nil || !strings.Contains(err.Error(), step.ExpectError) {
			result.AddError(fmt.Sprintf("query %s: expected error containing %q, got %v", step.Name, step.ExpectError, err))
		}
		return
	}

	if step.ExpectIDs != nil {
		if msg := compareIDs(step.Name, step.ExpectIDs, qr.IDs); msg != "" {
			result.AddError(msg)
		}
	}
	if step.ExpectCount != nil && *step.ExpectCount != qr.Count {
		result.AddError(fmt.Sprintf("query %s: expected count %d, got %d", step.Name, *step.ExpectCount, qr.Count))
	}
}

func (h *Harness) execute(ctx context.Context, step QueryStep, qr *QueryResult) error {
	spec, err := h.spec(step)
	if err != nil {
		return err
	}
	q, err := spec.Apply(query.NewBuilder(h.s)).Build()
	if err != nil {
		return err
	}

	rows, err := h.db.GenerateQuery(h.s, q, sqlgen.FullRows)
	if err != nil {
		return err
	}
	qr.SQL = rows.SQL
	if len(rows.Params) > 0 {
		qr.Params = make(map[string]any, len(rows.Params))
		for _, p := range rows.Params {
			qr.Params[p.Placeholder()] = p.Value
		}
	}

	idQuery, err := h.db.GenerateQuery(h.s, q, sqlgen.IdsOnly)
	if err != nil {
		return err
	}
	got, err := h.db.Store().ReadIDs(ctx, h.s.IDKind, idQuery.SQL, idQuery.Args()...)
	if err != nil {
		return err
	}
	for _, id := range got {
		qr.IDs = append(qr.IDs, id.String())
	}

	qr.Count, err = h.db.CountDocuments(ctx, h.s.Name, spec.Apply)
	return err
}
