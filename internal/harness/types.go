package harness

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion matched.
	Pass bool `json:"pass"`

	// Queries holds one entry per query step, in scenario order.
	Queries []QueryResult `json:"queries"`

	// Errors contains mismatch messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// QueryResult records what a query generated and returned.
type QueryResult struct {
	Name   string         `json:"name"`
	SQL    string         `json:"sql,omitempty"`
	Params map[string]any `json:"params,omitempty"`
	IDs    []string       `json:"ids"`
	Count  int64          `json:"count"`
	Error  string         `json:"error,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Queries: []QueryResult{},
		Errors:  []string{},
	}
}

// AddError adds a mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
