package harness

// CaseResult is the outcome of rendering one case.
type CaseResult struct {
	Name      string         `json:"name"`
	Statement string         `json:"statement"`
	SQL       string         `json:"sql,omitempty"`
	Bindings  []BindingValue `json:"bindings,omitempty"`

	// Error is the render error, if any. Cases that expect an error pass
	// when it contains the expected text.
	Error string `json:"error,omitempty"`
}

// BindingValue is one placeholder binding with its value normalized by
// normalizeValue.
type BindingValue struct {
	Property string `json:"property"`
	Value    any    `json:"value"`
}

// UnresolvedRef is a definition the final resolution pass could not
// complete.
type UnresolvedRef struct {
	ID   string `json:"id"`
	What string `json:"what"`
	Ref  string `json:"ref"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every case and assertion matched.
	Pass bool `json:"pass"`

	LoadID string `json:"load_id"`

	// LoadError is the loader's error text when loading or the final
	// resolution pass failed.
	LoadError  string          `json:"load_error,omitempty"`
	Unresolved []UnresolvedRef `json:"unresolved,omitempty"`

	Cases []CaseResult `json:"cases"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cases:  []CaseResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCase appends a rendered case.
func (r *Result) AddCase(c CaseResult) {
	r.Cases = append(r.Cases, c)
}
