package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/roach88/sqlmapper/internal/builder"
	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/ir"
	"github.com/roach88/sqlmapper/internal/store"
	"github.com/roach88/sqlmapper/internal/testutil"
)

// Harness runs one scenario against a fresh loader and store.
type Harness struct {
	loader *builder.Loader
	store  *store.Store
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario loads into a fresh catalog with the testutil type registry
// and a fixed load id, so output is reproducible.
//
// Execution flow:
// 1. Create fresh in-memory store
// 2. Load every mapper document, then run the final resolution pass
// 3. Render each case and compare it with its expectation
// 4. Evaluate assertions against the catalog
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	// Suppress loader logs in tests.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		loader: builder.NewLoader(
			scenario.Settings.BuilderSettings(),
			testutil.Registry(),
			builder.WithLoadIDGenerator(testutil.FixedLoadID(scenario.LoadID)),
			builder.WithLogger(logger),
		),
		store:  st,
		logger: logger,
	}

	result := NewResult()
	result.LoadID = h.loader.LoadID()

	loadErr := h.load(scenario.Mappers)
	for _, ue := range builder.Unresolved(loadErr) {
		// Namespace-level items such as cache-ref have no id.
		id := ue.Namespace
		if ue.ID != "" {
			id = ir.QualifiedID{Namespace: ue.Namespace, ID: ue.ID}.String()
		}
		result.Unresolved = append(result.Unresolved, UnresolvedRef{
			ID:   id,
			What: ue.What,
			Ref:  ue.Ref,
		})
	}
	checkLoadError(scenario.LoadError, loadErr, result)

	cat := h.loader.Catalog()
	for i, c := range scenario.Cases {
		cr := renderCase(cat, c)
		result.AddCase(cr)
		for _, msg := range compareCase(c, cr) {
			result.AddError(fmt.Sprintf("cases[%d] %s: %s", i, c.Name, msg))
		}
	}

	actx := &AssertionContext{
		Catalog: cat,
		Store:   st,
		LoadID:  result.LoadID,
		Ctx:     context.Background(),
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// load loads every document, continuing past rejected ones so all problems
// are reported, then runs the final pass.
func (h *Harness) load(mappers []MapperDoc) error {
	var errs []error
	for i, m := range mappers {
		var err error
		if m.Content != "" {
			err = h.loader.LoadReader(m.Resource, strings.NewReader(m.Content))
		} else {
			err = h.loader.LoadFile(m.Path)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		h.logger.Debug("mapper loaded", "index", i, "resource", m.Resource, "path", m.Path)
	}
	if err := h.loader.Finish(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func checkLoadError(expected string, err error, result *Result) {
	if err != nil {
		result.LoadError = err.Error()
	}
	switch {
	case expected == "" && err != nil:
		result.AddError(fmt.Sprintf("load failed: %v", err))
	case expected != "" && err == nil:
		result.AddError(fmt.Sprintf("expected load error containing %q, load succeeded", expected))
	case expected != "" && !strings.Contains(err.Error(), expected):
		result.AddError(fmt.Sprintf("expected load error containing %q, got %q", expected, err.Error()))
	}
}

func renderCase(cat *catalog.Catalog, c Case) CaseResult {
	res := CaseResult{Name: c.Name, Statement: c.Statement}
	st, ok := cat.Statement(ir.Qualify("", c.Statement))
	if !ok {
		res.Error = fmt.Sprintf("statement %s not found", c.Statement)
		return res
	}

	// A nil map must reach the renderer as a nil parameter.
	var param any
	if c.Params != nil {
		param = c.Params
	}
	bound, err := st.Source.BoundSQL(param)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.SQL = squash(bound.SQL)
	for _, b := range bound.Bindings {
		res.Bindings = append(res.Bindings, BindingValue{
			Property: b.Property,
			Value:    normalizeValue(b.Value),
		})
	}
	return res
}

func compareCase(c Case, res CaseResult) []string {
	if c.Error != "" {
		if res.Error == "" {
			return []string{fmt.Sprintf("expected error containing %q, rendered %q", c.Error, res.SQL)}
		}
		if !strings.Contains(res.Error, c.Error) {
			return []string{fmt.Sprintf("expected error containing %q, got %q", c.Error, res.Error)}
		}
		return nil
	}
	if res.Error != "" {
		return []string{fmt.Sprintf("render failed: %s", res.Error)}
	}

	var msgs []string
	if want := squash(c.Expect.SQL); want != res.SQL {
		msgs = append(msgs, fmt.Sprintf("expected SQL %q, got %q", want, res.SQL))
	}
	if c.Expect.Bindings != nil {
		want := make([]any, len(c.Expect.Bindings))
		for i, v := range c.Expect.Bindings {
			want[i] = normalizeValue(v)
		}
		got := make([]any, len(res.Bindings))
		for i, b := range res.Bindings {
			got[i] = b.Value
		}
		if !reflect.DeepEqual(want, got) {
			msgs = append(msgs, fmt.Sprintf("expected bindings %v, got %v", want, got))
		}
	}
	return msgs
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeValue maps a binding value onto the types canonical JSON
// accepts: integers become int64, integral floats become int64, other
// floats and unknown kinds become strings.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64:
		return x
	case int:
		return int64(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u)
		}
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalizeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	}
	return fmt.Sprint(v)
}
