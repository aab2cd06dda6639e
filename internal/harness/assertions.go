package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/ir"
	"github.com/roach88/sqlmapper/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome

	// Known lists the catalog ids of the kind the assertion looked for.
	Known []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Known) > 0 {
		fmt.Fprintf(&buf, "\nCatalog:\n")
		for _, id := range e.Known {
			fmt.Fprintf(&buf, "  %s\n", id)
		}
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Catalog *catalog.Catalog
	Store   *store.Store
	LoadID  string
	Ctx     context.Context

	snapshot *store.Snapshot
}

// Snapshot writes the catalog to the store once and returns the stored
// snapshot.
func (a *AssertionContext) Snapshot() (store.Snapshot, error) {
	if a.snapshot != nil {
		return *a.snapshot, nil
	}
	snap, _, err := a.Store.WriteSnapshot(a.Ctx, a.Catalog, a.LoadID)
	if err != nil {
		return store.Snapshot{}, err
	}
	a.snapshot = &snap
	return snap, nil
}

func statementIDs(cat *catalog.Catalog) []string {
	var ids []string
	for _, st := range cat.Statements("") {
		ids = append(ids, st.ID.String())
	}
	return ids
}

// assertStatementExists checks the catalog holds the statement.
func assertStatementExists(cat *catalog.Catalog, assertion Assertion) error {
	if _, ok := cat.Statement(ir.Qualify("", assertion.Statement)); ok {
		return nil
	}
	return &AssertionError{
		Type:     AssertStatementExists,
		Expected: fmt.Sprintf("statement %s", assertion.Statement),
		Actual:   "not found in catalog",
		Known:    statementIDs(cat),
	}
}

// assertResultMapProperties checks the result map's entries map exactly the
// listed properties, in declaration order. Constructor arguments without a
// property are skipped.
func assertResultMapProperties(cat *catalog.Catalog, assertion Assertion) error {
	rm, ok := cat.ResultMap(ir.Qualify("", assertion.ResultMap))
	if !ok {
		var known []string
		for _, m := range cat.ResultMaps("") {
			known = append(known, m.ID.String())
		}
		return &AssertionError{
			Type:     AssertResultMapProperties,
			Expected: fmt.Sprintf("result map %s", assertion.ResultMap),
			Actual:   "not found in catalog",
			Known:    known,
		}
	}

	var props []string
	for _, e := range rm.Entries {
		if e.Property != "" {
			props = append(props, e.Property)
		}
	}
	if !slices.Equal(props, assertion.Properties) {
		return &AssertionError{
			Type:     AssertResultMapProperties,
			Expected: fmt.Sprintf("%s maps %v", assertion.ResultMap, assertion.Properties),
			Actual:   fmt.Sprintf("maps %v", props),
		}
	}
	return nil
}

// assertUnresolvedCount checks how many definitions the final pass left
// unresolved.
func assertUnresolvedCount(result *Result, assertion Assertion) error {
	if len(result.Unresolved) == assertion.Count {
		return nil
	}
	var known []string
	for _, u := range result.Unresolved {
		known = append(known, fmt.Sprintf("%s -> %s %s", u.ID, u.What, u.Ref))
	}
	return &AssertionError{
		Type:     AssertUnresolvedCount,
		Expected: fmt.Sprintf("%d unresolved", assertion.Count),
		Actual:   fmt.Sprintf("%d unresolved", len(result.Unresolved)),
		Known:    known,
	}
}

// assertSnapshotStatements stores the catalog and counts the statements
// read back for the namespace.
func assertSnapshotStatements(actx *AssertionContext, assertion Assertion) error {
	snap, err := actx.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot_statements: %w", err)
	}
	records, err := actx.Store.ListStatements(actx.Ctx, snap.ID, assertion.Namespace)
	if err != nil {
		return fmt.Errorf("snapshot_statements: %w", err)
	}
	if len(records) == assertion.Count {
		return nil
	}
	known := make([]string, len(records))
	for i, r := range records {
		known[i] = r.Namespace + "." + r.ID
	}
	return &AssertionError{
		Type:     AssertSnapshotStatements,
		Expected: fmt.Sprintf("%d statements in namespace %s", assertion.Count, assertion.Namespace),
		Actual:   fmt.Sprintf("%d statements", len(records)),
		Known:    known,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the catalog and the store.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertUnresolvedCount:
			err = assertUnresolvedCount(result, assertion)
		case AssertStatementExists, AssertResultMapProperties, AssertSnapshotStatements:
			if actx == nil || actx.Catalog == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a catalog", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertStatementExists:
				err = assertStatementExists(actx.Catalog, assertion)
			case AssertResultMapProperties:
				err = assertResultMapProperties(actx.Catalog, assertion)
			default:
				if actx.Store == nil {
					err = fmt.Errorf("assertion[%d]: snapshot_statements requires a store", i)
				} else {
					err = assertSnapshotStatements(actx, assertion)
				}
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
