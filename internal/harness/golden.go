package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sqlmapper/internal/ir"
)

// RenderSnapshot captures the rendered output of a scenario.
// All fields use canonical JSON serialization for deterministic comparison.
type RenderSnapshot struct {
	ScenarioName string
	LoadID       string
	LoadFailed   bool
	Unresolved   []UnresolvedRef
	Cases        []CaseResult
}

// NewRenderSnapshot builds the snapshot of result under name.
func NewRenderSnapshot(name string, result *Result) RenderSnapshot {
	return RenderSnapshot{
		ScenarioName: name,
		LoadID:       result.LoadID,
		LoadFailed:   result.LoadError != "",
		Unresolved:   result.Unresolved,
		Cases:        result.Cases,
	}
}

// toCanonicalMap converts a RenderSnapshot to a map[string]any for canonical JSON serialization.
// ir.MarshalCanonical only handles primitives, slices and maps.
//
// Render errors are recorded as "error": true only: their text comes from
// other packages and is asserted by the scenario itself.
func (s *RenderSnapshot) toCanonicalMap() map[string]any {
	cases := make([]any, len(s.Cases))
	for i, c := range s.Cases {
		caseMap := map[string]any{
			"name":      c.Name,
			"statement": c.Statement,
		}
		if c.Error != "" {
			caseMap["error"] = true
		} else {
			bindings := make([]any, len(c.Bindings))
			for j, b := range c.Bindings {
				bindings[j] = map[string]any{
					"property": b.Property,
					"value":    b.Value,
				}
			}
			caseMap["sql"] = c.SQL
			caseMap["bindings"] = bindings
		}
		cases[i] = caseMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"load_id":       s.LoadID,
		"cases":         cases,
	}
	if s.LoadFailed {
		result["load_failed"] = true
	}
	if len(s.Unresolved) > 0 {
		refs := make([]any, len(s.Unresolved))
		for i, u := range s.Unresolved {
			refs[i] = map[string]any{"id": u.ID, "what": u.What, "ref": u.Ref}
		}
		result["unresolved"] = refs
	}
	return result
}

// MarshalSnapshot returns the canonical JSON bytes compared against golden
// files.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := NewRenderSnapshot(name, result)
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its rendered output against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the output doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	out, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, out)

	return nil
}
