package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestMarshalSnapshot_Canonical(t *testing.T) {
	result := NewResult()
	result.LoadID = "l"
	result.AddCase(CaseResult{
		Name:      "c",
		Statement: "ns.s",
		SQL:       "select ? < 1",
		Bindings:  []BindingValue{{Property: "p", Value: int64(1)}},
	})
	result.AddCase(CaseResult{Name: "e", Statement: "ns.e", Error: "boom"})

	out, err := MarshalSnapshot("demo", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"cases":[{"bindings":[{"property":"p","value":1}],"name":"c","sql":"select ? < 1","statement":"ns.s"},{"error":true,"name":"e","statement":"ns.e"}],"load_id":"l","scenario_name":"demo"}`,
		string(out))

	again, err := MarshalSnapshot("demo", result)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestMarshalSnapshot_LoadFailure(t *testing.T) {
	result := NewResult()
	result.LoadID = "l"
	result.LoadError = "unresolved reference: ..."
	result.Unresolved = []UnresolvedRef{{ID: "a.x", What: "resultMap", Ref: "a.m"}}

	out, err := MarshalSnapshot("broken", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"cases":[],"load_failed":true,"load_id":"l","scenario_name":"broken","unresolved":[{"id":"a.x","ref":"a.m","what":"resultMap"}]}`,
		string(out))
}
