package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCommand_ParamsFile(t *testing.T) {
	configPath := writeProject(t, nil)
	params := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(params, []byte("name: ann\n"), 0644))

	out, err := execute(NewRenderCommand(&RootOptions{Format: "text"}), configPath, "account.search", "--params", params)
	require.NoError(t, err)
	assert.Equal(t, "select id, name from account WHERE name = ?\n\nBindings:\n  1. name = \"ann\"\n", out)
}

func TestRenderCommand_NoParams(t *testing.T) {
	configPath := writeProject(t, nil)

	out, err := execute(NewRenderCommand(&RootOptions{Format: "text"}), configPath, "account.search")
	require.NoError(t, err)
	assert.Equal(t, "select id, name from account\n", out)
}

func TestRenderCommand_Stdin(t *testing.T) {
	configPath := writeProject(t, nil)

	cmd := NewRenderCommand(&RootOptions{Format: "json"})
	cmd.SetIn(strings.NewReader("7\n"))
	out, err := execute(cmd, configPath, "account.findById", "-p", "-")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   RenderResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "account.findById", resp.Data.Statement)
	assert.Equal(t, "select", resp.Data.Kind)
	assert.False(t, resp.Data.Dynamic)
	assert.Equal(t, "select id, name from account where id = ?", resp.Data.SQL)
	require.Len(t, resp.Data.Bindings, 1)
	assert.Equal(t, "id", resp.Data.Bindings[0].Property)
	assert.EqualValues(t, 7, resp.Data.Bindings[0].Value)
}

func TestRenderCommand_StatementNotFound(t *testing.T) {
	configPath := writeProject(t, nil)

	out, err := execute(NewRenderCommand(&RootOptions{Format: "text"}), configPath, "account.missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeStatement+"]: statement account.missing not found")
}

func TestRenderCommand_BadParams(t *testing.T) {
	configPath := writeProject(t, nil)

	out, err := execute(NewRenderCommand(&RootOptions{Format: "text"}), configPath, "account.search",
		"--params", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeParams)
}

func TestReadParams(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{name: "mapping", input: "id: 3\nname: ann\n", want: map[string]any{"id": 3, "name": "ann"}},
		{name: "scalar", input: "42", want: 42},
		{name: "list", input: "[1, 2]", want: []any{1, 2}},
		{name: "empty", input: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readParams("-", strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadParams_NoPath(t *testing.T) {
	got, err := readParams("", strings.NewReader("ignored: true"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadParams_Invalid(t *testing.T) {
	_, err := readParams("-", strings.NewReader("a: [1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing params")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", formatValue(nil))
	assert.Equal(t, `"ann"`, formatValue("ann"))
	assert.Equal(t, "3", formatValue(3))
	assert.Equal(t, "true", formatValue(true))
}
