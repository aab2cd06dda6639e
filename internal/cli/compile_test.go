package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCommand_Text(t *testing.T) {
	configPath := writeProject(t, nil)

	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), configPath)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 namespace(s), 3 statement(s) from 2 file(s)")
	assert.Contains(t, out, "account: 2 statement(s), 1 result map(s), cache\n")
	assert.Contains(t, out, "ledger: 1 statement(s)")
	assert.Contains(t, out, "cache → account")
	assert.NotContains(t, out, "Snapshot")
}

func TestCompileCommand_JSON(t *testing.T) {
	configPath := writeProject(t, nil)

	out, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), configPath)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Files, 2)
	assert.NotEmpty(t, resp.Data.LoadID)
	require.Len(t, resp.Data.Namespaces, 2)
	assert.Equal(t, "account", resp.Data.Namespaces[0].Name)
	assert.Equal(t, "account", resp.Data.Namespaces[0].Cache)
	assert.Equal(t, "ledger", resp.Data.Namespaces[1].Name)
	assert.Equal(t, "account", resp.Data.Namespaces[1].Cache)
	assert.Nil(t, resp.Data.Snapshot)
}

func TestCompileCommand_Snapshot(t *testing.T) {
	configPath := writeProject(t, nil)
	dbPath := filepath.Join(t.TempDir(), "mappers.db")

	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), configPath, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "(seq 1) stored")

	// Unchanged mappers store nothing new.
	out, err = execute(NewCompileCommand(&RootOptions{Format: "text"}), configPath, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "(seq 1) unchanged")
}

func TestCompileCommand_SnapshotJSON(t *testing.T) {
	configPath := writeProject(t, nil)
	dbPath := filepath.Join(t.TempDir(), "mappers.db")

	out, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), configPath, "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Data.Snapshot)
	assert.True(t, resp.Data.SnapshotCreated)
	assert.Equal(t, 2, resp.Data.Snapshot.Namespaces)
	assert.Equal(t, 3, resp.Data.Snapshot.Statements)
	assert.Equal(t, resp.Data.LoadID, resp.Data.Snapshot.LoadID)
}

func TestCompileCommand_ConfigNotFound(t *testing.T) {
	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
	assert.Contains(t, out, "config file not found")
}

func TestCompileCommand_MalformedMapper(t *testing.T) {
	configPath := writeProject(t, map[string]string{
		"mappers/broken.xml": `<mapper namespace="broken"><select id="x">`,
	})

	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), configPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, ErrCodeMarkup)
}

func TestCompileCommand_UnresolvedJSON(t *testing.T) {
	configPath := writeProject(t, map[string]string{
		"mappers/orphan.xml": `<mapper namespace="orphan">
  <select id="lookup" resultMap="ghost.map">select 1</select>
</mapper>`,
	})

	out, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), configPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnresolved, resp.Error.Code)
}

func TestCompileCommand_RequiresConfigArg(t *testing.T) {
	_, err := execute(NewCompileCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
}

func TestSummarize(t *testing.T) {
	configPath := writeProject(t, nil)
	res, errs := LoadMappers(configPath, LoadModeFailFast, (&RootOptions{}).Logger())
	require.Empty(t, errs)

	got := summarize(res.Loader.Catalog())
	require.Len(t, got, 2)
	assert.Equal(t, NamespaceSummary{Name: "account", ResultMaps: 1, Statements: 2, Cache: "account"}, got[0])
}
