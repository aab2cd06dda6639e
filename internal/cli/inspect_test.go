package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlmapper/internal/store"
)

// compiledDB compiles the test project into a fresh snapshot database.
func compiledDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "mappers.db")
	_, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), writeProject(t, nil), "--db", dbPath)
	require.NoError(t, err)
	return dbPath
}

func TestInspectCommand_Text(t *testing.T) {
	dbPath := compiledDB(t)

	out, err := execute(NewInspectCommand(&RootOptions{Format: "text"}), dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "(seq 1, load ")
	assert.Contains(t, out, "Caches:\n  account: LRU, size 128\n  ledger → account\n")
	assert.Contains(t, out, "account.accountMap: map[string]interface {}\n")
	assert.Contains(t, out, "account.findById (select, result maps account.accountMap)")
	assert.Contains(t, out, "    select id, name from account where id = ?")
	assert.Contains(t, out, "account.search (select, dynamic, result maps account.accountMap)")
	assert.Contains(t, out, "ledger.entries (select")
}

func TestInspectCommand_Namespace(t *testing.T) {
	dbPath := compiledDB(t)

	out, err := execute(NewInspectCommand(&RootOptions{Format: "json"}), dbPath, "--namespace", "ledger")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Statements, 1)
	assert.Equal(t, "entries", resp.Data.Statements[0].ID)
	require.Len(t, resp.Data.Caches, 1)
	assert.Equal(t, "ledger", resp.Data.Caches[0].Namespace)
	assert.Equal(t, "account", resp.Data.Caches[0].Owner)
	for _, rm := range resp.Data.ResultMaps {
		assert.Equal(t, "ledger", rm.Namespace)
	}
}

func TestInspectCommand_List(t *testing.T) {
	dbPath := compiledDB(t)

	out, err := execute(NewInspectCommand(&RootOptions{Format: "json"}), dbPath, "--list")
	require.NoError(t, err)

	var resp struct {
		Data []store.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(1), resp.Data[0].Seq)
	assert.Equal(t, 3, resp.Data[0].Statements)
}

func TestInspectCommand_SnapshotByID(t *testing.T) {
	dbPath := compiledDB(t)

	out, err := execute(NewInspectCommand(&RootOptions{Format: "json"}), dbPath, "--list")
	require.NoError(t, err)
	var list struct {
		Data []store.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Data, 1)

	out, err = execute(NewInspectCommand(&RootOptions{Format: "json"}), dbPath, "--snapshot", list.Data[0].ID)
	require.NoError(t, err)
	var resp struct {
		Data InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, list.Data[0].ID, resp.Data.Snapshot.ID)
	assert.Len(t, resp.Data.Statements, 3)

	out, err = execute(NewInspectCommand(&RootOptions{Format: "text"}), dbPath, "--snapshot", "nope")
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeSnapshotEmpty)
}

func TestInspectCommand_EmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(NewInspectCommand(&RootOptions{Format: "text"}), dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeSnapshotEmpty+"]: no snapshot found")

	out, err = execute(NewInspectCommand(&RootOptions{Format: "text"}), dbPath, "--list")
	require.NoError(t, err)
	assert.Equal(t, "No snapshots stored.\n", out)
}

func TestInspectCommand_MissingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	out, err := execute(NewInspectCommand(&RootOptions{Format: "text"}), dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)

	_, statErr := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(statErr), "inspect must not create the database")
}

func TestInspectCommand_History(t *testing.T) {
	configPath := writeProject(t, nil)
	dbPath := filepath.Join(t.TempDir(), "mappers.db")

	_, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), configPath, "--db", dbPath)
	require.NoError(t, err)

	edited := strings.Replace(accountMapper, "where id = #{id}", "where id = #{id} limit 1", 1)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(configPath), "mappers", "account.xml"), []byte(edited), 0644))
	_, err = execute(NewCompileCommand(&RootOptions{Format: "text"}), configPath, "--db", dbPath)
	require.NoError(t, err)

	out, err := execute(NewInspectCommand(&RootOptions{Format: "json"}), dbPath, "--history", "account.findById")
	require.NoError(t, err)
	var resp struct {
		Data []store.StatementVersion `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.Data[0].Changed)
	assert.True(t, resp.Data[1].Changed)

	out, err = execute(NewInspectCommand(&RootOptions{Format: "text"}), dbPath, "--history", "ledger.entries")
	require.NoError(t, err)
	assert.Contains(t, out, "History of ledger.entries:")
	assert.Contains(t, out, "changed\n")
	assert.Contains(t, out, "unchanged\n")

	out, err = execute(NewInspectCommand(&RootOptions{Format: "text"}), dbPath, "--history", "account.nope")
	require.Error(t, err)
	assert.Contains(t, out, "Error ["+ErrCodeStatement+"]: statement account.nope not in any snapshot")

	_, err = execute(NewInspectCommand(&RootOptions{Format: "text"}), dbPath, "--history", "findById")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
