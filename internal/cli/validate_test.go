package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand_Valid(t *testing.T) {
	configPath := writeProject(t, nil)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All mappers valid (2 file(s), 3 statement(s))")
}

func TestValidateCommand_ValidJSON(t *testing.T) {
	configPath := writeProject(t, nil)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), configPath)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Files)
	assert.Equal(t, 3, resp.Data.Statements)
}

func TestValidateCommand_CollectsAllErrors(t *testing.T) {
	configPath := writeProject(t, map[string]string{
		"mappers/broken.xml": `<mapper namespace="broken"><select id="x">`,
		"mappers/orphan.xml": `<mapper namespace="orphan">
  <select id="lookup" resultMap="ghost.map">select 1</select>
</mapper>`,
	})

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), configPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, 4, resp.Data.Files)

	codes := make([]string, len(resp.Data.Errors))
	for i, e := range resp.Data.Errors {
		codes[i] = e.Code
		if e.Code == ErrCodeUnresolved {
			require.NotNil(t, e.Location)
			assert.Equal(t, "orphan", e.Location.Namespace)
			assert.Equal(t, "lookup", e.Location.ID)
			assert.Equal(t, "orphan.xml", filepath.Base(e.Location.Resource))
		}
		if e.Code == ErrCodeMarkup {
			require.NotNil(t, e.Location)
			assert.Equal(t, "broken.xml", filepath.Base(e.Location.Resource))
		}
	}
	assert.Contains(t, codes, ErrCodeMarkup)
	assert.Contains(t, codes, ErrCodeUnresolved)
	require.NotNil(t, resp.Error)
	assert.Equal(t, resp.Data.Errors[0].Code, resp.Error.Code)
}

func TestValidateCommand_TextFailure(t *testing.T) {
	configPath := writeProject(t, map[string]string{
		"mappers/broken.xml": `<mapper namespace="broken"><select id="x">`,
	})

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), configPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, ErrCodeMarkup+":")
}

func TestValidateCommand_ConfigNotFound(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "app.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}

func TestValidateCommand_BadConfig(t *testing.T) {
	configPath := writeProject(t, map[string]string{
		"app.cue": "settings: lazyLoadingEnabled: \"yes\"\nmappers: [\"mappers/*.xml\"]\n",
	})

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), configPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E20")
}
