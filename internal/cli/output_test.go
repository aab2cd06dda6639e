package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]int{"statements": 3})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"statements": float64(3)}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"resource": "mappers/author.xml"}
	err := formatter.Error(ErrCodeMarkup, "unexpected EOF", details)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMarkup, resp.Error.Code)
	assert.Equal(t, "unexpected EOF", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			err := formatter.Error(ErrCodeStatement, "statement author.find not found", []string{"author.findAll"})
			require.NoError(t, err)
			assert.Contains(t, buf.String(), "Error [E106]: statement author.find not found")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: [author.findAll]")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		errBuf  bool
	}{
		{"disabled", false, false},
		{"to writer", true, false},
		{"to err writer", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, Verbose: tt.verbose}
			if tt.errBuf {
				formatter.ErrWriter = errOut
			}

			formatter.VerboseLog("Loaded %d mapper file(s)", 2)

			switch {
			case !tt.verbose:
				assert.Empty(t, out.String())
				assert.Empty(t, errOut.String())
			case tt.errBuf:
				assert.Empty(t, out.String())
				assert.Equal(t, "Loaded 2 mapper file(s)\n", errOut.String())
			default:
				assert.Equal(t, "Loaded 2 mapper file(s)\n", out.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "missing config")))

	wrapped := fmt.Errorf("run: %w", WrapExitError(ExitFailure, "render failed", errors.New("boom")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "run: render failed: boom", wrapped.Error())
}

func TestLocation_String(t *testing.T) {
	tests := []struct {
		loc  Location
		want string
	}{
		{Location{Resource: "author.xml", Line: 12, Namespace: "author", ID: "findById"}, "author.xml:12 (author.findById)"},
		{Location{Resource: "author.xml", Line: 3}, "author.xml:3"},
		{Location{Namespace: "blog"}, "blog"},
		{Location{Resource: "app.cue"}, "app.cue"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.loc.String())
		})
	}
}

func TestOutputFormatter_Report(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Report(CLIError{
		Code:     ErrCodeBuilder,
		Message:  "unknown element <loop>",
		Location: &Location{Resource: "author.xml", Line: 7, Namespace: "author", ID: "search"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Error [E102]: unknown element <loop>\n  at author.xml:7 (author.search)\n", buf.String())
}

func TestOutputFormatter_Failure(t *testing.T) {
	errs := []CLIError{
		{Code: ErrCodeMarkup, Message: "unexpected EOF", Location: &Location{Resource: "broken.xml"}},
		{Code: ErrCodeUnresolved, Message: "orphan.lookup: resultMap ghost.map never defined"},
	}

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, formatter.Failure("Compilation failed", nil, errs))
		assert.Equal(t, "✗ Compilation failed\n\n"+
			"  E101: unexpected EOF\n    at broken.xml\n\n"+
			"  E105: orphan.lookup: resultMap ghost.map never defined\n\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, formatter.Failure("Compilation failed", map[string]int{"files": 2}, errs))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeMarkup, resp.Error.Code)
		assert.Equal(t, "broken.xml", resp.Error.Location.Resource)
		assert.Len(t, resp.Errors, 2)
		assert.Equal(t, map[string]any{"files": float64(2)}, resp.Data)
	})
}
