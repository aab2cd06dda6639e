package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/config"
	"github.com/roach88/sqlmapper/internal/resolve"
)

const brokenMapper = `<mapper namespace="broken"><select id="x">`

func TestLoadMappers_Success(t *testing.T) {
	configPath := writeProject(t, nil)

	res, errs := LoadMappers(configPath, LoadModeFailFast, (&RootOptions{}).Logger())
	require.Empty(t, errs)
	require.NotNil(t, res)
	assert.Len(t, res.Files, 2)
	assert.Equal(t, []string{"account", "ledger"}, res.Loader.Catalog().Namespaces())
	assert.Equal(t, "sqlite", res.Loader.Settings().DatabaseID)
}

func TestLoadMappers_Modes(t *testing.T) {
	configPath := writeProject(t, map[string]string{
		"mappers/broken.xml": brokenMapper,
		"mappers/orphan.xml": `<mapper namespace="orphan">
  <select id="lookup" resultMap="ghost.map">select 1</select>
</mapper>`,
	})

	t.Run("fail fast", func(t *testing.T) {
		res, errs := LoadMappers(configPath, LoadModeFailFast, (&RootOptions{}).Logger())
		require.NotNil(t, res)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrCodeMarkup, classifyError(errs[0]))
	})

	t.Run("collect all", func(t *testing.T) {
		res, errs := LoadMappers(configPath, LoadModeCollectAll, (&RootOptions{}).Logger())
		require.NotNil(t, res)
		require.Len(t, errs, 2)
		assert.Equal(t, ErrCodeMarkup, classifyError(errs[0]))
		assert.Equal(t, ErrCodeUnresolved, classifyError(errs[1]))
		// Documents after the rejected one still load.
		_, ok := res.Loader.Catalog().Namespace("ledger")
		assert.True(t, ok)
	})
}

func TestLoadMappers_ConfigErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		res, errs := LoadMappers(filepath.Join(t.TempDir(), "app.cue"), LoadModeFailFast, (&RootOptions{}).Logger())
		assert.Nil(t, res)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrCodeNotFound, classifyError(errs[0]))
	})

	t.Run("unknown alias target", func(t *testing.T) {
		configPath := writeProject(t, map[string]string{
			"app.cue": "typeAliases: Ghost: \"Nope\"\nmappers: [\"mappers/*.xml\"]\n",
		})
		res, errs := LoadMappers(configPath, LoadModeCollectAll, (&RootOptions{}).Logger())
		assert.Nil(t, res)
		require.NotEmpty(t, errs)
		assert.Equal(t, config.ErrCodeTypeAlias, classifyError(errs[0]))
	})
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"load", &LoadError{Code: ErrCodeNotFound, Message: "gone"}, ErrCodeNotFound},
		{"duplicate", &catalog.DuplicateDefinitionError{Kind: catalog.KindCacheRef, Key: "a"}, ErrCodeDuplicate},
		{"unresolved wrapped", fmt.Errorf("finish: %w", &resolve.UnresolvedReferenceError{Namespace: "a"}), ErrCodeUnresolved},
		{"generic", errors.New("boom"), ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestSplitErrors(t *testing.T) {
	a, b, c := errors.New("a"), errors.New("b"), errors.New("c")
	got := splitErrors(errors.Join(a, errors.Join(b, c)))
	assert.Equal(t, []error{a, b, c}, got)

	assert.Equal(t, []error{a}, splitErrors(a))
}

func TestCLIErrors(t *testing.T) {
	got := CLIErrors([]error{&LoadError{Code: ErrCodeNotFound, Message: "config file not found: app.cue"}})
	assert.Equal(t, []CLIError{{Code: ErrCodeNotFound, Message: "config file not found: app.cue"}}, got)
}
