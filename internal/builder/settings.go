package builder

import (
	"github.com/roach88/sqlmapper/internal/dynsql"
	"github.com/roach88/sqlmapper/internal/ir"
)

// Settings are the load-wide options that affect how definitions compile.
type Settings struct {
	// DatabaseID selects databaseId variants of fragments and statements.
	DatabaseID string

	// LazyLoadingEnabled is the default fetchType of nested selects.
	LazyLoadingEnabled bool

	// UseGeneratedKeys is the default useGeneratedKeys of insert statements.
	UseGeneratedKeys bool

	AutoMapping ir.AutoMapping
	Placeholder dynsql.PlaceholderStyle

	// Variables are substituted into ${key} references while parsing.
	Variables map[string]string
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		AutoMapping: ir.AutoMappingPartial,
		Placeholder: dynsql.Question,
	}
}
