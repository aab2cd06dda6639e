package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/sqlmapper/internal/builder"
	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/config"
	"github.com/roach88/sqlmapper/internal/dynsql"
	"github.com/roach88/sqlmapper/internal/expr"
	"github.com/roach88/sqlmapper/internal/markup"
	"github.com/roach88/sqlmapper/internal/resolve"
	"github.com/roach88/sqlmapper/internal/types"
)

// LoadMode controls error handling behavior during loading.
type LoadMode int

const (
	// LoadModeFailFast stops at the first rejected mapper document.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll loads every document and reports all errors.
	LoadModeCollectAll
)

// LoadResult holds a loaded configuration and its finished loader.
type LoadResult struct {
	Config *config.Config
	Loader *builder.Loader
	Files  []string
}

// LoadError represents an error that occurred before any mapper was loaded.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return e.Message
}

// Error codes for CLI operations. Configuration errors carry their own E2xx
// codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeMarkup        = "E101" // Malformed mapper XML
	ErrCodeBuilder       = "E102" // Invalid mapper definition
	ErrCodeExpression    = "E103" // Invalid or failing expression
	ErrCodeDuplicate     = "E104" // Conflicting duplicate definition
	ErrCodeUnresolved    = "E105" // Reference never defined
	ErrCodeStatement     = "E106" // Statement not in catalog
	ErrCodeParams        = "E107" // Parameter file unreadable
	ErrCodeStore         = "E108" // Snapshot store failure
	ErrCodeTestsFailed   = "E109" // One or more scenarios failed
	ErrCodeWatchFailed   = "E110" // File watcher failure
	ErrCodeSnapshotEmpty = "E111" // Store holds no snapshot
)

// LoadMappers reads the configuration at configPath, validates it and loads
// every mapper file it names.
//
// A nil LoadResult means nothing could be loaded; the errors explain why.
// With a non-nil result the errors are document and resolution errors.
func LoadMappers(configPath string, mode LoadMode, logger *slog.Logger) (*LoadResult, []error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", configPath)}}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, splitErrors(err)
	}

	reg := types.NewRegistry()
	if errs := cfg.Validate(reg); len(errs) > 0 {
		return nil, errs
	}
	settings, err := cfg.Apply(reg)
	if err != nil {
		return nil, splitErrors(err)
	}
	files, err := cfg.MapperFiles()
	if err != nil {
		return nil, splitErrors(err)
	}

	loader := builder.NewLoader(settings, reg, builder.WithLogger(logger))
	result := &LoadResult{Config: cfg, Loader: loader, Files: files}

	var errs []error
	for _, f := range files {
		logger.Debug("loading mapper", "file", f)
		if err := loader.LoadFile(f); err != nil {
			errs = append(errs, err)
			if mode == LoadModeFailFast {
				return result, errs
			}
		}
	}

	if err := loader.Finish(); err != nil {
		errs = append(errs, splitErrors(err)...)
	}
	return result, errs
}

// splitErrors flattens joined errors.
func splitErrors(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, splitErrors(e)...)
		}
		return out
	}
	return []error{err}
}

// classifyError maps an error onto its CLI error code.
func classifyError(err error) string {
	var (
		loadErr   *LoadError
		cfgErr    *config.ConfigError
		parseErr  *markup.ParseError
		exprErr   *expr.ExpressionError
		dupErr    *catalog.DuplicateDefinitionError
		unresErr  *resolve.UnresolvedReferenceError
		dynsqlErr *dynsql.BuilderError
		buildErr  *builder.BuilderError
	)
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Code
	case errors.As(err, &cfgErr):
		return cfgErr.Code
	case errors.As(err, &parseErr):
		return ErrCodeMarkup
	case errors.As(err, &exprErr):
		return ErrCodeExpression
	case errors.As(err, &dupErr):
		return ErrCodeDuplicate
	case errors.As(err, &unresErr):
		return ErrCodeUnresolved
	case errors.As(err, &dynsqlErr), errors.As(err, &buildErr):
		return ErrCodeBuilder
	}
	return ErrCodeGeneric
}

// CLIErrors converts errors to their CLI form.
func CLIErrors(errs []error) []CLIError {
	out := make([]CLIError, len(errs))
	for i, err := range errs {
		out[i] = CLIError{Code: classifyError(err), Message: err.Error(), Location: locate(err)}
	}
	return out
}

// locate extracts where in the mappers or config err was found, or nil.
func locate(err error) *Location {
	var (
		buildErr *builder.BuilderError
		unresErr *resolve.UnresolvedReferenceError
		parseErr *markup.ParseError
		cfgErr   *config.ConfigError
	)
	switch {
	case errors.As(err, &buildErr):
		return &Location{Resource: buildErr.Resource, Line: buildErr.Line, Namespace: buildErr.Namespace, ID: buildErr.ID}
	case errors.As(err, &unresErr):
		return &Location{Resource: unresErr.Resource, Namespace: unresErr.Namespace, ID: unresErr.ID}
	case errors.As(err, &parseErr):
		return &Location{Resource: parseErr.Resource, Line: parseErr.Line}
	case errors.As(err, &cfgErr) && cfgErr.Pos.IsValid():
		return &Location{Resource: cfgErr.Pos.Filename(), Line: cfgErr.Pos.Line()}
	}
	return nil
}
