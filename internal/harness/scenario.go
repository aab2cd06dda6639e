package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlmapper/internal/builder"
	"github.com/roach88/sqlmapper/internal/dynsql"
	"github.com/roach88/sqlmapper/internal/ir"
)

// Scenario defines a mapper test scenario: a set of mapper documents loaded
// together, and cases rendering their statements.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Settings Settings `yaml:"settings,omitempty"`

	// Mappers are loaded in order. Each is either inline content or a path
	// relative to the scenario file.
	Mappers []MapperDoc `yaml:"mappers"`

	Cases []Case `yaml:"cases,omitempty"`

	// Assertions validate the loaded catalog.
	// Supported types: statement_exists, result_map_properties,
	// unresolved_count, snapshot_statements
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// LoadError is text the joined load error must contain. When empty, any
	// load error fails the scenario.
	LoadError string `yaml:"load_error,omitempty"`

	// LoadID is an optional fixed load id for deterministic output.
	// If empty, defaults to "test-load-default".
	LoadID string `yaml:"load_id,omitempty"`
}

// Settings mirrors builder.Settings in scenario form.
type Settings struct {
	DatabaseID       string            `yaml:"database_id,omitempty"`
	LazyLoading      bool              `yaml:"lazy_loading,omitempty"`
	UseGeneratedKeys bool              `yaml:"use_generated_keys,omitempty"`
	AutoMapping      string            `yaml:"auto_mapping,omitempty"`
	Placeholder      string            `yaml:"placeholder,omitempty"`
	Variables        map[string]string `yaml:"variables,omitempty"`
}

// MapperDoc is one mapper document of a scenario.
type MapperDoc struct {
	// Resource names the document in errors. Defaults to Path.
	Resource string `yaml:"resource,omitempty"`
	Path     string `yaml:"path,omitempty"`
	Content  string `yaml:"content,omitempty"`
}

// Case renders one statement with a parameter object.
type Case struct {
	Name string `yaml:"name"`

	// Statement is the namespace-qualified statement id.
	Statement string `yaml:"statement"`

	// Params is the parameter object. Nil renders with a nil parameter.
	Params map[string]any `yaml:"params,omitempty"`

	// Expect specifies the expected SQL and bindings.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Error is text the render error must contain. Mutually exclusive with
	// Expect.
	Error string `yaml:"error,omitempty"`
}

// ExpectClause specifies expected render output.
type ExpectClause struct {
	// SQL is compared after collapsing runs of whitespace.
	SQL string `yaml:"sql"`

	// Bindings are the expected values in placeholder order. If nil, only
	// the SQL is validated.
	Bindings []any `yaml:"bindings,omitempty"`
}

// Assertion validates the loaded catalog.
type Assertion struct {
	// Type specifies the assertion type:
	// - "statement_exists": Statement is in the catalog
	// - "result_map_properties": ResultMap maps exactly Properties, in order
	// - "unresolved_count": Count definitions stayed unresolved
	// - "snapshot_statements": a stored snapshot holds Count statements of Namespace
	Type string `yaml:"type"`

	Statement  string   `yaml:"statement,omitempty"`
	ResultMap  string   `yaml:"result_map,omitempty"`
	Properties []string `yaml:"properties,omitempty"`
	Namespace  string   `yaml:"namespace,omitempty"`
	Count      int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStatementExists     = "statement_exists"
	AssertResultMapProperties = "result_map_properties"
	AssertUnresolvedCount     = "unresolved_count"
	AssertSnapshotStatements  = "snapshot_statements"
)

// LoadScenario reads and parses a scenario YAML file.
// Mapper paths are resolved relative to the scenario file. Returns an error
// if the file doesn't exist, is malformed, contains unknown fields (typos),
// or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving mapper paths against
// basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict field validation catches typos like "case:" vs "cases:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve mapper paths BEFORE validation so existence checks see them.
	for i, m := range scenario.Mappers {
		if m.Path != "" && !filepath.IsAbs(m.Path) && basePath != "" {
			scenario.Mappers[i].Path = filepath.Join(basePath, m.Path)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file of dir, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// BuilderSettings converts the scenario settings. validateScenario has
// already checked the enumerated values.
func (s Settings) BuilderSettings() builder.Settings {
	out := builder.DefaultSettings()
	out.DatabaseID = s.DatabaseID
	out.LazyLoadingEnabled = s.LazyLoading
	out.UseGeneratedKeys = s.UseGeneratedKeys
	if s.AutoMapping != "" {
		out.AutoMapping = ir.AutoMapping(s.AutoMapping)
	}
	if s.Placeholder != "" {
		if style, err := dynsql.ParsePlaceholderStyle(s.Placeholder); err == nil {
			out.Placeholder = style
		}
	}
	if len(s.Variables) > 0 {
		out.Variables = s.Variables
	}
	return out
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Mappers) == 0 {
		return fmt.Errorf("mappers list is required and must be non-empty")
	}

	if len(s.Cases) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("at least one case or assertion is required")
	}

	switch ir.AutoMapping(s.Settings.AutoMapping) {
	case "", ir.AutoMappingNone, ir.AutoMappingPartial, ir.AutoMappingFull:
	default:
		return fmt.Errorf("settings.auto_mapping: unknown value %q", s.Settings.AutoMapping)
	}
	if s.Settings.Placeholder != "" {
		if _, err := dynsql.ParsePlaceholderStyle(s.Settings.Placeholder); err != nil {
			return fmt.Errorf("settings.placeholder: %w", err)
		}
	}

	for i, m := range s.Mappers {
		switch {
		case m.Path == "" && m.Content == "":
			return fmt.Errorf("mappers[%d]: path or content is required", i)
		case m.Path != "" && m.Content != "":
			return fmt.Errorf("mappers[%d]: path and content are mutually exclusive", i)
		case m.Content != "" && m.Resource == "":
			return fmt.Errorf("mappers[%d]: resource is required for inline content", i)
		}
		if m.Path != "" {
			if _, err := os.Stat(m.Path); os.IsNotExist(err) {
				return fmt.Errorf("mapper file not found: %s", m.Path)
			}
		}
	}

	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if c.Statement == "" {
			return fmt.Errorf("cases[%d]: statement is required", i)
		}
		if c.Expect == nil && c.Error == "" {
			return fmt.Errorf("cases[%d]: expect or error is required", i)
		}
		if c.Expect != nil && c.Error != "" {
			return fmt.Errorf("cases[%d]: expect and error are mutually exclusive", i)
		}
		if c.Expect != nil && c.Expect.SQL == "" {
			return fmt.Errorf("cases[%d].expect: sql is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStatementExists:
		if a.Statement == "" {
			return fmt.Errorf("assertions[%d]: statement is required for statement_exists", index)
		}
	case AssertResultMapProperties:
		if a.ResultMap == "" {
			return fmt.Errorf("assertions[%d]: result_map is required for result_map_properties", index)
		}
		if len(a.Properties) == 0 {
			return fmt.Errorf("assertions[%d]: properties list is required for result_map_properties", index)
		}
	case AssertUnresolvedCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for unresolved_count", index)
		}
	case AssertSnapshotStatements:
		if a.Namespace == "" {
			return fmt.Errorf("assertions[%d]: namespace is required for snapshot_statements", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for snapshot_statements", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
