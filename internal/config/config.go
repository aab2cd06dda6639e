// Package config loads the CUE file that lists mapper documents and the
// settings they are compiled with.
//
//	settings: {
//		databaseId:          "postgres"
//		lazyLoadingEnabled:  false
//		autoMappingBehavior: "PARTIAL"
//		placeholder:         "question"
//	}
//	properties: schema: "app"
//	typeAliases: Account: "map"
//	mappers: ["mappers/*.xml"]
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/sqlmapper/internal/builder"
	"github.com/roach88/sqlmapper/internal/dynsql"
	"github.com/roach88/sqlmapper/internal/ir"
	"github.com/roach88/sqlmapper/internal/types"
)

//go:embed schema.cue
var schemaSource string

var upper = cases.Upper(language.Und)

// Config is a parsed configuration file.
type Config struct {
	// Dir is the directory mapper patterns are relative to.
	Dir string

	DatabaseID          string
	LazyLoadingEnabled  bool
	UseGeneratedKeys    bool
	AutoMappingBehavior string
	Placeholder         string

	Properties  map[string]string
	TypeAliases map[string]string
	Mappers     []string

	data cue.Value
	pos  map[string]token.Pos
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Code: ErrCodeRead, Message: err.Error()}
	}
	cfg, err := Parse(path, src)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse checks src against the configuration schema and extracts its
// fields. Values are not validated beyond their CUE types; see Validate.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, errors.Join(fromCUE(ErrCodeSyntax, err)...)
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, errors.Join(fromCUE(ErrCodeSyntax, err)...)
	}

	cfg := &Config{
		Dir:         ".",
		Properties:  make(map[string]string),
		TypeAliases: make(map[string]string),
		data:        data,
		pos:         make(map[string]token.Pos),
	}

	var err error
	if cfg.DatabaseID, err = cfg.stringField(v, "settings.databaseId"); err != nil {
		return nil, err
	}
	if cfg.AutoMappingBehavior, err = cfg.stringField(v, "settings.autoMappingBehavior"); err != nil {
		return nil, err
	}
	if cfg.Placeholder, err = cfg.stringField(v, "settings.placeholder"); err != nil {
		return nil, err
	}
	if cfg.LazyLoadingEnabled, err = cfg.boolField(v, "settings.lazyLoadingEnabled"); err != nil {
		return nil, err
	}
	if cfg.UseGeneratedKeys, err = cfg.boolField(v, "settings.useGeneratedKeys"); err != nil {
		return nil, err
	}
	if err := cfg.stringMap(v, "properties", cfg.Properties); err != nil {
		return nil, err
	}
	if err := cfg.stringMap(v, "typeAliases", cfg.TypeAliases); err != nil {
		return nil, err
	}

	cfg.record("mappers")
	list, err := v.LookupPath(cue.ParsePath("mappers")).List()
	if err != nil {
		return nil, errors.Join(fromCUE(ErrCodeSyntax, err)...)
	}
	for list.Next() {
		s, err := list.Value().String()
		if err != nil {
			return nil, errors.Join(fromCUE(ErrCodeSyntax, err)...)
		}
		cfg.record(fmt.Sprintf("mappers[%d]", len(cfg.Mappers)))
		cfg.Mappers = append(cfg.Mappers, s)
	}
	return cfg, nil
}

func (c *Config) stringField(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", nil
	}
	c.record(path)
	s, err := f.String()
	if err != nil {
		return "", errors.Join(fromCUE(ErrCodeSyntax, err)...)
	}
	return s, nil
}

func (c *Config) boolField(v cue.Value, path string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return false, nil
	}
	c.record(path)
	b, err := f.Bool()
	if err != nil {
		return false, errors.Join(fromCUE(ErrCodeSyntax, err)...)
	}
	return b, nil
}

func (c *Config) stringMap(v cue.Value, path string, into map[string]string) error {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil
	}
	iter, err := f.Fields()
	if err != nil {
		return errors.Join(fromCUE(ErrCodeSyntax, err)...)
	}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return errors.Join(fromCUE(ErrCodeSyntax, err)...)
		}
		into[iter.Label()] = s
		c.record(path + "." + iter.Label())
	}
	return nil
}

// record remembers where path is written in the source file. Positions of
// the unified value may point into the schema instead.
func (c *Config) record(path string) {
	if f := c.data.LookupPath(cue.ParsePath(path)); f.Exists() {
		c.pos[path] = f.Pos()
	}
}

func (c *Config) errorf(code, field, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Field: field, Message: fmt.Sprintf(format, args...), Pos: c.pos[field]}
}

// Validate checks every value of the configuration against reg and the
// file system, collecting all problems.
func (c *Config) Validate(reg *types.Registry) []error {
	var errs []error
	if _, err := c.autoMapping(); err != nil {
		errs = append(errs, err)
	}
	if _, err := dynsql.ParsePlaceholderStyle(c.Placeholder); err != nil {
		errs = append(errs, c.errorf(ErrCodeSetting, "settings.placeholder", "%v", err))
	}
	if _, err := c.aliasTypes(reg); err != nil {
		errs = append(errs, err...)
	}
	if _, err := c.MapperFiles(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (c *Config) autoMapping() (ir.AutoMapping, error) {
	if c.AutoMappingBehavior == "" {
		return ir.AutoMappingPartial, nil
	}
	switch am := ir.AutoMapping(upper.String(c.AutoMappingBehavior)); am {
	case ir.AutoMappingNone, ir.AutoMappingPartial, ir.AutoMappingFull:
		return am, nil
	}
	return "", c.errorf(ErrCodeSetting, "settings.autoMappingBehavior", "unknown behavior %q: want NONE, PARTIAL or FULL", c.AutoMappingBehavior)
}

// aliasTypes resolves every type alias. A target may name a registered
// type or another alias of the same file.
func (c *Config) aliasTypes(reg *types.Registry) (map[string]reflect.Type, []error) {
	resolved := make(map[string]reflect.Type, len(c.TypeAliases))
	pending := make([]string, 0, len(c.TypeAliases))
	for alias := range c.TypeAliases {
		pending = append(pending, alias)
	}
	sort.Strings(pending)

	for progress := true; progress && len(pending) > 0; {
		progress = false
		var next []string
		for _, alias := range pending {
			target := c.TypeAliases[alias]
			if t, ok := resolved[target]; ok {
				resolved[alias] = t
				progress = true
				continue
			}
			if _, local := c.TypeAliases[target]; !local || target == alias {
				if t, err := reg.Resolve(target); err == nil {
					resolved[alias] = t
					progress = true
					continue
				}
			}
			next = append(next, alias)
		}
		pending = next
	}

	var errs []error
	for _, alias := range pending {
		field := "typeAliases." + alias
		errs = append(errs, c.errorf(ErrCodeTypeAlias, field, "unknown type %q", c.TypeAliases[alias]))
	}
	return resolved, errs
}

// MapperFiles expands the mapper patterns relative to Dir. Files keep
// pattern order, sorted within a pattern and listed once.
func (c *Config) MapperFiles() ([]string, error) {
	if len(c.Mappers) == 0 {
		return nil, c.errorf(ErrCodeNoMappers, "mappers", "no mapper files configured")
	}
	seen := make(map[string]bool)
	var files []string
	for i, pattern := range c.Mappers {
		field := fmt.Sprintf("mappers[%d]", i)
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(c.Dir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, c.errorf(ErrCodeMapper, field, "invalid pattern %q: %v", c.Mappers[i], err)
		}
		if len(matches) == 0 {
			return nil, c.errorf(ErrCodeMapper, field, "pattern %q matches no files", c.Mappers[i])
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// Apply registers the type aliases with reg and returns the compile
// settings. It fails with the joined Validate errors when any setting is
// invalid.
func (c *Config) Apply(reg *types.Registry) (builder.Settings, error) {
	settings := builder.DefaultSettings()

	am, err := c.autoMapping()
	if err != nil {
		return settings, err
	}
	style, err := dynsql.ParsePlaceholderStyle(c.Placeholder)
	if err != nil {
		return settings, c.errorf(ErrCodeSetting, "settings.placeholder", "%v", err)
	}
	aliases, errs := c.aliasTypes(reg)
	if len(errs) > 0 {
		return settings, errors.Join(errs...)
	}
	names := make([]string, 0, len(aliases))
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	for _, alias := range names {
		if err := reg.Register(alias, aliases[alias]); err != nil {
			return settings, c.errorf(ErrCodeTypeAlias, "typeAliases."+alias, "%v", err)
		}
	}

	settings.DatabaseID = c.DatabaseID
	settings.LazyLoadingEnabled = c.LazyLoadingEnabled
	settings.UseGeneratedKeys = c.UseGeneratedKeys
	settings.AutoMapping = am
	settings.Placeholder = style
	if len(c.Properties) > 0 {
		settings.Variables = make(map[string]string, len(c.Properties))
		for k, v := range c.Properties {
			settings.Variables[k] = v
		}
	}
	return settings, nil
}
