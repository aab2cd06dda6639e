package ir

import (
	"reflect"
	"sort"

	"github.com/roach88/sqlmapper/internal/markup"
	"github.com/roach88/sqlmapper/internal/types"
)

// StatementKind is the element a statement was declared with.
type StatementKind string

const (
	KindSelect StatementKind = "select"
	KindInsert StatementKind = "insert"
	KindUpdate StatementKind = "update"
	KindDelete StatementKind = "delete"
)

// AutoMapping is the global automatic column-to-property policy.
type AutoMapping string

const (
	AutoMappingNone    AutoMapping = "NONE"
	AutoMappingPartial AutoMapping = "PARTIAL"
	AutoMappingFull    AutoMapping = "FULL"
)

// EntryKind discriminates result map entries.
type EntryKind string

const (
	EntryConstructorArg    EntryKind = "constructor_arg"
	EntryIDColumn          EntryKind = "id"
	EntryPropertyColumn    EntryKind = "property"
	EntryNestedAssociation EntryKind = "association"
	EntryNestedCollection  EntryKind = "collection"
)

// ResultEntry maps one column (or nested mapping) onto a property or
// constructor argument.
type ResultEntry struct {
	Kind EntryKind

	// ID marks identifying columns: id elements and idArg constructor args.
	ID bool

	Column          string
	Property        string
	JavaType        string
	JDBCType        string
	TypeHandler     string
	OfType          string
	NestedResultMap QualifiedID
	NestedSelect    QualifiedID
	ColumnPrefix    string
	NotNullColumns  []string
	ForeignColumn   string
	ResultSet       string
	Lazy            bool
}

// Nested reports whether the entry maps through another result map.
func (e ResultEntry) Nested() bool {
	return !e.NestedResultMap.IsZero()
}

func (e ResultEntry) canonical() map[string]any {
	obj := map[string]any{
		"kind": string(e.Kind),
		"id":   e.ID,
		"lazy": e.Lazy,
	}
	put := func(k, v string) {
		if v != "" {
			obj[k] = v
		}
	}
	put("column", e.Column)
	put("property", e.Property)
	put("java_type", e.JavaType)
	put("jdbc_type", e.JDBCType)
	put("type_handler", e.TypeHandler)
	put("of_type", e.OfType)
	put("column_prefix", e.ColumnPrefix)
	put("foreign_column", e.ForeignColumn)
	put("result_set", e.ResultSet)
	if !e.NestedResultMap.IsZero() {
		obj["nested_result_map"] = e.NestedResultMap.String()
	}
	if !e.NestedSelect.IsZero() {
		obj["nested_select"] = e.NestedSelect.String()
	}
	if len(e.NotNullColumns) > 0 {
		obj["not_null_columns"] = e.NotNullColumns
	}
	return obj
}

// Discriminator selects an alternate result map by the value of a column.
type Discriminator struct {
	Column      string
	JavaType    string
	JDBCType    string
	TypeHandler string
	Cases       map[string]QualifiedID
}

// CaseValues returns the case values in sorted order.
func (d *Discriminator) CaseValues() []string {
	out := make([]string, 0, len(d.Cases))
	for v := range d.Cases {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (d *Discriminator) canonical() map[string]any {
	cases := make(map[string]any, len(d.Cases))
	for v, id := range d.Cases {
		cases[v] = id.String()
	}
	return map[string]any{
		"column":       d.Column,
		"java_type":    d.JavaType,
		"jdbc_type":    d.JDBCType,
		"type_handler": d.TypeHandler,
		"cases":        cases,
	}
}

// ResultMap describes how result columns map onto a target type.
type ResultMap struct {
	ID            QualifiedID
	Type          reflect.Type
	Extends       QualifiedID
	Discriminator *Discriminator
	Entries       []ResultEntry

	// AutoMapping is the per-map override; nil defers to the global policy.
	AutoMapping *bool

	Fingerprint string
}

// Canonical returns the map's identity-bearing content.
func (m *ResultMap) Canonical() map[string]any {
	entries := make([]any, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = e.canonical()
	}
	obj := map[string]any{
		"id":      m.ID.String(),
		"type":    types.Name(m.Type),
		"entries": entries,
	}
	if !m.Extends.IsZero() {
		obj["extends"] = m.Extends.String()
	}
	if m.Discriminator != nil {
		obj["discriminator"] = m.Discriminator.canonical()
	}
	if m.AutoMapping != nil {
		obj["auto_mapping"] = *m.AutoMapping
	}
	return obj
}

// EntriesOf returns the entries of the given kind in declaration order.
func (m *ResultMap) EntriesOf(kind EntryKind) []ResultEntry {
	var out []ResultEntry
	for _, e := range m.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// HasNestedResultMaps reports whether any entry or discriminator case maps
// through another result map.
func (m *ResultMap) HasNestedResultMaps() bool {
	for _, e := range m.Entries {
		if e.Nested() {
			return true
		}
	}
	return m.Discriminator != nil && len(m.Discriminator.Cases) > 0
}

// References returns every result map this map depends on: nested entries
// and discriminator cases. Duplicates are removed; order is stable.
func (m *ResultMap) References() []QualifiedID {
	seen := make(map[QualifiedID]bool)
	var out []QualifiedID
	add := func(id QualifiedID) {
		if id.IsZero() || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, e := range m.Entries {
		add(e.NestedResultMap)
	}
	if m.Discriminator != nil {
		for _, v := range m.Discriminator.CaseValues() {
			add(m.Discriminator.Cases[v])
		}
	}
	return out
}

// CacheDef is a namespace's second-level cache declaration. A cache-ref
// shares the referenced namespace's *CacheDef instead of copying it.
type CacheDef struct {
	Namespace      string
	Implementation string
	Eviction       string
	FlushInterval  int64
	Size           int
	ReadWrite      bool
	Blocking       bool
	Properties     map[string]string

	Fingerprint string
}

// Canonical returns the cache's identity-bearing content.
func (c *CacheDef) Canonical() map[string]any {
	props := c.Properties
	if props == nil {
		props = map[string]string{}
	}
	return map[string]any{
		"namespace":      c.Namespace,
		"implementation": c.Implementation,
		"eviction":       c.Eviction,
		"flush_interval": c.FlushInterval,
		"size":           c.Size,
		"read_write":     c.ReadWrite,
		"blocking":       c.Blocking,
		"properties":     props,
	}
}

// SQLFragment is a reusable <sql> body, expanded where it is included.
type SQLFragment struct {
	ID         QualifiedID
	DatabaseID string
	Body       markup.Node

	Fingerprint string
}

// Canonical returns the fragment's identity-bearing content.
func (f *SQLFragment) Canonical() map[string]any {
	return map[string]any{
		"id":          f.ID.String(),
		"database_id": f.DatabaseID,
		"body":        markup.String(f.Body),
	}
}

// ParameterMapping is one parameter of a parameterMap.
type ParameterMapping struct {
	Property     string
	JavaType     string
	JDBCType     string
	Mode         ParamMode
	TypeHandler  string
	NumericScale *int
	ResultMap    QualifiedID
}

// ParameterMap is the legacy explicit description of a statement's
// parameters.
type ParameterMap struct {
	ID       QualifiedID
	Type     reflect.Type
	Mappings []ParameterMapping

	Fingerprint string
}

// Canonical returns the parameter map's identity-bearing content.
func (p *ParameterMap) Canonical() map[string]any {
	mappings := make([]any, len(p.Mappings))
	for i, m := range p.Mappings {
		obj := map[string]any{
			"property":     m.Property,
			"java_type":    m.JavaType,
			"jdbc_type":    m.JDBCType,
			"mode":         string(m.Mode),
			"type_handler": m.TypeHandler,
			"result_map":   m.ResultMap.String(),
		}
		if m.NumericScale != nil {
			obj["numeric_scale"] = *m.NumericScale
		}
		mappings[i] = obj
	}
	return map[string]any{
		"id":       p.ID.String(),
		"type":     types.Name(p.Type),
		"mappings": mappings,
	}
}

// Key generator names recorded on statements.
const (
	KeyGeneratorNone      = ""
	KeyGeneratorJDBC      = "jdbc3"
	KeyGeneratorSelectKey = "selectKey"
)

// CompiledStatement is one select/insert/update/delete ready for execution.
type CompiledStatement struct {
	ID            QualifiedID
	Kind          StatementKind
	Source        SQLSource
	Dynamic       bool
	ParameterType reflect.Type
	ParameterMap  QualifiedID
	ResultMaps    []QualifiedID
	Cache         *CacheDef

	UseCache      bool
	FlushCache    bool
	ResultOrdered bool
	Timeout       int
	FetchSize     int
	StatementType string
	ResultSetType string
	ResultSets    []string

	KeyGenerator string
	KeyProperty  []string
	KeyColumn    []string

	// KeyOrder is BEFORE or AFTER, set on selectKey statements only.
	KeyOrder string

	DatabaseID  string
	Fingerprint string
}
