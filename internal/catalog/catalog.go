// Package catalog stores compiled definitions keyed by namespace-qualified
// id.
//
// Writes go through a Tx: a document stages its definitions and the caller
// commits them all at once, or rolls back so a failed document leaves no
// trace. Once sealed the catalog is read-only; reads are safe from any
// number of goroutines.
package catalog

import (
	"sort"
	"sync"

	"github.com/roach88/sqlmapper/internal/ir"
)

// Reader is the lookup side shared by Catalog and Tx.
type Reader interface {
	Namespace(namespace string) (resource string, ok bool)
	ResultMap(id ir.QualifiedID) (*ir.ResultMap, bool)
	Declared(id ir.QualifiedID) bool
	Statement(id ir.QualifiedID) (*ir.CompiledStatement, bool)
	Fragment(id ir.QualifiedID) (*ir.SQLFragment, bool)
	ParameterMap(id ir.QualifiedID) (*ir.ParameterMap, bool)

	// Cache returns the cache in effect for namespace: its own, or the one
	// shared through a resolved cache-ref.
	Cache(namespace string) (*ir.CacheDef, bool)

	// CacheRef returns the namespace a cache-ref points at, resolved or not.
	CacheRef(namespace string) (string, bool)
}

// Writer stages definitions.
type Writer interface {
	Reader

	RegisterNamespace(namespace, resource string) error

	// Declare reserves a result map id before its definition is complete,
	// so that other maps (including itself) may reference it.
	Declare(id ir.QualifiedID)

	DefineResultMap(rm *ir.ResultMap) error
	DefineStatement(st *ir.CompiledStatement) error
	DefineFragment(f *ir.SQLFragment) error
	DefineParameterMap(pm *ir.ParameterMap) error
	DefineCache(c *ir.CacheDef) error

	// DeclareCacheRef records that from shares the cache of to.
	DeclareCacheRef(from, to string) error

	// DefineCacheRef resolves a declared reference. The target's cache must
	// already be visible.
	DefineCacheRef(from, to string) error
}

// defs is one layer of definitions: the committed state or a Tx's staging.
type defs struct {
	namespaces    map[string]string
	resultMaps    map[ir.QualifiedID]*ir.ResultMap
	declared      map[ir.QualifiedID]bool
	statements    map[ir.QualifiedID]*ir.CompiledStatement
	fragments     map[ir.QualifiedID]*ir.SQLFragment
	parameterMaps map[ir.QualifiedID]*ir.ParameterMap
	caches        map[string]*ir.CacheDef
	cacheRefs     map[string]string
}

func newDefs() *defs {
	return &defs{
		namespaces:    make(map[string]string),
		resultMaps:    make(map[ir.QualifiedID]*ir.ResultMap),
		declared:      make(map[ir.QualifiedID]bool),
		statements:    make(map[ir.QualifiedID]*ir.CompiledStatement),
		fragments:     make(map[ir.QualifiedID]*ir.SQLFragment),
		parameterMaps: make(map[ir.QualifiedID]*ir.ParameterMap),
		caches:        make(map[string]*ir.CacheDef),
		cacheRefs:     make(map[string]string),
	}
}

// Catalog is the committed set of definitions.
type Catalog struct {
	mu     sync.RWMutex
	d      *defs
	sealed bool
}

var _ Reader = (*Catalog)(nil)

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{d: newDefs()}
}

// Seal makes the catalog read-only.
func (c *Catalog) Seal() {
	c.mu.Lock()
	c.sealed = true
	c.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (c *Catalog) Sealed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sealed
}

func (c *Catalog) Namespace(namespace string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.d.namespaces[namespace]
	return r, ok
}

func (c *Catalog) ResultMap(id ir.QualifiedID) (*ir.ResultMap, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rm, ok := c.d.resultMaps[id]
	return rm, ok
}

func (c *Catalog) Declared(id ir.QualifiedID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.d.declared[id]
}

func (c *Catalog) Statement(id ir.QualifiedID) (*ir.CompiledStatement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.d.statements[id]
	return st, ok
}

func (c *Catalog) Fragment(id ir.QualifiedID) (*ir.SQLFragment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.d.fragments[id]
	return f, ok
}

func (c *Catalog) ParameterMap(id ir.QualifiedID) (*ir.ParameterMap, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pm, ok := c.d.parameterMaps[id]
	return pm, ok
}

func (c *Catalog) Cache(namespace string) (*ir.CacheDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cd, ok := c.d.caches[namespace]
	return cd, ok
}

func (c *Catalog) CacheRef(namespace string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	to, ok := c.d.cacheRefs[namespace]
	return to, ok
}

// Namespaces returns all committed namespaces, sorted.
func (c *Catalog) Namespaces() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.d.namespaces)
}

// Statements returns the statements of namespace sorted by id. An empty
// namespace returns every statement.
func (c *Catalog) Statements(namespace string) []*ir.CompiledStatement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedValues(c.d.statements, namespace)
}

// ResultMaps returns the result maps of namespace sorted by id. An empty
// namespace returns every result map.
func (c *Catalog) ResultMaps(namespace string) []*ir.ResultMap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedValues(c.d.resultMaps, namespace)
}

// Fragments returns the SQL fragments of namespace sorted by id.
func (c *Catalog) Fragments(namespace string) []*ir.SQLFragment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedValues(c.d.fragments, namespace)
}

// ParameterMaps returns the parameter maps of namespace sorted by id.
func (c *Catalog) ParameterMaps(namespace string) []*ir.ParameterMap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedValues(c.d.parameterMaps, namespace)
}

// Begin starts staging a document's definitions.
func (c *Catalog) Begin() (*Tx, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sealed {
		return nil, ErrSealed
	}
	return &Tx{c: c, staged: newDefs()}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedValues[V any](m map[ir.QualifiedID]V, namespace string) []V {
	ids := make([]ir.QualifiedID, 0, len(m))
	for id := range m {
		if namespace == "" || id.Namespace == namespace {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	out := make([]V, len(ids))
	for i, id := range ids {
		out[i] = m[id]
	}
	return out
}
