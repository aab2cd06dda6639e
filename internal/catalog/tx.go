package catalog

import (
	"fmt"

	"github.com/roach88/sqlmapper/internal/ir"
)

// Tx stages definitions on top of the committed catalog. Lookups see staged
// definitions first. A Tx is used by one goroutine.
type Tx struct {
	c      *Catalog
	staged *defs
	done   bool
}

var _ Writer = (*Tx)(nil)

func (t *Tx) Namespace(namespace string) (string, bool) {
	if r, ok := t.staged.namespaces[namespace]; ok {
		return r, true
	}
	return t.c.Namespace(namespace)
}

func (t *Tx) ResultMap(id ir.QualifiedID) (*ir.ResultMap, bool) {
	if rm, ok := t.staged.resultMaps[id]; ok {
		return rm, true
	}
	return t.c.ResultMap(id)
}

func (t *Tx) Declared(id ir.QualifiedID) bool {
	return t.staged.declared[id] || t.c.Declared(id)
}

func (t *Tx) Statement(id ir.QualifiedID) (*ir.CompiledStatement, bool) {
	if st, ok := t.staged.statements[id]; ok {
		return st, true
	}
	return t.c.Statement(id)
}

func (t *Tx) Fragment(id ir.QualifiedID) (*ir.SQLFragment, bool) {
	if f, ok := t.staged.fragments[id]; ok {
		return f, true
	}
	return t.c.Fragment(id)
}

func (t *Tx) ParameterMap(id ir.QualifiedID) (*ir.ParameterMap, bool) {
	if pm, ok := t.staged.parameterMaps[id]; ok {
		return pm, true
	}
	return t.c.ParameterMap(id)
}

func (t *Tx) Cache(namespace string) (*ir.CacheDef, bool) {
	if cd, ok := t.staged.caches[namespace]; ok {
		return cd, true
	}
	return t.c.Cache(namespace)
}

func (t *Tx) CacheRef(namespace string) (string, bool) {
	if to, ok := t.staged.cacheRefs[namespace]; ok {
		return to, true
	}
	return t.c.CacheRef(namespace)
}

// RegisterNamespace claims namespace for resource. The same resource may
// register again; a different one may not.
func (t *Tx) RegisterNamespace(namespace, resource string) error {
	if t.done {
		return ErrTxDone
	}
	if existing, ok := t.Namespace(namespace); ok {
		if existing == resource {
			return nil
		}
		return &DuplicateDefinitionError{Kind: KindNamespace, Key: namespace, Existing: existing, Incoming: resource}
	}
	t.staged.namespaces[namespace] = resource
	return nil
}

func (t *Tx) Declare(id ir.QualifiedID) {
	t.staged.declared[id] = true
}

// DefineResultMap stages rm. Redefining an id with identical content is a
// no-op.
func (t *Tx) DefineResultMap(rm *ir.ResultMap) error {
	if t.done {
		return ErrTxDone
	}
	if rm.Fingerprint == "" {
		fp, err := ir.Fingerprint(ir.DomainResultMap, rm.Canonical())
		if err != nil {
			return err
		}
		rm.Fingerprint = fp
	}
	if existing, ok := t.ResultMap(rm.ID); ok {
		return sameOrDuplicate(KindResultMap, rm.ID.String(), existing.Fingerprint, rm.Fingerprint)
	}
	t.staged.resultMaps[rm.ID] = rm
	t.staged.declared[rm.ID] = true
	return nil
}

// DefineStatement stages st. The statement must carry its fingerprint.
func (t *Tx) DefineStatement(st *ir.CompiledStatement) error {
	if t.done {
		return ErrTxDone
	}
	if st.Fingerprint == "" {
		return fmt.Errorf("define statement %s: missing fingerprint", st.ID)
	}
	if existing, ok := t.Statement(st.ID); ok {
		return sameOrDuplicate(KindStatement, st.ID.String(), existing.Fingerprint, st.Fingerprint)
	}
	t.staged.statements[st.ID] = st
	return nil
}

func (t *Tx) DefineFragment(f *ir.SQLFragment) error {
	if t.done {
		return ErrTxDone
	}
	if f.Fingerprint == "" {
		fp, err := ir.Fingerprint(ir.DomainFragment, f.Canonical())
		if err != nil {
			return err
		}
		f.Fingerprint = fp
	}
	if existing, ok := t.Fragment(f.ID); ok {
		return sameOrDuplicate(KindFragment, f.ID.String(), existing.Fingerprint, f.Fingerprint)
	}
	t.staged.fragments[f.ID] = f
	return nil
}

func (t *Tx) DefineParameterMap(pm *ir.ParameterMap) error {
	if t.done {
		return ErrTxDone
	}
	if pm.Fingerprint == "" {
		fp, err := ir.Fingerprint(ir.DomainParameterMap, pm.Canonical())
		if err != nil {
			return err
		}
		pm.Fingerprint = fp
	}
	if existing, ok := t.ParameterMap(pm.ID); ok {
		return sameOrDuplicate(KindParameterMap, pm.ID.String(), existing.Fingerprint, pm.Fingerprint)
	}
	t.staged.parameterMaps[pm.ID] = pm
	return nil
}

// DefineCache stages the cache owned by c.Namespace. A namespace owns at
// most one cache and cannot own one while it declares a cache-ref.
func (t *Tx) DefineCache(c *ir.CacheDef) error {
	if t.done {
		return ErrTxDone
	}
	if c.Fingerprint == "" {
		fp, err := ir.Fingerprint(ir.DomainCache, c.Canonical())
		if err != nil {
			return err
		}
		c.Fingerprint = fp
	}
	if to, ok := t.CacheRef(c.Namespace); ok {
		return &DuplicateDefinitionError{Kind: KindCache, Key: c.Namespace, Existing: "cache-ref " + to, Incoming: c.Fingerprint}
	}
	if existing, ok := t.Cache(c.Namespace); ok {
		return sameOrDuplicate(KindCache, c.Namespace, existing.Fingerprint, c.Fingerprint)
	}
	t.staged.caches[c.Namespace] = c
	return nil
}

func (t *Tx) DeclareCacheRef(from, to string) error {
	if t.done {
		return ErrTxDone
	}
	if existing, ok := t.CacheRef(from); ok {
		return sameOrDuplicate(KindCacheRef, from, existing, to)
	}
	if cd, ok := t.Cache(from); ok && cd.Namespace == from {
		return &DuplicateDefinitionError{Kind: KindCacheRef, Key: from, Existing: "cache " + cd.Fingerprint, Incoming: to}
	}
	t.staged.cacheRefs[from] = to
	return nil
}

// DefineCacheRef points from at the *CacheDef of to. Both namespaces then
// return the same instance from Cache.
func (t *Tx) DefineCacheRef(from, to string) error {
	if t.done {
		return ErrTxDone
	}
	target, ok := t.Cache(to)
	if !ok {
		return &NotFoundError{Kind: KindCache, Key: to}
	}
	if existing, ok := t.Cache(from); ok {
		if existing == target {
			return nil
		}
		return &DuplicateDefinitionError{Kind: KindCacheRef, Key: from, Existing: existing.Namespace, Incoming: to}
	}
	if declared, ok := t.CacheRef(from); ok && declared != to {
		return &DuplicateDefinitionError{Kind: KindCacheRef, Key: from, Existing: declared, Incoming: to}
	}
	t.staged.cacheRefs[from] = to
	t.staged.caches[from] = target
	return nil
}

// Commit publishes the staged definitions atomically.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	c := t.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return ErrSealed
	}

	s := t.staged
	if err := checkConflicts(KindResultMap, c.d.resultMaps, s.resultMaps, func(v *ir.ResultMap) string { return v.Fingerprint }); err != nil {
		return err
	}
	if err := checkConflicts(KindStatement, c.d.statements, s.statements, func(v *ir.CompiledStatement) string { return v.Fingerprint }); err != nil {
		return err
	}
	if err := checkConflicts(KindFragment, c.d.fragments, s.fragments, func(v *ir.SQLFragment) string { return v.Fingerprint }); err != nil {
		return err
	}
	if err := checkConflicts(KindParameterMap, c.d.parameterMaps, s.parameterMaps, func(v *ir.ParameterMap) string { return v.Fingerprint }); err != nil {
		return err
	}
	for ns, r := range s.namespaces {
		if old, ok := c.d.namespaces[ns]; ok && old != r {
			return &DuplicateDefinitionError{Kind: KindNamespace, Key: ns, Existing: old, Incoming: r}
		}
	}

	merge(c.d.namespaces, s.namespaces)
	merge(c.d.resultMaps, s.resultMaps)
	merge(c.d.declared, s.declared)
	merge(c.d.statements, s.statements)
	merge(c.d.fragments, s.fragments)
	merge(c.d.parameterMaps, s.parameterMaps)
	merge(c.d.caches, s.caches)
	merge(c.d.cacheRefs, s.cacheRefs)
	return nil
}

// Rollback discards the staged definitions.
func (t *Tx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.staged = newDefs()
	return nil
}

func sameOrDuplicate(kind Kind, key, existing, incoming string) error {
	if existing == incoming {
		return nil
	}
	return &DuplicateDefinitionError{Kind: kind, Key: key, Existing: existing, Incoming: incoming}
}

func checkConflicts[V any](kind Kind, committed, staged map[ir.QualifiedID]V, fingerprint func(V) string) error {
	for id, v := range staged {
		if old, ok := committed[id]; ok && fingerprint(old) != fingerprint(v) {
			return &DuplicateDefinitionError{Kind: kind, Key: id.String(), Existing: fingerprint(old), Incoming: fingerprint(v)}
		}
	}
	return nil
}

func merge[K comparable, V any](dst, src map[K]V) {
	for k, v := range src {
		dst[k] = v
	}
}
