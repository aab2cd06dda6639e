package builder

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/ir"
	"github.com/roach88/sqlmapper/internal/markup"
	"github.com/roach88/sqlmapper/internal/resolve"
)

// Top-level elements of a mapper document.
const (
	elemMapper       = "mapper"
	elemCacheRef     = "cache-ref"
	elemCache        = "cache"
	elemParameterMap = "parameterMap"
	elemResultMap    = "resultMap"
	elemSQL          = "sql"
)

var statementKinds = map[string]ir.StatementKind{
	"select": ir.KindSelect,
	"insert": ir.KindInsert,
	"update": ir.KindUpdate,
	"delete": ir.KindDelete,
}

var evictionPolicies = map[string]bool{"LRU": true, "FIFO": true, "SOFT": true, "WEAK": true}

// mapperBuilder builds one document inside a catalog transaction.
type mapperBuilder struct {
	loader    *Loader
	tx        *catalog.Tx
	resource  string
	namespace string
}

func (b *mapperBuilder) errorf(n markup.Node, id string, format string, args ...any) *BuilderError {
	e := &BuilderError{
		Resource:  b.resource,
		Namespace: b.namespace,
		ID:        id,
		Message:   fmt.Sprintf(format, args...),
	}
	if n != nil {
		e.Element = n.Name()
		e.Line = n.Line()
	}
	return e
}

// wrap attaches document context to err. Builder errors and missing
// references pass through unchanged.
func (b *mapperBuilder) wrap(n markup.Node, id string, err error) error {
	if err == nil || resolve.IsIncomplete(err) {
		return err
	}
	var be *BuilderError
	if errors.As(err, &be) {
		return err
	}
	e := b.errorf(n, id, "")
	e.Err = err
	return e
}

// enqueue runs fn now and queues it if a reference is missing.
func (b *mapperBuilder) enqueue(kind resolve.Kind, id string, fn func(catalog.Writer) error) error {
	return b.loader.pending.Defer(b.tx, resolve.Item{
		Kind:      kind,
		Namespace: b.namespace,
		ID:        id,
		Resource:  b.resource,
		Resolve:   fn,
	})
}

func (b *mapperBuilder) build(root markup.Node) error {
	if root == nil || root.Kind() != markup.KindElement || root.Name() != elemMapper {
		name := ""
		if root != nil {
			name = root.Name()
		}
		return &BuilderError{Resource: b.resource, Message: fmt.Sprintf("root element must be <mapper>, got <%s>", name)}
	}
	b.namespace = strings.TrimSpace(markup.AttrOr(root, "namespace", ""))
	if b.namespace == "" {
		return b.errorf(root, "", "mapper's namespace cannot be empty")
	}
	if err := b.tx.RegisterNamespace(b.namespace, b.resource); err != nil {
		return b.wrap(root, "", err)
	}

	groups := make(map[string][]markup.Node)
	var statements []markup.Node
	for _, n := range markup.Elements(root) {
		switch name := n.Name(); name {
		case elemCacheRef, elemCache, elemParameterMap, elemResultMap, elemSQL:
			groups[name] = append(groups[name], n)
		default:
			if _, ok := statementKinds[name]; !ok {
				return b.errorf(n, "", "unknown element <%s> in mapper", name)
			}
			statements = append(statements, n)
		}
	}

	if err := b.caches(groups[elemCacheRef], groups[elemCache]); err != nil {
		return err
	}
	for _, n := range groups[elemParameterMap] {
		if err := b.parameterMap(n); err != nil {
			return err
		}
	}
	if err := b.resultMaps(groups[elemResultMap]); err != nil {
		return err
	}
	if err := b.fragments(groups[elemSQL]); err != nil {
		return err
	}
	return b.statements(statements)
}

func (b *mapperBuilder) caches(refs, caches []markup.Node) error {
	if len(refs) > 1 {
		return b.errorf(refs[1], "", "a mapper may declare at most one <cache-ref>")
	}
	if len(caches) > 1 {
		return b.errorf(caches[1], "", "a mapper may declare at most one <cache>")
	}
	if len(refs) == 1 && len(caches) == 1 {
		return b.errorf(caches[0], "", "namespace declares both <cache> and <cache-ref>")
	}

	if len(refs) == 1 {
		n := refs[0]
		to := strings.TrimSpace(markup.AttrOr(n, "namespace", ""))
		if to == "" {
			return b.errorf(n, "", `missing required attribute "namespace"`)
		}
		if err := b.tx.DeclareCacheRef(b.namespace, to); err != nil {
			return b.wrap(n, "", err)
		}
		from := b.namespace
		return b.enqueue(resolve.KindCacheRef, "", func(w catalog.Writer) error {
			if _, ok := w.Cache(to); !ok {
				return resolve.Incomplete("cache", to)
			}
			return w.DefineCacheRef(from, to)
		})
	}

	if len(caches) == 1 {
		c, err := b.cache(caches[0])
		if err != nil {
			return err
		}
		return b.wrap(caches[0], "", b.tx.DefineCache(c))
	}
	return nil
}

func (b *mapperBuilder) cache(n markup.Node) (*ir.CacheDef, error) {
	c := &ir.CacheDef{
		Namespace:      b.namespace,
		Implementation: markup.AttrOr(n, "type", "PERPETUAL"),
		Eviction:       strings.ToUpper(markup.AttrOr(n, "eviction", "LRU")),
		Properties:     make(map[string]string),
	}
	if !evictionPolicies[c.Eviction] {
		return nil, b.errorf(n, "", "unknown eviction policy %q", c.Eviction)
	}

	var err error
	if v, ok := n.Attr("flushInterval"); ok && v != "" {
		if c.FlushInterval, err = strconv.ParseInt(v, 10, 64); err != nil || c.FlushInterval < 0 {
			return nil, b.errorf(n, "", "invalid flushInterval %q", v)
		}
	}
	if v, ok := n.Attr("size"); ok && v != "" {
		if c.Size, err = strconv.Atoi(v); err != nil || c.Size < 0 {
			return nil, b.errorf(n, "", "invalid size %q", v)
		}
	}
	readOnly, err := boolAttr(n, "readOnly", false)
	if err != nil {
		return nil, b.errorf(n, "", "%v", err)
	}
	c.ReadWrite = !readOnly
	if c.Blocking, err = boolAttr(n, "blocking", false); err != nil {
		return nil, b.errorf(n, "", "%v", err)
	}

	for _, p := range markup.ElementsNamed(n, "property") {
		name, ok := p.Attr("name")
		if !ok || name == "" {
			return nil, b.errorf(p, "", `missing required attribute "name"`)
		}
		c.Properties[name] = markup.AttrOr(p, "value", "")
	}
	return c, nil
}

func (b *mapperBuilder) parameterMap(n markup.Node) error {
	id, err := b.localID(n)
	if err != nil {
		return err
	}
	pm := &ir.ParameterMap{ID: ir.QualifiedID{Namespace: b.namespace, ID: id}}
	if pm.Type, err = b.resolveType(n, id, markup.AttrOr(n, "type", "")); err != nil {
		return err
	}

	for _, p := range markup.ElementsNamed(n, "parameter") {
		property := markup.AttrOr(p, "property", "")
		if property == "" {
			return b.errorf(p, id, `missing required attribute "property"`)
		}
		mode, err := ir.ParseParamMode(markup.AttrOr(p, "mode", ""))
		if err != nil {
			return b.errorf(p, id, "%v", err)
		}
		m := ir.ParameterMapping{
			Property:    property,
			JavaType:    markup.AttrOr(p, "javaType", ""),
			JDBCType:    markup.AttrOr(p, "jdbcType", ""),
			Mode:        mode,
			TypeHandler: markup.AttrOr(p, "typeHandler", ""),
			ResultMap:   ir.Qualify(b.namespace, markup.AttrOr(p, "resultMap", "")),
		}
		if v, ok := p.Attr("numericScale"); ok && v != "" {
			scale, err := strconv.Atoi(v)
			if err != nil {
				return b.errorf(p, id, "invalid numericScale %q", v)
			}
			m.NumericScale = &scale
		}
		if _, err := b.resolveType(p, id, m.JavaType); err != nil {
			return err
		}
		pm.Mappings = append(pm.Mappings, m)
	}
	return b.wrap(n, id, b.tx.DefineParameterMap(pm))
}

// fragments registers <sql> elements. A fragment whose databaseId matches
// the configured one wins over a fragment without databaseId; fragments
// for other databases are skipped.
func (b *mapperBuilder) fragments(nodes []markup.Node) error {
	return b.byDatabaseID(nodes, func(n markup.Node, id, databaseID string) error {
		f := &ir.SQLFragment{
			ID:         ir.QualifiedID{Namespace: b.namespace, ID: id},
			DatabaseID: databaseID,
			Body:       n,
		}
		return b.wrap(n, id, b.tx.DefineFragment(f))
	})
}

// byDatabaseID calls fn for every node selected by databaseId matching:
// first the nodes declared for the configured database, then the nodes
// without databaseId whose id was not already taken.
func (b *mapperBuilder) byDatabaseID(nodes []markup.Node, fn func(n markup.Node, id, databaseID string) error) error {
	want := b.loader.settings.DatabaseID
	taken := make(map[string]bool)

	if want != "" {
		for _, n := range nodes {
			if markup.AttrOr(n, "databaseId", "") != want {
				continue
			}
			id, err := b.localID(n)
			if err != nil {
				return err
			}
			taken[id] = true
			if err := fn(n, id, want); err != nil {
				return err
			}
		}
	}
	for _, n := range nodes {
		if markup.AttrOr(n, "databaseId", "") != "" {
			continue
		}
		id, err := b.localID(n)
		if err != nil {
			return err
		}
		if taken[id] {
			continue
		}
		if err := fn(n, id, ""); err != nil {
			return err
		}
	}
	return nil
}

// localID returns the id attribute of n with any current-namespace prefix
// removed.
func (b *mapperBuilder) localID(n markup.Node) (string, error) {
	id := strings.TrimSpace(markup.AttrOr(n, "id", ""))
	id = strings.TrimPrefix(id, b.namespace+".")
	if err := ir.ValidateLocalID(id); err != nil {
		return "", b.errorf(n, id, "%v", err)
	}
	return id, nil
}

func (b *mapperBuilder) resolveType(n markup.Node, id, name string) (reflect.Type, error) {
	t, err := b.loader.types.Resolve(name)
	if err != nil {
		e := b.errorf(n, id, "cannot resolve type")
		e.Err = err
		return nil, e
	}
	return t, nil
}

func boolAttr(n markup.Node, name string, def bool) (bool, error) {
	v, ok := n.Attr(name)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("attribute %q: invalid boolean %q", name, v)
	}
	return parsed, nil
}

func intAttr(n markup.Node, name string) (int, error) {
	v, ok := n.Attr(name)
	if !ok || v == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: invalid integer %q", name, v)
	}
	return parsed, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
