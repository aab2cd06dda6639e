package builder

import (
	"strings"

	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/dynsql"
	"github.com/roach88/sqlmapper/internal/ir"
	"github.com/roach88/sqlmapper/internal/markup"
	"github.com/roach88/sqlmapper/internal/resolve"
	"github.com/roach88/sqlmapper/internal/types"
)

const (
	selectKeySuffix  = "!selectKey"
	inlineMapSuffix  = "-Inline"
	elemSelectKey    = "selectKey"
	keyOrderBefore   = "BEFORE"
	keyOrderAfter    = "AFTER"
	defaultStatement = "PREPARED"
)

var (
	statementTypes = map[string]bool{"STATEMENT": true, "PREPARED": true, "CALLABLE": true}
	resultSetTypes = map[string]bool{"": true, "DEFAULT": true, "FORWARD_ONLY": true, "SCROLL_INSENSITIVE": true, "SCROLL_SENSITIVE": true}
)

// statementDraft is a statement whose attributes are parsed and whose body
// is compiled once its references resolve.
type statementDraft struct {
	node      markup.Node
	st        ir.CompiledStatement
	inline    *ir.ResultMap
	selectKey *statementDraft
}

func (b *mapperBuilder) statements(nodes []markup.Node) error {
	return b.byDatabaseID(nodes, func(n markup.Node, id, databaseID string) error {
		d, err := b.statementDraft(n, id, databaseID)
		if err != nil {
			return err
		}
		return b.enqueue(resolve.KindStatement, id, func(w catalog.Writer) error {
			return b.wrap(n, id, b.resolveStatement(w, d))
		})
	})
}

func (b *mapperBuilder) statementDraft(n markup.Node, id, databaseID string) (*statementDraft, error) {
	kind := statementKinds[n.Name()]
	isSelect := kind == ir.KindSelect
	d := &statementDraft{node: n}
	st := &d.st
	st.ID = ir.QualifiedID{Namespace: b.namespace, ID: id}
	st.Kind = kind
	st.DatabaseID = databaseID
	st.ParameterMap = ir.Qualify(b.namespace, markup.AttrOr(n, "parameterMap", ""))
	st.ResultMaps = ir.QualifyList(b.namespace, markup.AttrOr(n, "resultMap", ""))
	st.ResultSetType = strings.ToUpper(markup.AttrOr(n, "resultSetType", ""))
	st.StatementType = strings.ToUpper(markup.AttrOr(n, "statementType", defaultStatement))
	st.ResultSets = splitList(markup.AttrOr(n, "resultSets", ""))
	st.KeyProperty = splitList(markup.AttrOr(n, "keyProperty", ""))
	st.KeyColumn = splitList(markup.AttrOr(n, "keyColumn", ""))

	if !statementTypes[st.StatementType] {
		return nil, b.errorf(n, id, "invalid statementType %q", st.StatementType)
	}
	if !resultSetTypes[st.ResultSetType] {
		return nil, b.errorf(n, id, "invalid resultSetType %q", st.ResultSetType)
	}

	var err error
	if st.ParameterType, err = b.resolveType(n, id, markup.AttrOr(n, "parameterType", "")); err != nil {
		return nil, err
	}
	if st.FlushCache, err = boolAttr(n, "flushCache", !isSelect); err != nil {
		return nil, b.errorf(n, id, "%v", err)
	}
	if st.UseCache, err = boolAttr(n, "useCache", isSelect); err != nil {
		return nil, b.errorf(n, id, "%v", err)
	}
	if st.ResultOrdered, err = boolAttr(n, "resultOrdered", false); err != nil {
		return nil, b.errorf(n, id, "%v", err)
	}
	if st.Timeout, err = intAttr(n, "timeout"); err != nil {
		return nil, b.errorf(n, id, "%v", err)
	}
	if st.FetchSize, err = intAttr(n, "fetchSize"); err != nil {
		return nil, b.errorf(n, id, "%v", err)
	}

	if len(st.ResultMaps) == 0 {
		resultType, err := b.resolveType(n, id, markup.AttrOr(n, "resultType", ""))
		if err != nil {
			return nil, err
		}
		if resultType != nil {
			d.inline = &ir.ResultMap{ID: ir.QualifiedID{Namespace: b.namespace, ID: id + inlineMapSuffix}, Type: resultType}
			st.ResultMaps = []ir.QualifiedID{d.inline.ID}
		}
	}

	if kind == ir.KindInsert || kind == ir.KindUpdate {
		if key := b.chooseSelectKey(n); key != nil {
			if d.selectKey, err = b.selectKeyDraft(key, st); err != nil {
				return nil, err
			}
			st.KeyGenerator = ir.KeyGeneratorSelectKey
			st.KeyProperty = d.selectKey.st.KeyProperty
			st.KeyColumn = d.selectKey.st.KeyColumn
		}
	}
	if st.KeyGenerator == ir.KeyGeneratorNone {
		generated, err := boolAttr(n, "useGeneratedKeys", b.loader.settings.UseGeneratedKeys && kind == ir.KindInsert)
		if err != nil {
			return nil, b.errorf(n, id, "%v", err)
		}
		if generated {
			st.KeyGenerator = ir.KeyGeneratorJDBC
		}
	}
	return d, nil
}

// chooseSelectKey picks the <selectKey> for the configured database: one
// declared for it, else one without databaseId.
func (b *mapperBuilder) chooseSelectKey(n markup.Node) markup.Node {
	var fallback markup.Node
	want := b.loader.settings.DatabaseID
	for _, k := range markup.ElementsNamed(n, elemSelectKey) {
		switch dbID := markup.AttrOr(k, "databaseId", ""); {
		case want != "" && dbID == want:
			return k
		case dbID == "" && fallback == nil:
			fallback = k
		}
	}
	return fallback
}

func (b *mapperBuilder) selectKeyDraft(n markup.Node, parent *ir.CompiledStatement) (*statementDraft, error) {
	id := parent.ID.ID + selectKeySuffix
	d := &statementDraft{node: n}
	st := &d.st
	st.ID = ir.QualifiedID{Namespace: b.namespace, ID: id}
	st.Kind = ir.KindSelect
	st.DatabaseID = parent.DatabaseID
	st.ParameterType = parent.ParameterType
	st.StatementType = strings.ToUpper(markup.AttrOr(n, "statementType", defaultStatement))
	st.KeyProperty = splitList(markup.AttrOr(n, "keyProperty", ""))
	st.KeyColumn = splitList(markup.AttrOr(n, "keyColumn", ""))
	st.KeyOrder = strings.ToUpper(markup.AttrOr(n, "order", keyOrderAfter))

	if len(st.KeyProperty) == 0 {
		return nil, b.errorf(n, parent.ID.ID, `missing required attribute "keyProperty"`)
	}
	if st.KeyOrder != keyOrderBefore && st.KeyOrder != keyOrderAfter {
		return nil, b.errorf(n, parent.ID.ID, "invalid order %q: want BEFORE or AFTER", st.KeyOrder)
	}
	if !statementTypes[st.StatementType] {
		return nil, b.errorf(n, parent.ID.ID, "invalid statementType %q", st.StatementType)
	}

	resultType, err := b.resolveType(n, parent.ID.ID, markup.AttrOr(n, "resultType", ""))
	if err != nil {
		return nil, err
	}
	if resultType != nil {
		d.inline = &ir.ResultMap{ID: ir.QualifiedID{Namespace: b.namespace, ID: id + inlineMapSuffix}, Type: resultType}
		st.ResultMaps = []ir.QualifiedID{d.inline.ID}
	}
	return d, nil
}

// resolveStatement checks the statement's references, compiles its body
// and stages it. Nothing is staged unless every step succeeds.
func (b *mapperBuilder) resolveStatement(w catalog.Writer, d *statementDraft) error {
	st := d.st
	ns := st.ID.Namespace

	if to, ok := w.CacheRef(ns); ok {
		if _, ok := w.Cache(ns); !ok {
			return resolve.Incomplete("cache", to)
		}
	}
	if cache, ok := w.Cache(ns); ok {
		st.Cache = cache
	}
	if !st.ParameterMap.IsZero() {
		if _, ok := w.ParameterMap(st.ParameterMap); !ok {
			return resolve.Incomplete("parameterMap", st.ParameterMap.String())
		}
	}
	for _, ref := range st.ResultMaps {
		if d.inline != nil && ref == d.inline.ID {
			continue
		}
		if !w.Declared(ref) {
			return resolve.Incomplete("resultMap", ref.String())
		}
	}

	if err := b.compileBody(w, d, &st); err != nil {
		return err
	}

	var key *ir.CompiledStatement
	if d.selectKey != nil {
		k := d.selectKey.st
		k.Cache = st.Cache
		if err := b.compileBody(w, d.selectKey, &k); err != nil {
			return err
		}
		key = &k
	}

	for _, inline := range []*statementDraft{d, d.selectKey} {
		if inline == nil || inline.inline == nil {
			continue
		}
		rm := *inline.inline
		if err := w.DefineResultMap(&rm); err != nil {
			return err
		}
	}
	if key != nil {
		if err := w.DefineStatement(key); err != nil {
			return err
		}
	}
	return w.DefineStatement(&st)
}

// compileBody expands includes, compiles the directive tree and
// fingerprints the statement.
func (b *mapperBuilder) compileBody(r catalog.Reader, d *statementDraft, st *ir.CompiledStatement) error {
	var skip func(markup.Node) bool
	if st.Kind == ir.KindInsert || st.Kind == ir.KindUpdate {
		skip = func(c markup.Node) bool {
			return c.Kind() == markup.KindElement && c.Name() == elemSelectKey
		}
	}
	in := &includer{b: b, r: r, id: st.ID.ID}
	body, err := in.expand(d.node, skip)
	if err != nil {
		return err
	}

	tree, dynamic, err := dynsql.Compile(body)
	if err != nil {
		return err
	}
	src, err := dynsql.NewSource(tree, dynamic, b.loader.settings.Placeholder, b.loader.settings.DatabaseID)
	if err != nil {
		return err
	}
	st.Source = src
	st.Dynamic = dynamic

	fp, err := ir.Fingerprint(ir.DomainStatement, statementCanonical(st, markup.String(body)))
	if err != nil {
		return err
	}
	st.Fingerprint = fp
	return nil
}

func statementCanonical(st *ir.CompiledStatement, body string) map[string]any {
	resultMaps := make([]string, len(st.ResultMaps))
	for i, rm := range st.ResultMaps {
		resultMaps[i] = rm.String()
	}
	return map[string]any{
		"id":              st.ID.String(),
		"kind":            string(st.Kind),
		"body":            body,
		"dynamic":         st.Dynamic,
		"parameter_type":  types.Name(st.ParameterType),
		"parameter_map":   st.ParameterMap.String(),
		"result_maps":     resultMaps,
		"use_cache":       st.UseCache,
		"flush_cache":     st.FlushCache,
		"result_ordered":  st.ResultOrdered,
		"timeout":         st.Timeout,
		"fetch_size":      st.FetchSize,
		"statement_type":  st.StatementType,
		"result_set_type": st.ResultSetType,
		"result_sets":     st.ResultSets,
		"key_generator":   st.KeyGenerator,
		"key_property":    st.KeyProperty,
		"key_column":      st.KeyColumn,
		"key_order":       st.KeyOrder,
		"database_id":     st.DatabaseID,
	}
}
