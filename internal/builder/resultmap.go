package builder

import (
	"reflect"
	"strings"

	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/ir"
	"github.com/roach88/sqlmapper/internal/markup"
	"github.com/roach88/sqlmapper/internal/resolve"
	"github.com/roach88/sqlmapper/internal/types"
)

// resultMapDraft is a parsed result map waiting for its references.
type resultMapDraft struct {
	node markup.Node
	rm   *ir.ResultMap
}

// resultMaps parses every <resultMap> of the document, declares all of
// their ids (anonymous nested maps included) and then resolves them. Maps
// of one document may therefore refer to each other in any order.
func (b *mapperBuilder) resultMaps(nodes []markup.Node) error {
	var drafts []resultMapDraft
	for _, n := range nodes {
		id, err := b.localID(n)
		if err != nil {
			return err
		}
		if _, err := b.resultMapElement(n, id, nil, nil, &drafts); err != nil {
			return err
		}
	}

	for _, d := range drafts {
		b.tx.Declare(d.rm.ID)
	}
	for _, d := range drafts {
		d := d // per-iteration copy: go.mod targets go1.21 loop semantics
		err := b.enqueue(resolve.KindResultMap, d.rm.ID.ID, func(w catalog.Writer) error {
			return b.wrap(d.node, d.rm.ID.ID, resolveResultMap(w, d.rm))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// resolveResultMap merges the extended map, checks that every nested map
// is at least declared and stages the result. draft is never modified, so
// the item can be retried.
func resolveResultMap(w catalog.Writer, draft *ir.ResultMap) error {
	rm := *draft
	rm.Entries = append([]ir.ResultEntry(nil), draft.Entries...)

	if !rm.Extends.IsZero() {
		parent, ok := w.ResultMap(rm.Extends)
		if !ok {
			return resolve.Incomplete("resultMap", rm.Extends.String())
		}
		rm.Entries = extendEntries(rm.Entries, parent.Entries)
	}
	for _, ref := range rm.References() {
		if !w.Declared(ref) {
			return resolve.Incomplete("resultMap", ref.String())
		}
	}
	return w.DefineResultMap(&rm)
}

// extendEntries appends the parent's entries after the child's. Parent
// entries for a property the child maps itself are dropped, and so are the
// parent's constructor args when the child declares a constructor.
func extendEntries(child, parent []ir.ResultEntry) []ir.ResultEntry {
	own := make(map[string]bool)
	hasConstructor := false
	for _, e := range child {
		if e.Property != "" {
			own[e.Property] = true
		}
		if e.Kind == ir.EntryConstructorArg {
			hasConstructor = true
		}
	}

	out := child
	for _, e := range parent {
		if e.Property != "" && own[e.Property] {
			continue
		}
		if hasConstructor && e.Kind == ir.EntryConstructorArg {
			continue
		}
		out = append(out, e)
	}
	return out
}

// resultMapElement parses a resultMap, association, collection or case
// element into a draft. inherited entries are prepended (case maps start
// with the enclosing map's entries). Nested maps are appended to drafts
// before their parent.
func (b *mapperBuilder) resultMapElement(n markup.Node, id string, inherited []ir.ResultEntry, enclosing reflect.Type, drafts *[]resultMapDraft) (*ir.ResultMap, error) {
	rm := &ir.ResultMap{
		ID:      ir.QualifiedID{Namespace: b.namespace, ID: id},
		Extends: ir.Qualify(b.namespace, markup.AttrOr(n, "extends", "")),
		Entries: append([]ir.ResultEntry(nil), inherited...),
	}

	typeName := firstAttr(n, "type", "ofType", "resultType", "javaType")
	t, err := b.resolveType(n, id, typeName)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = inheritEnclosingType(n, enclosing)
	}
	rm.Type = t

	if v, ok := n.Attr("autoMapping"); ok && v != "" {
		auto, err := boolAttr(n, "autoMapping", false)
		if err != nil {
			return nil, b.errorf(n, id, "%v", err)
		}
		rm.AutoMapping = &auto
	}

	for _, c := range markup.Elements(n) {
		switch c.Name() {
		case "constructor":
			for _, arg := range markup.Elements(c) {
				if arg.Name() != "idArg" && arg.Name() != "arg" {
					return nil, b.errorf(arg, id, "unknown element <%s> in <constructor>", arg.Name())
				}
				e, err := b.resultEntry(arg, rm, ir.EntryConstructorArg, drafts)
				if err != nil {
					return nil, err
				}
				e.ID = arg.Name() == "idArg"
				rm.Entries = append(rm.Entries, e)
			}
		case "discriminator":
			if rm.Discriminator != nil {
				return nil, b.errorf(c, id, "a result map may declare at most one <discriminator>")
			}
			d, err := b.discriminator(c, rm, drafts)
			if err != nil {
				return nil, err
			}
			rm.Discriminator = d
		case "id", "result", "association", "collection":
			kind := map[string]ir.EntryKind{
				"id":          ir.EntryIDColumn,
				"result":      ir.EntryPropertyColumn,
				"association": ir.EntryNestedAssociation,
				"collection":  ir.EntryNestedCollection,
			}[c.Name()]
			e, err := b.resultEntry(c, rm, kind, drafts)
			if err != nil {
				return nil, err
			}
			e.ID = c.Name() == "id"
			rm.Entries = append(rm.Entries, e)
		default:
			return nil, b.errorf(c, id, "unknown element <%s> in result map", c.Name())
		}
	}

	*drafts = append(*drafts, resultMapDraft{node: n, rm: rm})
	return rm, nil
}

func (b *mapperBuilder) resultEntry(n markup.Node, rm *ir.ResultMap, kind ir.EntryKind, drafts *[]resultMapDraft) (ir.ResultEntry, error) {
	id := rm.ID.ID
	e := ir.ResultEntry{
		Kind:            kind,
		Column:          markup.AttrOr(n, "column", ""),
		JavaType:        markup.AttrOr(n, "javaType", ""),
		JDBCType:        markup.AttrOr(n, "jdbcType", ""),
		TypeHandler:     markup.AttrOr(n, "typeHandler", ""),
		OfType:          markup.AttrOr(n, "ofType", ""),
		NestedResultMap: ir.Qualify(b.namespace, markup.AttrOr(n, "resultMap", "")),
		NestedSelect:    ir.Qualify(b.namespace, markup.AttrOr(n, "select", "")),
		ColumnPrefix:    markup.AttrOr(n, "columnPrefix", ""),
		NotNullColumns:  splitList(markup.AttrOr(n, "notNullColumn", "")),
		ForeignColumn:   markup.AttrOr(n, "foreignColumn", ""),
		ResultSet:       markup.AttrOr(n, "resultSet", ""),
	}
	inline := (kind == ir.EntryNestedAssociation || kind == ir.EntryNestedCollection) && e.NestedSelect.IsZero() && e.NestedResultMap.IsZero()
	if kind == ir.EntryConstructorArg {
		e.Property = markup.AttrOr(n, "name", "")
	} else {
		e.Property = markup.AttrOr(n, "property", "")
		if inline {
			if err := b.validateCollection(n, rm); err != nil {
				return e, err
			}
		}
		if e.Property != "" && rm.Type != nil && !types.HasSettableProperty(rm.Type, e.Property) {
			return e, b.errorf(n, id, "no settable property %q on type %s", e.Property, types.Name(rm.Type))
		}
	}

	for _, name := range []string{e.JavaType, e.OfType} {
		if _, err := b.resolveType(n, id, name); err != nil {
			return e, err
		}
	}

	switch fetch := markup.AttrOr(n, "fetchType", ""); fetch {
	case "":
		e.Lazy = b.loader.settings.LazyLoadingEnabled
	case "lazy", "eager":
		e.Lazy = fetch == "lazy"
	default:
		return e, b.errorf(n, id, "invalid fetchType %q", fetch)
	}

	if inline {
		nested, err := b.resultMapElement(n, valueBasedID(id, n), nil, rm.Type, drafts)
		if err != nil {
			return e, err
		}
		e.NestedResultMap = nested.ID
	}
	return e, nil
}

func (b *mapperBuilder) discriminator(n markup.Node, rm *ir.ResultMap, drafts *[]resultMapDraft) (*ir.Discriminator, error) {
	id := rm.ID.ID
	d := &ir.Discriminator{
		Column:      markup.AttrOr(n, "column", ""),
		JavaType:    markup.AttrOr(n, "javaType", ""),
		JDBCType:    markup.AttrOr(n, "jdbcType", ""),
		TypeHandler: markup.AttrOr(n, "typeHandler", ""),
		Cases:       make(map[string]ir.QualifiedID),
	}
	if d.Column == "" {
		return nil, b.errorf(n, id, `missing required attribute "column"`)
	}
	if _, err := b.resolveType(n, id, d.JavaType); err != nil {
		return nil, err
	}

	for _, c := range markup.Elements(n) {
		if c.Name() != "case" {
			return nil, b.errorf(c, id, "unknown element <%s> in <discriminator>", c.Name())
		}
		value, ok := c.Attr("value")
		if !ok {
			return nil, b.errorf(c, id, `missing required attribute "value"`)
		}
		if _, dup := d.Cases[value]; dup {
			return nil, b.errorf(c, id, "duplicate discriminator case %q", value)
		}
		if ref := markup.AttrOr(c, "resultMap", ""); ref != "" {
			d.Cases[value] = ir.Qualify(b.namespace, ref)
			continue
		}
		nested, err := b.resultMapElement(c, valueBasedID(id, c), rm.Entries, rm.Type, drafts)
		if err != nil {
			return nil, err
		}
		d.Cases[value] = nested.ID
	}
	return d, nil
}

// validateCollection rejects a collection whose element type cannot be
// determined: no resultMap, no ofType and a property that is missing from
// the type or holds a single value.
func (b *mapperBuilder) validateCollection(n markup.Node, rm *ir.ResultMap) error {
	if n.Name() != "collection" || firstAttr(n, "resultMap", "ofType", "resultType") != "" || rm.Type == nil {
		return nil
	}
	property := markup.AttrOr(n, "property", "")
	t, ok := types.PropertyType(rm.Type, property)
	if !ok {
		return b.errorf(n, rm.ID.ID, "ambiguous collection type for property %q: specify ofType or resultMap", property)
	}
	if !holdsMany(t) {
		return b.errorf(n, rm.ID.ID, "property %q of %s is not a collection: specify ofType or resultMap", property, types.Name(rm.Type))
	}
	return nil
}

// holdsMany reports whether a property of type t can take the rows of a
// collection. Interface and map properties are open.
func holdsMany(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Interface, reflect.Map:
		return true
	}
	return types.IsCollection(t)
}

// inheritEnclosingType infers the type of an anonymous nested map from the
// enclosing map: the property type for associations, its element type for
// collections and the enclosing type itself for discriminator cases.
func inheritEnclosingType(n markup.Node, enclosing reflect.Type) reflect.Type {
	if enclosing == nil {
		return nil
	}
	switch n.Name() {
	case "association", "collection":
		t, ok := types.PropertyType(enclosing, markup.AttrOr(n, "property", ""))
		if !ok {
			return nil
		}
		if n.Name() == "collection" {
			if elem, ok := types.ElementType(t); ok {
				return elem
			}
		}
		return t
	case "case":
		return enclosing
	}
	return nil
}

// valueBasedID names an anonymous nested map after its position:
// parent_association[author], parent_case[2].
func valueBasedID(parent string, n markup.Node) string {
	key := firstAttr(n, "id", "value", "property")
	key = strings.ReplaceAll(key, ".", "_")
	return parent + "_" + n.Name() + "[" + key + "]"
}

func firstAttr(n markup.Node, names ...string) string {
	for _, name := range names {
		if v := markup.AttrOr(n, name, ""); v != "" {
			return v
		}
	}
	return ""
}
