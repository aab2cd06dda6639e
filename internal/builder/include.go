package builder

import (
	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/ir"
	"github.com/roach88/sqlmapper/internal/markup"
	"github.com/roach88/sqlmapper/internal/resolve"
)

// includer replaces <include refid="..."/> with the children of the
// referenced <sql> fragment. <property name value> children of an include
// are substituted into ${name} references inside the fragment, including
// nested includes' refids. Unqualified refids resolve in the namespace of
// the statement being built, at any nesting depth.
type includer struct {
	b     *mapperBuilder
	r     catalog.Reader
	id    string
	stack []ir.QualifiedID
}

// expand returns a copy of the element n with includes expanded. Children
// for which skip returns true are dropped.
func (in *includer) expand(n markup.Node, skip func(markup.Node) bool) (markup.Node, error) {
	children, err := in.children(n, nil, false, skip)
	if err != nil {
		return nil, err
	}
	return markup.NewElement(n.Name(), n.Attrs(), children...).WithLine(n.Line()), nil
}

func (in *includer) children(n markup.Node, vars map[string]string, inFragment bool, skip func(markup.Node) bool) ([]markup.Node, error) {
	var out []markup.Node
	for _, c := range n.Children() {
		if skip != nil && skip(c) {
			continue
		}
		expanded, err := in.node(c, vars, inFragment)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func (in *includer) node(n markup.Node, vars map[string]string, inFragment bool) ([]markup.Node, error) {
	if n.Kind() == markup.KindText {
		if !inFragment {
			return []markup.Node{n}, nil
		}
		return []markup.Node{markup.NewText(markup.Substitute(n.Text(), vars))}, nil
	}
	if n.Name() == "include" {
		return in.include(n, vars)
	}

	attrs := n.Attrs()
	if inFragment && len(vars) > 0 {
		attrs = make([]markup.Attr, len(n.Attrs()))
		for i, a := range n.Attrs() {
			attrs[i] = markup.Attr{Name: a.Name, Value: markup.Substitute(a.Value, vars)}
		}
	}
	children, err := in.children(n, vars, inFragment, nil)
	if err != nil {
		return nil, err
	}
	return []markup.Node{markup.NewElement(n.Name(), attrs, children...).WithLine(n.Line())}, nil
}

func (in *includer) include(n markup.Node, vars map[string]string) ([]markup.Node, error) {
	refid := markup.Substitute(markup.AttrOr(n, "refid", ""), vars)
	if refid == "" {
		return nil, in.b.errorf(n, in.id, `missing required attribute "refid"`)
	}
	ref := ir.Qualify(in.b.namespace, refid)
	for _, seen := range in.stack {
		if seen == ref {
			return nil, in.b.errorf(n, in.id, "circular include of sql fragment %s", ref)
		}
	}
	frag, ok := in.r.Fragment(ref)
	if !ok {
		return nil, resolve.Incomplete("sql", ref.String())
	}

	scoped := make(map[string]string, len(vars))
	for k, v := range vars {
		scoped[k] = v
	}
	declared := make(map[string]bool)
	for _, p := range markup.ElementsNamed(n, "property") {
		name := markup.AttrOr(p, "name", "")
		if name == "" {
			return nil, in.b.errorf(p, in.id, `missing required attribute "name"`)
		}
		if declared[name] {
			return nil, in.b.errorf(p, in.id, "property %q defined twice in the same include", name)
		}
		declared[name] = true
		scoped[name] = markup.Substitute(markup.AttrOr(p, "value", ""), vars)
	}

	in.stack = append(in.stack, ref)
	defer func() { in.stack = in.stack[:len(in.stack)-1] }()
	return in.children(frag.Body, scoped, true, nil)
}
