package dynsql

import (
	"strings"

	"github.com/roach88/sqlmapper/internal/expr"
	"github.com/roach88/sqlmapper/internal/ir"
)

// Source is a compiled statement body bound to a placeholder style and
// database id. It implements ir.SQLSource.
type Source struct {
	root       Node
	dynamic    bool
	style      PlaceholderStyle
	databaseID string

	// static holds the SQL text and binding descriptors of a non-dynamic
	// tree, computed once.
	static *ir.BoundSQL
}

var _ ir.SQLSource = (*Source)(nil)

// NewSource wraps a compiled tree.
func NewSource(root Node, dynamic bool, style PlaceholderStyle, databaseID string) (*Source, error) {
	s := &Source{root: root, dynamic: dynamic, style: style, databaseID: databaseID}
	if dynamic {
		return s, nil
	}
	r := &renderer{style: style, deferValues: true}
	var b strings.Builder
	if err := r.render(root, expr.NewScope(nil, databaseID), &b); err != nil {
		return nil, err
	}
	s.static = &ir.BoundSQL{SQL: b.String(), Bindings: r.bindings}
	return s, nil
}

func (s *Source) Dynamic() bool { return s.dynamic }

func (s *Source) StaticSQL() (string, bool) {
	if s.static == nil {
		return "", false
	}
	return s.static.SQL, true
}

// BoundSQL renders the body for param. Non-dynamic sources only resolve
// binding values.
func (s *Source) BoundSQL(param any) (*ir.BoundSQL, error) {
	scope := expr.NewScope(param, s.databaseID)
	if s.static == nil {
		return Render(s.root, scope, s.style)
	}

	out := &ir.BoundSQL{SQL: s.static.SQL, Bindings: make([]ir.Binding, len(s.static.Bindings))}
	for i, b := range s.static.Bindings {
		if b.Mode != ir.ModeOut {
			v, err := expr.Value(b.Property, scope)
			if err != nil {
				return nil, err
			}
			b.Value = v
		}
		out.Bindings[i] = b
	}
	return out, nil
}
