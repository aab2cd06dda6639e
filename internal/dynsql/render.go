package dynsql

import (
	"fmt"
	"strings"

	"github.com/roach88/sqlmapper/internal/expr"
	"github.com/roach88/sqlmapper/internal/ir"
	"github.com/roach88/sqlmapper/internal/tokens"
)

// Render evaluates tree against scope. Bindings are appended in the
// left-to-right order their placeholders appear in the returned SQL.
func Render(tree Node, scope *expr.Scope, style PlaceholderStyle) (*ir.BoundSQL, error) {
	r := &renderer{style: style}
	var b strings.Builder
	if err := r.render(tree, scope, &b); err != nil {
		return nil, err
	}
	return &ir.BoundSQL{SQL: b.String(), Bindings: r.bindings}, nil
}

type renderer struct {
	style    PlaceholderStyle
	bindings []ir.Binding

	// deferValues skips value resolution; used to precompute static SQL.
	deferValues bool
}

func (r *renderer) render(n Node, scope *expr.Scope, out *strings.Builder) error {
	switch n := n.(type) {
	case Sequence:
		for _, child := range n {
			if err := r.render(child, scope, out); err != nil {
				return err
			}
		}

	case *StaticText:
		for _, seg := range n.segments {
			if seg.param == nil {
				out.WriteString(seg.text)
				continue
			}
			if err := r.emit(*seg.param, scope, out); err != nil {
				return err
			}
		}

	case *DynamicText:
		text, err := expr.Render(n.Template, scope)
		if err != nil {
			return err
		}
		for _, seg := range tokens.Split(text, "#{", "}") {
			if !seg.Token {
				out.WriteString(seg.Text)
				continue
			}
			p, err := ParsePlaceholder(seg.Text)
			if err != nil {
				return err
			}
			if err := r.emit(p, scope, out); err != nil {
				return err
			}
		}

	case *Conditional:
		ok, err := expr.Evaluate(n.Test, scope)
		if err != nil || !ok {
			return err
		}
		return r.render(n.Body, scope, out)

	case *Choose:
		for _, when := range n.When {
			ok, err := expr.Evaluate(when.Test, scope)
			if err != nil {
				return err
			}
			if ok {
				return r.render(when.Body, scope, out)
			}
		}
		if n.Otherwise != nil {
			return r.render(n.Otherwise, scope, out)
		}

	case *Loop:
		return r.loop(n, scope, out)

	case *Reframe:
		return r.reframe(n, scope, out)

	case *VariableBind:
		v, err := expr.Value(n.Expr, scope)
		if err != nil {
			return err
		}
		scope.Bind(n.Name, v)

	default:
		return fmt.Errorf("render: unsupported node %T", n)
	}
	return nil
}

func (r *renderer) emit(p Placeholder, scope *expr.Scope, out *strings.Builder) error {
	var value any
	if !r.deferValues && p.Mode != ir.ModeOut {
		v, err := expr.Value(p.Property, scope)
		if err != nil {
			return err
		}
		value = v
	}
	r.bindings = append(r.bindings, p.binding(value))
	out.WriteString(r.style.token(len(r.bindings)))
	return nil
}

// loop renders one child frame per element. The separator goes only between
// iterations that produced text.
func (r *renderer) loop(l *Loop, scope *expr.Scope, out *strings.Builder) error {
	items, err := expr.Iterate(l.Collection, scope, l.Nullable)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	out.WriteString(l.Open)
	first := true
	for _, item := range items {
		frame := scope.Child()
		if l.Item != "" {
			frame.Bind(l.Item, item.Value)
		}
		if l.Index != "" {
			frame.Bind(l.Index, item.Key)
		}
		var part strings.Builder
		if err := r.render(l.Body, frame, &part); err != nil {
			return err
		}
		if strings.TrimSpace(part.String()) == "" {
			continue
		}
		if !first {
			out.WriteString(l.Separator)
		}
		first = false
		out.WriteString(part.String())
	}
	out.WriteString(l.Close)
	return nil
}

func (r *renderer) reframe(rf *Reframe, scope *expr.Scope, out *strings.Builder) error {
	var body strings.Builder
	if err := r.render(rf.Body, scope, &body); err != nil {
		return err
	}
	s := strings.TrimSpace(body.String())
	if s == "" {
		return nil
	}

	for _, tok := range rf.PrefixStrip {
		if hasPrefixFold(s, tok) {
			s = strings.TrimSpace(s[len(strings.TrimSpace(tok)):])
			break
		}
	}
	for _, tok := range rf.SuffixStrip {
		trimmed := strings.TrimSpace(tok)
		if hasSuffixFold(s, tok) || hasSuffixFold(s, trimmed) {
			s = strings.TrimSpace(s[:len(s)-len(trimmed)])
			break
		}
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{rf.Prefix, s, rf.Suffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	out.WriteString(strings.Join(parts, " "))
	return nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
