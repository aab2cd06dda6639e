package expr

import (
	"errors"
	"strconv"
	"strings"
)

type evaluator struct {
	scope *Scope
}

func (ev *evaluator) expression(e *Expression) (any, error) {
	return ev.or(e.Or)
}

func (ev *evaluator) or(o *OrExpr) (any, error) {
	v, err := ev.and(o.Left)
	if err != nil || len(o.Right) == 0 {
		return v, err
	}
	b, err := truth(v)
	if err != nil {
		return nil, err
	}
	for _, r := range o.Right {
		if b {
			return true, nil
		}
		rv, err := ev.and(r)
		if err != nil {
			return nil, err
		}
		if b, err = truth(rv); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (ev *evaluator) and(a *AndExpr) (any, error) {
	v, err := ev.not(a.Left)
	if err != nil || len(a.Right) == 0 {
		return v, err
	}
	b, err := truth(v)
	if err != nil {
		return nil, err
	}
	for _, r := range a.Right {
		if !b {
			return false, nil
		}
		rv, err := ev.not(r)
		if err != nil {
			return nil, err
		}
		if b, err = truth(rv); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (ev *evaluator) not(n *NotExpr) (any, error) {
	if n.Not == nil {
		return ev.comparison(n.Cmp)
	}
	v, err := ev.not(n.Not)
	if err != nil {
		return nil, err
	}
	b, err := truth(v)
	if err != nil {
		return nil, err
	}
	return !b, nil
}

func (ev *evaluator) comparison(c *Comparison) (any, error) {
	left, err := ev.additive(c.Left)
	if err != nil || c.Tail == nil {
		return left, err
	}
	right, err := ev.additive(c.Tail.Right)
	if err != nil {
		return nil, err
	}
	return compare(c.Tail.Op, left, right)
}

func (ev *evaluator) additive(a *Additive) (any, error) {
	v, err := ev.multiplicative(a.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range a.Rest {
		r, err := ev.multiplicative(op.Right)
		if err != nil {
			return nil, err
		}
		if v, err = arithmetic(op.Op, v, r); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (ev *evaluator) multiplicative(m *Multiplicative) (any, error) {
	v, err := ev.unary(m.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range m.Rest {
		r, err := ev.unary(op.Right)
		if err != nil {
			return nil, err
		}
		if v, err = arithmetic(op.Op, v, r); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (ev *evaluator) unary(u *Unary) (any, error) {
	if u.Neg == nil {
		return ev.primary(u.Value)
	}
	v, err := ev.unary(u.Neg)
	if err != nil {
		return nil, err
	}
	return negate(v)
}

func (ev *evaluator) primary(p *Primary) (any, error) {
	switch {
	case p.Number != nil:
		return parseNumber(*p.Number)
	case p.String != nil:
		return unquote(*p.String), nil
	case p.Bool != nil:
		return *p.Bool == "true", nil
	case p.Null:
		return nil, nil
	case p.Sub != nil:
		return ev.expression(p.Sub)
	case p.Path != nil:
		return ev.path(p.Path)
	}
	return nil, errorf("empty expression")
}

func (ev *evaluator) path(p *Path) (any, error) {
	v, err := ev.scope.Lookup(p.Head)
	if err != nil {
		return nil, err
	}
	for _, seg := range p.Segments {
		switch {
		case seg.Index != nil:
			var idx any
			if idx, err = ev.expression(seg.Index); err == nil {
				v, err = index(v, idx)
			}
		case seg.Call:
			v, err = call(v, *seg.Name)
		default:
			v, err = property(v, *seg.Name)
		}
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func parseNumber(s string) (any, error) {
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errorf("bad number %s", s)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errorf("number %s out of range", s)
	}
	return n, nil
}

// unquote strips the quotes of a single or double quoted literal and
// resolves backslash escapes.
func unquote(s string) string {
	s = s[1 : len(s)-1]
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// wrap attaches the expression text to evaluation failures.
func wrap(text string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExpressionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExpressionError{Expr: text, Message: err.Error(), Err: err}
}
