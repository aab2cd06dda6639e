package dynsql

import (
	"fmt"
	"strconv"

	"github.com/roach88/sqlmapper/internal/expr"
	"github.com/roach88/sqlmapper/internal/markup"
	"github.com/roach88/sqlmapper/internal/tokens"
)

// Tag is a directive element recognized inside statement bodies.
type Tag int

const (
	tagUnknown Tag = iota
	TagIf
	TagWhen
	TagOtherwise
	TagChoose
	TagForeach
	TagTrim
	TagWhere
	TagSet
	TagBind
)

var tagNames = map[string]Tag{
	"if":        TagIf,
	"when":      TagWhen,
	"otherwise": TagOtherwise,
	"choose":    TagChoose,
	"foreach":   TagForeach,
	"trim":      TagTrim,
	"where":     TagWhere,
	"set":       TagSet,
	"bind":      TagBind,
}

// LookupTag resolves an element name to its Tag.
func LookupTag(name string) (Tag, bool) {
	t, ok := tagNames[name]
	return t, ok
}

func (t Tag) String() string {
	for name, tag := range tagNames {
		if tag == t {
			return name
		}
	}
	return "unknown"
}

// Compile walks the children of root and returns the directive tree. The
// tree is dynamic when any child is an element or any text holds a ${...}
// interpolation.
func Compile(root markup.Node) (Node, bool, error) {
	c := &compiler{}
	seq, err := c.children(root)
	if err != nil {
		return nil, false, err
	}
	return seq, c.dynamic, nil
}

type compiler struct {
	dynamic bool
}

func (c *compiler) children(n markup.Node) (Sequence, error) {
	var seq Sequence
	for _, child := range n.Children() {
		if child.Kind() == markup.KindText {
			node, err := c.text(child)
			if err != nil {
				return nil, err
			}
			seq = append(seq, node)
			continue
		}
		c.dynamic = true
		node, err := c.element(child)
		if err != nil {
			return nil, err
		}
		seq = append(seq, node)
	}
	return seq, nil
}

func (c *compiler) text(n markup.Node) (Node, error) {
	text := n.Text()
	if tokens.Contains(text, "${", "}") {
		c.dynamic = true
		err := tokens.Scan(text, "${", "}", func(string) {}, func(content string) error {
			if _, err := expr.Parse(content); err != nil {
				return &BuilderError{Line: n.Line(), Message: fmt.Sprintf("invalid interpolation ${%s}", content), Err: err}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &DynamicText{Template: text}, nil
	}
	st, err := NewStaticText(text)
	if err != nil {
		if be, ok := err.(*BuilderError); ok && be.Line == 0 {
			be.Line = n.Line()
		}
		return nil, err
	}
	return st, nil
}

func (c *compiler) element(n markup.Node) (Node, error) {
	tag, ok := LookupTag(n.Name())
	if !ok {
		return nil, &BuilderError{Element: n.Name(), Line: n.Line(), Message: fmt.Sprintf("unknown element <%s> in statement body", n.Name())}
	}

	switch tag {
	case TagIf, TagWhen:
		return c.conditional(n)

	case TagOtherwise:
		return c.children(n)

	case TagChoose:
		return c.choose(n)

	case TagForeach:
		collection, err := required(n, "collection")
		if err != nil {
			return nil, err
		}
		if err := checkExpr(n, "collection", collection); err != nil {
			return nil, err
		}
		nullable := false
		if v, ok := n.Attr("nullable"); ok && v != "" {
			if nullable, err = strconv.ParseBool(v); err != nil {
				return nil, &BuilderError{Element: n.Name(), Line: n.Line(), Message: fmt.Sprintf("nullable must be true or false, got %q", v)}
			}
		}
		body, err := c.children(n)
		if err != nil {
			return nil, err
		}
		return &Loop{
			Collection: collection,
			Item:       markup.AttrOr(n, "item", ""),
			Index:      markup.AttrOr(n, "index", ""),
			Open:       markup.AttrOr(n, "open", ""),
			Close:      markup.AttrOr(n, "close", ""),
			Separator:  markup.AttrOr(n, "separator", ""),
			Nullable:   nullable,
			Body:       body,
		}, nil

	case TagTrim:
		body, err := c.children(n)
		if err != nil {
			return nil, err
		}
		return &Reframe{
			Prefix:      markup.AttrOr(n, "prefix", ""),
			PrefixStrip: ParseOverrides(markup.AttrOr(n, "prefixOverrides", "")),
			Suffix:      markup.AttrOr(n, "suffix", ""),
			SuffixStrip: ParseOverrides(markup.AttrOr(n, "suffixOverrides", "")),
			Body:        body,
		}, nil

	case TagWhere:
		body, err := c.children(n)
		if err != nil {
			return nil, err
		}
		return NewWhere(body), nil

	case TagSet:
		body, err := c.children(n)
		if err != nil {
			return nil, err
		}
		return NewSet(body), nil

	case TagBind:
		name, err := required(n, "name")
		if err != nil {
			return nil, err
		}
		value, err := required(n, "value")
		if err != nil {
			return nil, err
		}
		if err := checkExpr(n, "value", value); err != nil {
			return nil, err
		}
		return &VariableBind{Name: name, Expr: value}, nil
	}
	return nil, &BuilderError{Element: n.Name(), Line: n.Line(), Message: "unhandled directive"}
}

func (c *compiler) conditional(n markup.Node) (*Conditional, error) {
	test, err := required(n, "test")
	if err != nil {
		return nil, err
	}
	if err := checkExpr(n, "test", test); err != nil {
		return nil, err
	}
	body, err := c.children(n)
	if err != nil {
		return nil, err
	}
	return &Conditional{Test: test, Body: body}, nil
}

// choose collects when branches and at most one otherwise from the direct
// children of n.
func (c *compiler) choose(n markup.Node) (*Choose, error) {
	ch := &Choose{}
	hasDefault := false
	for _, child := range markup.Elements(n) {
		tag, _ := LookupTag(child.Name())
		switch tag {
		case TagWhen, TagIf:
			cond, err := c.conditional(child)
			if err != nil {
				return nil, err
			}
			ch.When = append(ch.When, cond)
		case TagOtherwise:
			if hasDefault {
				return nil, &BuilderError{Element: n.Name(), Line: child.Line(), Message: "too many default (otherwise) elements in choose"}
			}
			body, err := c.children(child)
			if err != nil {
				return nil, err
			}
			hasDefault = true
			ch.Otherwise = body
		default:
			return nil, &BuilderError{Element: child.Name(), Line: child.Line(), Message: fmt.Sprintf("<%s> is not allowed inside <choose>", child.Name())}
		}
	}
	return ch, nil
}

func required(n markup.Node, attr string) (string, error) {
	v, ok := n.Attr(attr)
	if !ok || v == "" {
		return "", &BuilderError{Element: n.Name(), Line: n.Line(), Message: fmt.Sprintf("missing required attribute %q", attr)}
	}
	return v, nil
}

func checkExpr(n markup.Node, attr, text string) error {
	if _, err := expr.Parse(text); err != nil {
		return &BuilderError{Element: n.Name(), Line: n.Line(), Message: fmt.Sprintf("invalid %s expression %q", attr, text), Err: err}
	}
	return nil
}
