// Package markup provides the element tree read by the mapper builder and
// the directive compiler.
//
// Trees come from Parse (XML mapper documents) or are assembled directly with
// NewElement and NewText. Nodes are immutable once built.
package markup

import (
	"sort"
	"strings"
)

// Kind distinguishes element nodes from character data.
type Kind int

const (
	KindElement Kind = iota + 1
	KindText
)

// Node is the read-only view of a markup node.
type Node interface {
	Kind() Kind

	// Name is the element tag. Empty for text nodes.
	Name() string

	// Attr returns the attribute value and whether it was present.
	Attr(name string) (string, bool)

	// Attrs returns attributes in document order.
	Attrs() []Attr

	// Children returns child nodes in document order.
	Children() []Node

	// Text returns the node's character data. For elements it is the
	// concatenated text of all descendants.
	Text() string

	// Line is the 1-based source line, or 0 when unknown.
	Line() int
}

// Attr is a single name="value" attribute.
type Attr struct {
	Name  string
	Value string
}

// Element is an element node.
type Element struct {
	name     string
	attrs    []Attr
	children []Node
	line     int
}

// NewElement builds an element node.
func NewElement(name string, attrs []Attr, children ...Node) *Element {
	return &Element{name: name, attrs: attrs, children: children}
}

// WithLine returns a copy of e that reports the given source line.
func (e *Element) WithLine(line int) *Element {
	c := *e
	c.line = line
	return &c
}

func (e *Element) Kind() Kind       { return KindElement }
func (e *Element) Name() string     { return e.name }
func (e *Element) Attrs() []Attr    { return e.attrs }
func (e *Element) Children() []Node { return e.children }
func (e *Element) Line() int        { return e.line }

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (e *Element) Text() string {
	var b strings.Builder
	for _, c := range e.children {
		b.WriteString(c.Text())
	}
	return b.String()
}

// Text is a character-data node.
type Text struct {
	data string
	line int
}

// NewText builds a text node.
func NewText(data string) *Text {
	return &Text{data: data}
}

func (t *Text) Kind() Kind                 { return KindText }
func (t *Text) Name() string               { return "" }
func (t *Text) Attr(string) (string, bool) { return "", false }
func (t *Text) Attrs() []Attr              { return nil }
func (t *Text) Children() []Node           { return nil }
func (t *Text) Text() string               { return t.data }
func (t *Text) Line() int                  { return t.line }

// AttrOr returns the attribute value or def when it is absent or empty.
func AttrOr(n Node, name, def string) string {
	if v, ok := n.Attr(name); ok && v != "" {
		return v
	}
	return def
}

// Elements returns the element children of n.
func Elements(n Node) []Node {
	var out []Node
	for _, c := range n.Children() {
		if c.Kind() == KindElement {
			out = append(out, c)
		}
	}
	return out
}

// ElementsNamed returns the element children of n with the given tag.
func ElementsNamed(n Node, name string) []Node {
	var out []Node
	for _, c := range n.Children() {
		if c.Kind() == KindElement && c.Name() == name {
			out = append(out, c)
		}
	}
	return out
}

// String renders n back to markup. Attributes are written in sorted order so
// that two trees with equal content render identically.
func String(n Node) string {
	var b strings.Builder
	write(&b, n)
	return b.String()
}

func write(b *strings.Builder, n Node) {
	if n.Kind() == KindText {
		b.WriteString(escapeText(n.Text()))
		return
	}
	b.WriteByte('<')
	b.WriteString(n.Name())
	attrs := append([]Attr(nil), n.Attrs()...)
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteByte('"')
	}
	children := n.Children()
	if len(children) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	for _, c := range children {
		write(b, c)
	}
	b.WriteString("</")
	b.WriteString(n.Name())
	b.WriteByte('>')
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }
