// Package dynsql compiles statement bodies into directive trees and renders
// them into SQL text plus ordered bind parameters.
package dynsql

import (
	"strings"

	"github.com/roach88/sqlmapper/internal/tokens"
)

// Node is a compiled directive. The set of variants is closed; renderers
// switch over the concrete types.
type Node interface {
	directive()
}

// Sequence renders its children in order.
type Sequence []Node

// StaticText is literal SQL. Its #{...} placeholders are parsed once at
// construction.
type StaticText struct {
	Text     string
	segments []textSegment
}

// DynamicText is SQL holding ${...} interpolations, rendered per call.
type DynamicText struct {
	Template string
}

// Conditional renders Body when Test evaluates true.
type Conditional struct {
	Test string
	Body Node
}

// Choose renders the first branch whose test is true, else Otherwise.
type Choose struct {
	When      []*Conditional
	Otherwise Node
}

// Loop renders Body once per element of Collection.
type Loop struct {
	Collection string
	Item       string
	Index      string
	Open       string
	Close      string
	Separator  string
	Nullable   bool
	Body       Node
}

// Reframe renders Body, strips a leading and trailing token, and wraps what
// is left with Prefix and Suffix. Strip tokens are matched
// case-insensitively and only the first match is removed.
type Reframe struct {
	Prefix      string
	PrefixStrip []string
	Suffix      string
	SuffixStrip []string
	Body        Node
}

// VariableBind binds the value of Expr under Name in the current frame.
type VariableBind struct {
	Name string
	Expr string
}

func (Sequence) directive()      {}
func (*StaticText) directive()   {}
func (*DynamicText) directive()  {}
func (*Conditional) directive()  {}
func (*Choose) directive()       {}
func (*Loop) directive()         {}
func (*Reframe) directive()      {}
func (*VariableBind) directive() {}

// NewStaticText parses the placeholders of text.
func NewStaticText(text string) (*StaticText, error) {
	st := &StaticText{Text: text}
	for _, seg := range tokens.Split(text, "#{", "}") {
		if !seg.Token {
			st.segments = append(st.segments, textSegment{text: seg.Text})
			continue
		}
		p, err := ParsePlaceholder(seg.Text)
		if err != nil {
			return nil, err
		}
		st.segments = append(st.segments, textSegment{param: &p})
	}
	return st, nil
}

type textSegment struct {
	text  string
	param *Placeholder
}

// whereStrip lists the leading connectors removed by <where>.
var whereStrip = []string{"AND ", "OR ", "AND\n", "OR\n", "AND\r", "OR\r", "AND\t", "OR\t"}

// NewWhere returns the Reframe behind <where>.
func NewWhere(body Node) *Reframe {
	return &Reframe{Prefix: "WHERE", PrefixStrip: whereStrip, Body: body}
}

// NewSet returns the Reframe behind <set>.
func NewSet(body Node) *Reframe {
	return &Reframe{Prefix: "SET", PrefixStrip: []string{","}, SuffixStrip: []string{","}, Body: body}
}

// ParseOverrides splits a prefixOverrides/suffixOverrides attribute on '|'.
// Tokens keep their inner whitespace so "AND " does not match "ANDROID".
func ParseOverrides(attr string) []string {
	if attr == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(attr, "|") {
		if tok != "" {
			out = append(out, strings.ToUpper(tok))
		}
	}
	return out
}
