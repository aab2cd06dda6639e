package markup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/sqlmapper/internal/tokens"
)

// ParseError reports malformed markup.
type ParseError struct {
	Resource string
	Line     int
	Message  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Resource, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Resource, e.Message)
}

// Parse reads one XML document and returns its root element.
//
// When vars is non-nil every ${key} in attribute values and character data
// is substituted before the tree is built. Comments, processing instructions
// and the DOCTYPE are dropped. CDATA sections become ordinary text nodes.
func Parse(resource string, r io.Reader, vars map[string]string) (*Element, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var (
		stack []*Element
		root  *Element
	)
	for {
		line, _ := dec.InputPos()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseError(resource, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{name: t.Name.Local, line: line}
			for _, a := range t.Attr {
				el.attrs = append(el.attrs, Attr{Name: attrName(a.Name), Value: Substitute(a.Value, vars)})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, &ParseError{Resource: resource, Line: line, Message: "multiple root elements"}
				}
				root = el
			}
			stack = append(stack, el)

		case xml.EndElement:
			el := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}

		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, &ParseError{Resource: resource, Line: line, Message: "text outside root element"}
				}
				continue
			}
			parent := stack[len(stack)-1]
			data := Substitute(string(t), vars)
			// The decoder splits CDATA and entity runs into separate tokens.
			if n := len(parent.children); n > 0 {
				if prev, ok := parent.children[n-1].(*Text); ok {
					prev.data += data
					continue
				}
			}
			parent.children = append(parent.children, &Text{data: data, line: line})
		}
	}
	if root == nil {
		return nil, &ParseError{Resource: resource, Message: "document has no root element"}
	}
	return root, nil
}

// ParseString is Parse over an in-memory document.
func ParseString(resource, doc string, vars map[string]string) (*Element, error) {
	return Parse(resource, strings.NewReader(doc), vars)
}

// Substitute replaces ${key} with vars[key]. Unknown keys are left untouched,
// so dynamic SQL interpolation survives property substitution.
func Substitute(text string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(text, "${") {
		return text
	}
	out, _ := tokens.Replace(text, "${", "}", func(key string) (string, error) {
		if v, ok := vars[key]; ok {
			return v, nil
		}
		return "${" + key + "}", nil
	})
	return out
}

func attrName(n xml.Name) string {
	if n.Space != "" && n.Space != "xmlns" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

func parseError(resource string, err error) error {
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return &ParseError{Resource: resource, Line: se.Line, Message: se.Msg}
	}
	return &ParseError{Resource: resource, Message: err.Error()}
}
