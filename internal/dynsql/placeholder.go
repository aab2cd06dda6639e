package dynsql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/sqlmapper/internal/ir"
)

// Placeholder is a parsed #{...} descriptor:
//
//	#{property[,javaType=T][,jdbcType=T][,mode=IN|OUT|INOUT][,typeHandler=H][,numericScale=N][,resultMap=R]}
//
// The short form #{property:JDBCTYPE} sets the JDBC type.
type Placeholder struct {
	Property     string
	JavaType     string
	JDBCType     string
	JDBCTypeName string
	TypeHandler  string
	ResultMap    string
	Mode         ir.ParamMode
	NumericScale *int
}

// ParsePlaceholder parses the content of a #{...} token.
func ParsePlaceholder(content string) (Placeholder, error) {
	parts := strings.Split(content, ",")
	p := Placeholder{Mode: ir.ModeIn}

	prop := strings.TrimSpace(parts[0])
	if name, jdbcType, ok := strings.Cut(prop, ":"); ok {
		prop = strings.TrimSpace(name)
		p.JDBCType = strings.TrimSpace(jdbcType)
	}
	if prop == "" {
		return p, &BuilderError{Message: fmt.Sprintf("placeholder #{%s} has no property", content)}
	}
	p.Property = prop

	for _, attr := range parts[1:] {
		key, value, ok := strings.Cut(attr, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" {
			return p, &BuilderError{Message: fmt.Sprintf("placeholder #{%s}: expected name=value, got %q", content, strings.TrimSpace(attr))}
		}
		switch key {
		case "javaType":
			p.JavaType = value
		case "jdbcType":
			p.JDBCType = value
		case "jdbcTypeName":
			p.JDBCTypeName = value
		case "typeHandler":
			p.TypeHandler = value
		case "resultMap":
			p.ResultMap = value
		case "mode":
			mode, err := ir.ParseParamMode(value)
			if err != nil {
				return p, &BuilderError{Message: fmt.Sprintf("placeholder #{%s}: %v", content, err)}
			}
			p.Mode = mode
		case "numericScale":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return p, &BuilderError{Message: fmt.Sprintf("placeholder #{%s}: numericScale must be a non-negative integer", content)}
			}
			p.NumericScale = &n
		default:
			return p, &BuilderError{Message: fmt.Sprintf("placeholder #{%s}: unknown attribute %q", content, key)}
		}
	}
	return p, nil
}

func (p Placeholder) binding(value any) ir.Binding {
	if p.Mode == ir.ModeOut {
		value = nil
	}
	return ir.Binding{
		Property:     p.Property,
		JavaType:     p.JavaType,
		JDBCType:     p.JDBCType,
		JDBCTypeName: p.JDBCTypeName,
		TypeHandler:  p.TypeHandler,
		ResultMap:    p.ResultMap,
		Mode:         p.Mode,
		NumericScale: p.NumericScale,
		Value:        value,
	}
}

// PlaceholderStyle is the positional token written for each binding.
type PlaceholderStyle int

const (
	// Question writes ? for every binding.
	Question PlaceholderStyle = iota
	// Dollar writes $1, $2, ... numbered in binding order.
	Dollar
)

// ParsePlaceholderStyle parses "question" or "dollar". Empty means Question.
func ParsePlaceholderStyle(s string) (PlaceholderStyle, error) {
	switch strings.ToLower(s) {
	case "", "question", "?":
		return Question, nil
	case "dollar", "$":
		return Dollar, nil
	}
	return Question, fmt.Errorf("unknown placeholder style %q", s)
}

func (s PlaceholderStyle) String() string {
	if s == Dollar {
		return "dollar"
	}
	return "question"
}

func (s PlaceholderStyle) token(n int) string {
	if s == Dollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
