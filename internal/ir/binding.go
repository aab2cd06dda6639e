package ir

import (
	"fmt"
	"strings"
)

// ParamMode is the direction of a bind parameter.
type ParamMode string

const (
	ModeIn    ParamMode = "IN"
	ModeOut   ParamMode = "OUT"
	ModeInOut ParamMode = "INOUT"
)

// ParseParamMode parses a mode attribute case-insensitively. Empty means IN.
func ParseParamMode(s string) (ParamMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "IN":
		return ModeIn, nil
	case "OUT":
		return ModeOut, nil
	case "INOUT":
		return ModeInOut, nil
	}
	return "", fmt.Errorf("unknown parameter mode %q", s)
}

// Binding describes one positional placeholder of rendered SQL.
type Binding struct {
	Property     string
	JavaType     string
	JDBCType     string
	JDBCTypeName string
	TypeHandler  string
	ResultMap    string
	Mode         ParamMode
	NumericScale *int

	// Value is the property's value at the point the placeholder was
	// emitted. Always nil for OUT parameters.
	Value any
}

// BoundSQL is rendered SQL text plus its bindings in placeholder order.
type BoundSQL struct {
	SQL      string
	Bindings []Binding
}

// Args returns the binding values in placeholder order.
func (b *BoundSQL) Args() []any {
	args := make([]any, len(b.Bindings))
	for i, bd := range b.Bindings {
		args[i] = bd.Value
	}
	return args
}

// Properties returns the binding property paths in placeholder order.
func (b *BoundSQL) Properties() []string {
	props := make([]string, len(b.Bindings))
	for i, bd := range b.Bindings {
		props[i] = bd.Property
	}
	return props
}

// SQLSource produces bound SQL for a parameter object.
type SQLSource interface {
	// Dynamic reports whether the SQL text depends on the parameter.
	Dynamic() bool

	// StaticSQL returns the precomputed SQL text of a non-dynamic source.
	StaticSQL() (string, bool)

	BoundSQL(param any) (*BoundSQL, error)
}
