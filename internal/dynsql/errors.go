package dynsql

import (
	"errors"
	"fmt"
	"strings"
)

// BuilderError reports a malformed or unknown directive.
type BuilderError struct {
	// Element is the offending tag, empty for text placeholders.
	Element string
	Line    int
	Message string

	// Err is the underlying cause, e.g. an expression syntax error.
	Err error
}

func (e *BuilderError) Error() string {
	var b strings.Builder
	if e.Element != "" {
		fmt.Fprintf(&b, "<%s>", e.Element)
		if e.Line > 0 {
			fmt.Fprintf(&b, " (line %d)", e.Line)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func (e *BuilderError) Unwrap() error {
	return e.Err
}

// IsBuilderError reports whether err is or wraps a BuilderError.
func IsBuilderError(err error) bool {
	var be *BuilderError
	return errors.As(err, &be)
}
