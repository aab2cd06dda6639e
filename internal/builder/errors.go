package builder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/sqlmapper/internal/dynsql"
)

// BuilderError reports a malformed mapper document. It carries the
// resource, namespace and definition id it was raised for.
type BuilderError struct {
	Resource  string
	Namespace string

	// Element and ID identify the definition being built, e.g. "select"
	// and "findById". Both are empty for document-level errors.
	Element string
	ID      string
	Line    int

	Message string
	Err     error
}

func (e *BuilderError) Error() string {
	var b strings.Builder
	if e.Resource != "" {
		b.WriteString(e.Resource)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	}
	if e.Namespace != "" {
		fmt.Fprintf(&b, "namespace %s: ", e.Namespace)
	}
	if e.Element != "" {
		fmt.Fprintf(&b, "<%s", e.Element)
		if e.ID != "" {
			fmt.Fprintf(&b, " id=%q", e.ID)
		}
		b.WriteString(">: ")
	}
	switch {
	case e.Message != "" && e.Err != nil:
		fmt.Fprintf(&b, "%s: %v", e.Message, e.Err)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *BuilderError) Unwrap() error {
	return e.Err
}

// IsBuilderError reports whether err is or wraps a BuilderError from this
// package or from the directive compiler.
func IsBuilderError(err error) bool {
	var be *BuilderError
	return errors.As(err, &be) || dynsql.IsBuilderError(err)
}
